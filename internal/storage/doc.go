// Package storage persists the observed item set between runs.
//
// A Store loads the set seen at the end of the previous run and replaces it wholesale
// at the end of the current one. PlainStore keeps a sorted JSON array on disk.
// EncryptedStore seals the same array for CI runners whose state leaves the machine
// as an artifact, and GistStore keeps that sealed blob in a private GitHub Gist.
// New picks one of them once, at startup, from the run configuration.
package storage
