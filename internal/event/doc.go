// Package event provides the item model and change detection for watched pages.
//
// An item is the normalized text of one listing on the watched page. Items have no
// other identity: two listings are the same item when their normalized text is equal.
// The package collects raw texts into a Set and diffs the current Set against the
// Set observed on the previous run.
package event
