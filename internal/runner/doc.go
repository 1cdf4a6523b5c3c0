// Package runner sequences one check of the watched page.
//
// A run loads the previous observed set, fetches the page, collects and diffs the
// items, notifies about new ones and saves the current set as the next baseline.
// State is written only after notification succeeded, so a failed delivery is
// retried by the next run instead of being lost.
package runner
