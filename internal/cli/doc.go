// Package cli implements the command-line interface for events-watch.
//
// The default command runs one check: it loads the configuration, wires the
// scraper, state store and notification channels together and hands them to the
// runner. keygen prints a fresh state encryption key and show prints the stored
// set of items.
package cli
