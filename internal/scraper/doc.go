// Package scraper fetches the watched page and extracts the text of each listing.
//
// The page is located by URL and the listings by two CSS selectors: one for the
// container that holds them and one for each item inside it. Pages that render the
// container late are re-fetched until it appears or the wait bound runs out.
package scraper
