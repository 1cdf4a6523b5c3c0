package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/events-watch/internal/runner"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// checkOutput is the JSON shape of a finished check
type checkOutput struct {
	CheckedAt string   `json:"checked_at"`
	NewItems  []string `json:"new_items"`
	NewCount  int      `json:"new_count"`
	Total     int      `json:"total"`
	Notified  bool     `json:"notified"`
	Saved     bool     `json:"saved"`
}

// WriteResult writes the outcome of a check in the specified format
func WriteResult(w io.Writer, result *runner.Result, format OutputFormat, verbose bool) error {
	items := result.NewItems()

	switch format {
	case FormatJSON:
		if items == nil {
			items = []string{}
		}
		return writeJSON(w, checkOutput{
			CheckedAt: result.CheckedAt.Format(time.RFC3339),
			NewItems:  items,
			NewCount:  len(items),
			Total:     result.Current.Len(),
			Notified:  result.Notified,
			Saved:     result.Saved,
		})
	case FormatText:
		return writeText(w, result, items, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteItems writes a plain list of stored items
func WriteItems(w io.Writer, items []string, format OutputFormat) error {
	switch format {
	case FormatJSON:
		if items == nil {
			items = []string{}
		}
		return writeJSON(w, items)
	case FormatText:
		if len(items) == 0 {
			fmt.Fprintln(w, "No stored items.")
			return nil
		}
		for _, item := range items {
			fmt.Fprintln(w, item)
		}
		fmt.Fprintf(w, "\nTotal: %d\n", len(items))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *runner.Result, items []string, verbose bool) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No new events found.")
	} else {
		for _, item := range items {
			fmt.Fprintf(w, "NEW: %s\n", item)
		}
		fmt.Fprintf(w, "\nTotal: %d new\n", len(items))
	}

	if verbose {
		fmt.Fprintf(w, "Checked at: %s\n", result.CheckedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "Items on page: %d (previously %d)\n", result.Current.Len(), result.Previous.Len())
		if !result.Saved {
			fmt.Fprintln(w, "State not saved (dry run)")
		}
	}
	return nil
}
