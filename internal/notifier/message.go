package notifier

import (
	"strconv"
	"strings"

	"github.com/pfrederiksen/events-watch/internal/config"
)

// Subject renders the subject template. "{count}" becomes the number of items.
func Subject(msg config.Message, items []string) string {
	return strings.ReplaceAll(msg.Subject, "{count}", strconv.Itoa(len(items)))
}

// Body renders the plain-text message body:
//
//	New events were posted:
//
//	- Event B
//	- Event C
//
//	View all events:
//	https://example.com/events
func Body(msg config.Message, items []string) string {
	var b strings.Builder
	b.WriteString(msg.Intro)
	b.WriteString("\n\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	if msg.LinkURL != "" {
		b.WriteString("\n")
		if msg.LinkText != "" {
			b.WriteString(msg.LinkText)
			b.WriteString("\n")
		}
		b.WriteString(msg.LinkURL)
		b.WriteString("\n")
	}
	return b.String()
}
