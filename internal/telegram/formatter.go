package telegram

import (
	"fmt"
	"html"
	"strings"
)

const (
	// maxMessageLength is the Bot API limit for one text message
	maxMessageLength = 4096

	maxTitleLength    = 512
	maxLinkTextLength = 256
	maxLinkLength     = 1024
)

// FormatItems renders new items as one or more HTML messages. Items are never split
// across messages; each message repeats the header with its part number. Every
// message stays within the Bot API length limit whatever the title and link are.
func FormatItems(title string, items []string, linkText, linkURL string) []string {
	title = clip(html.EscapeString(title), maxTitleLength, "…")
	footer := formatFooter(linkText, linkURL)

	// each part holds at least one item, so len(items) bounds the part numbers
	budget := maxMessageLength - len(footer) - len(formatHeader(title, len(items), len(items)))
	lineMax := min(maxMessageLength/2, budget)

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, clip("• "+html.EscapeString(item)+"\n", lineMax, "…\n"))
	}

	var chunks [][]string
	var current []string
	size := 0
	for _, line := range lines {
		if size+len(line) > budget && len(current) > 0 {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
		current = append(current, line)
		size += len(line)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	messages := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		var msg strings.Builder
		if len(chunks) > 1 {
			msg.WriteString(formatHeader(title, i+1, len(chunks)))
		} else {
			msg.WriteString(formatHeader(title, 0, 0))
		}
		for _, line := range chunk {
			msg.WriteString(line)
		}
		msg.WriteString(footer)
		messages = append(messages, msg.String())
	}
	return messages
}

// formatHeader renders the escaped title, with a part number when parts > 1
func formatHeader(title string, part, parts int) string {
	if parts > 1 {
		return fmt.Sprintf("🗓 <b>%s</b> <i>(%d/%d)</i>\n\n", title, part, parts)
	}
	return fmt.Sprintf("🗓 <b>%s</b>\n\n", title)
}

// formatFooter renders the link line. A link too long to send whole is left out.
func formatFooter(linkText, linkURL string) string {
	href := html.EscapeString(linkURL)
	if href == "" || len(href) > maxLinkLength {
		return ""
	}
	text := clip(html.EscapeString(strings.TrimSuffix(linkText, ":")), maxLinkTextLength, "…")
	return fmt.Sprintf("\n🔗 <a href=\"%s\">%s</a>", href, text)
}

// clip shortens escaped text to at most max bytes, suffix included, without cutting
// an entity or a rune in half
func clip(s string, max int, suffix string) string {
	if len(s) <= max {
		return s
	}
	cut := max - len(suffix)
	for cut > 0 && !isBoundary(s, cut) {
		cut--
	}
	return s[:cut] + suffix
}

func isBoundary(s string, i int) bool {
	// continuation bytes of a UTF-8 sequence start with 10xxxxxx
	if s[i]&0xC0 == 0x80 {
		return false
	}
	amp := strings.LastIndexByte(s[:i], '&')
	return amp < 0 || strings.IndexByte(s[amp:i], ';') >= 0
}
