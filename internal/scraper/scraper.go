package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/pfrederiksen/events-watch/internal/config"
	"github.com/pfrederiksen/events-watch/internal/logger"
)

const UserAgent = "events-watch/1.0 (github.com/pfrederiksen/events-watch)"

// ErrTimeout is returned when the container selector never matched within the wait bound
var ErrTimeout = errors.New("timed out waiting for events container")

// Fetcher returns the raw text of every item on a page
type Fetcher interface {
	Fetch(ctx context.Context, location, containerSelector, itemSelector string) ([]string, error)
}

// Scraper fetches pages over HTTP and extracts item text with CSS selectors
type Scraper struct {
	client       *resty.Client
	waitTimeout  time.Duration
	pollInterval time.Duration
	log          *logger.Logger
}

// Option configures a Scraper
type Option func(*Scraper)

// WithTimeouts sets the per-request load timeout and the bound on waiting for the
// container to appear
func WithTimeouts(load, wait time.Duration) Option {
	return func(s *Scraper) {
		s.client.SetTimeout(load)
		s.waitTimeout = wait
	}
}

// WithPollInterval sets the delay between re-fetches while waiting for the container
func WithPollInterval(d time.Duration) Option {
	return func(s *Scraper) {
		s.pollInterval = d
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Scraper) {
		s.log = log
	}
}

// New creates a new Scraper instance
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client: resty.New().
			SetTimeout(config.DefaultLoadTimeout).
			SetHeader("User-Agent", UserAgent).
			SetHeader("Accept", "text/html,application/xhtml+xml"),
		waitTimeout:  config.DefaultWaitTimeout,
		pollInterval: config.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch loads location and returns the text of every itemSelector match inside the
// containerSelector matches, in document order. Item texts are returned as found,
// including empty ones.
func (s *Scraper) Fetch(ctx context.Context, location, containerSelector, itemSelector string) ([]string, error) {
	doc, err := s.load(ctx, location)
	if err != nil {
		return nil, err
	}

	waitUntil := time.Now().Add(s.waitTimeout)
	attempts := 1
	for {
		container := doc.Find(containerSelector)
		if container.Length() > 0 {
			items := extractItems(container, itemSelector)
			s.log.Debug("Container found", logger.Fields{
				"selector": containerSelector,
				"attempts": attempts,
				"items":    len(items),
			})
			return items, nil
		}

		remaining := time.Until(waitUntil)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %q not found after %s", ErrTimeout, containerSelector, s.waitTimeout)
		}

		s.log.Debug("Container not on page yet", logger.Fields{
			"selector":  containerSelector,
			"attempt":   attempts,
			"remaining": remaining.String(),
		})

		delay := s.pollInterval
		if delay > remaining {
			delay = remaining
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		if doc, err = s.load(ctx, location); err != nil {
			return nil, err
		}
		attempts++
	}
}

// load fetches and parses one copy of the page
func (s *Scraper) load(ctx context.Context, location string) (*goquery.Document, error) {
	resp, err := s.client.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// extractItems returns the visible text of each item under the containers
func extractItems(container *goquery.Selection, itemSelector string) []string {
	items := make([]string, 0)
	container.Find(itemSelector).Each(func(_ int, sel *goquery.Selection) {
		items = append(items, visibleText(sel))
	})
	return items
}

// blockElements get a line break around their content, the way a browser lays them
// out, so "<p>Story Time</p><p>Sat</p>" reads "Story Time\nSat" and not "Story TimeSat".
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "footer": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "li": true,
	"main": true, "ol": true, "p": true, "section": true, "table": true, "td": true,
	"th": true, "tr": true, "ul": true,
}

// visibleText renders the text of a selection without script, style and template content
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	return strings.TrimSpace(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "template", "noscript":
			return
		case "br":
			b.WriteString("\n")
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteString("\n")
	}
}
