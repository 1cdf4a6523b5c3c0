package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"

	"github.com/pfrederiksen/events-watch/internal/config"
)

const (
	tweetLimit = 280
	tweetDelay = 2 * time.Second

	// duplicateStatusCode is the API error for a status identical to a recent one
	duplicateStatusCode = 187
)

// statusUpdater is the part of the Twitter client the notifier needs
type statusUpdater interface {
	Update(status string) error
}

type twitterStatuses struct {
	client *twitter.Client
}

func (s twitterStatuses) Update(status string) error {
	_, _, err := s.client.Statuses.Update(status, nil)
	return err
}

// TwitterNotifier posts one tweet per new item
type TwitterNotifier struct {
	statuses statusUpdater
	linkURL  string
	delay    time.Duration
}

// NewTwitterNotifier creates a Twitter notifier from OAuth1 user credentials
func NewTwitterNotifier(ctx context.Context, cfg config.Twitter, linkURL string) (*TwitterNotifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing required Twitter credentials")
	}

	oauth := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)
	client := twitter.NewClient(oauth.Client(ctx, token))

	return &TwitterNotifier{
		statuses: twitterStatuses{client: client},
		linkURL:  linkURL,
		delay:    tweetDelay,
	}, nil
}

// Notify posts tweets for each item, pausing between them. An item rejected as a
// duplicate was posted by an earlier, partly failed run and counts as sent.
func (n *TwitterNotifier) Notify(ctx context.Context, items []string) error {
	for i, item := range items {
		if err := n.statuses.Update(formatTweet(item, n.linkURL)); err != nil && !isDuplicateStatus(err) {
			return channelError("twitter", fmt.Errorf("posting %q: %w", item, err))
		}

		if i < len(items)-1 {
			select {
			case <-ctx.Done():
				return channelError("twitter", ctx.Err())
			case <-time.After(n.delay):
			}
		}
	}
	return nil
}

func isDuplicateStatus(err error) bool {
	var apiErr twitter.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, detail := range apiErr.Errors {
		if detail.Code == duplicateStatusCode {
			return true
		}
	}
	return false
}

// formatTweet formats an item as a tweet of at most 280 characters
func formatTweet(item, linkURL string) string {
	suffix := ""
	if linkURL != "" {
		suffix = "\n\n🔗 " + linkURL
	}

	head := "🗓 New event posted!\n\n"
	room := tweetLimit - utf8.RuneCountInString(head) - utf8.RuneCountInString(suffix)
	if room < 40 {
		suffix = ""
		room = tweetLimit - utf8.RuneCountInString(head)
	}
	if utf8.RuneCountInString(item) > room {
		runes := []rune(item)
		item = string(runes[:room-3]) + "..."
	}
	return head + item + suffix
}
