package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dghubble/go-twitter/twitter"
	"github.com/google/go-cmp/cmp"
	"github.com/jordan-wright/email"

	"github.com/pfrederiksen/events-watch/internal/config"
	"github.com/pfrederiksen/events-watch/internal/logger"
)

var testMessage = config.Message{
	Subject:  "IKEA Renton: {count} new event(s) posted",
	Intro:    "New IKEA Renton events were posted:",
	LinkText: "View all events:",
	LinkURL:  "https://www.example.com/stores/events/",
}

var testSMTP = config.SMTP{
	Host:     "smtp.example.com",
	Port:     587,
	From:     "bot@example.com",
	Password: "app-password",
	To:       "me@example.com",
}

func TestSubjectAndBody(t *testing.T) {
	items := []string{"Event B", "Event C"}

	if got := Subject(testMessage, items); got != "IKEA Renton: 2 new event(s) posted" {
		t.Errorf("Subject() = %q", got)
	}

	want := "New IKEA Renton events were posted:\n\n" +
		"- Event B\n" +
		"- Event C\n" +
		"\nView all events:\n" +
		"https://www.example.com/stores/events/\n"
	if diff := cmp.Diff(want, Body(testMessage, items)); diff != "" {
		t.Errorf("Body() mismatch (-want +got):\n%s", diff)
	}

	noLink := testMessage
	noLink.LinkURL = ""
	if strings.Contains(Body(noLink, items), "View all events") {
		t.Error("link text should be omitted without a link")
	}
}

func TestEmailNotifier(t *testing.T) {
	n := NewEmailNotifier(testSMTP, testMessage)

	var sent *email.Email
	var sentTo config.SMTP
	n.send = func(_ context.Context, e *email.Email, cfg config.SMTP) error {
		sent, sentTo = e, cfg
		return nil
	}

	if err := n.Notify(context.Background(), []string{"Event B"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if sent == nil {
		t.Fatal("no email sent")
	}
	if sent.From != "bot@example.com" || len(sent.To) != 1 || sent.To[0] != "me@example.com" {
		t.Errorf("envelope = %s -> %v", sent.From, sent.To)
	}
	if sent.Subject != "IKEA Renton: 1 new event(s) posted" {
		t.Errorf("Subject = %q", sent.Subject)
	}
	if !bytes.Contains(sent.Text, []byte("- Event B\n")) {
		t.Errorf("Text = %q", sent.Text)
	}
	if sentTo.Addr() != "smtp.example.com:587" {
		t.Errorf("sent via %s", sentTo.Addr())
	}

	raw, err := sent.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !bytes.Contains(raw, []byte("Subject: IKEA Renton: 1 new event(s) posted")) {
		t.Errorf("raw message missing subject header:\n%s", raw)
	}
}

func TestEmailNotifier_Failure(t *testing.T) {
	n := NewEmailNotifier(testSMTP, testMessage)
	n.send = func(context.Context, *email.Email, config.SMTP) error {
		return errors.New("535 authentication failed")
	}

	err := n.Notify(context.Background(), []string{"Event B"})
	if err == nil {
		t.Fatal("Notify() error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "535 authentication failed") || !strings.HasPrefix(err.Error(), "email:") {
		t.Errorf("Notify() error = %v", err)
	}
	if strings.Contains(err.Error(), "app-password") {
		t.Error("error leaks the password")
	}
}

func TestEmailNotifier_CanceledContext(t *testing.T) {
	n := NewEmailNotifier(testSMTP, testMessage)
	called := false
	n.send = func(context.Context, *email.Email, config.SMTP) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Notify(ctx, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("message sent after cancellation")
	}
}

func TestDryRunNotifier(t *testing.T) {
	var out bytes.Buffer
	n := NewDryRunNotifier(NewEmailNotifier(testSMTP, testMessage), &out)

	if err := n.Notify(context.Background(), []string{"Event A", "Event B"}); err != nil {
		t.Fatalf("DryRunNotifier.Notify() error = %v, want nil", err)
	}

	for _, want := range []string{
		"To: me@example.com",
		"Subject: IKEA Renton: 2 new event(s) posted",
		"- Event A\n- Event B\n",
		"--- 2 item(s) ---",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dry run output missing %q:\n%s", want, out.String())
		}
	}
}

func TestMulti(t *testing.T) {
	var calls []string
	record := func(name string, err error) Notifier {
		return Func(func(ctx context.Context, items []string) error {
			calls = append(calls, name)
			return err
		})
	}

	errA := errors.New("a failed")
	errC := errors.New("c failed")
	m := Multi{record("a", errA), record("b", nil), record("c", errC)}

	err := m.Notify(context.Background(), []string{"x"})
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("Notify() error = %v, want both failures", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	if err := (Multi{record("ok", nil)}).Notify(context.Background(), nil); err != nil {
		t.Errorf("Notify() error = %v, want nil", err)
	}
}

type fakeSender struct {
	texts []string
	err   error
}

func (f *fakeSender) SendMessage(ctx context.Context, text string) error {
	f.texts = append(f.texts, text)
	return f.err
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := &TelegramNotifier{client: sender, msg: testMessage}

	if err := n.Notify(context.Background(), []string{"Event B", "Event <C>"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.texts))
	}
	if !strings.Contains(sender.texts[0], "IKEA Renton: 2 new event(s) posted") ||
		!strings.Contains(sender.texts[0], "Event &lt;C&gt;") {
		t.Errorf("message = %s", sender.texts[0])
	}

	sender.err = errors.New("flood")
	if err := n.Notify(context.Background(), []string{"x"}); err == nil || !strings.HasPrefix(err.Error(), "telegram:") {
		t.Errorf("Notify() error = %v", err)
	}
}

func TestNewTelegramNotifier_Validation(t *testing.T) {
	if _, err := NewTelegramNotifier(config.Telegram{BotToken: "t"}, testMessage); err == nil {
		t.Error("NewTelegramNotifier() without chat ID should fail")
	}
	if _, err := NewTelegramNotifier(config.Telegram{BotToken: "t", ChatID: "1"}, testMessage); err != nil {
		t.Errorf("NewTelegramNotifier() error = %v", err)
	}
}

type fakeStatuses struct {
	posted []string
	failAt int
}

func (f *fakeStatuses) Update(status string) error {
	f.posted = append(f.posted, status)
	if f.failAt > 0 && len(f.posted) == f.failAt {
		return errors.New("rate limited")
	}
	return nil
}

func TestTwitterNotifier(t *testing.T) {
	statuses := &fakeStatuses{}
	n := &TwitterNotifier{statuses: statuses, linkURL: "https://example.com/events"}

	if err := n.Notify(context.Background(), []string{"Event A", "Event B"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(statuses.posted) != 2 {
		t.Fatalf("posted %d tweets, want 2", len(statuses.posted))
	}

	statuses = &fakeStatuses{failAt: 1}
	n.statuses = statuses
	err := n.Notify(context.Background(), []string{"Event A", "Event B"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("Notify() error = %v, want rate limited", err)
	}
	if len(statuses.posted) != 1 {
		t.Errorf("kept posting after a failure: %d tweets", len(statuses.posted))
	}
}

// recentStatuses rejects a status it has already accepted, like the Twitter API
type recentStatuses struct {
	accepted  map[string]bool
	failOnce  string
	attempted []string
}

func (r *recentStatuses) Update(status string) error {
	r.attempted = append(r.attempted, status)
	if r.failOnce != "" && strings.Contains(status, r.failOnce) {
		r.failOnce = ""
		return errors.New("503 service unavailable")
	}
	if r.accepted[status] {
		return twitter.APIError{Errors: []twitter.ErrorDetail{{Code: 187, Message: "Status is a duplicate."}}}
	}
	r.accepted[status] = true
	return nil
}

func TestTwitterNotifier_ResumesAfterPartialRun(t *testing.T) {
	statuses := &recentStatuses{accepted: map[string]bool{}, failOnce: "Event B"}
	n := &TwitterNotifier{statuses: statuses, linkURL: "https://example.com/events"}
	items := []string{"Event A", "Event B", "Event C"}

	if err := n.Notify(context.Background(), items); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("first Notify() error = %v, want the transient failure", err)
	}

	// Event A is already out; the retry must get past its duplicate rejection
	if err := n.Notify(context.Background(), items); err != nil {
		t.Fatalf("second Notify() error = %v", err)
	}
	if len(statuses.accepted) != 3 {
		t.Errorf("accepted %d distinct tweets, want 3", len(statuses.accepted))
	}
}

func TestIsDuplicateStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "duplicate", err: twitter.APIError{Errors: []twitter.ErrorDetail{{Code: 187}}}, want: true},
		{name: "wrapped duplicate", err: fmt.Errorf("posting: %w", twitter.APIError{Errors: []twitter.ErrorDetail{{Code: 88}, {Code: 187}}}), want: true},
		{name: "rate limit", err: twitter.APIError{Errors: []twitter.ErrorDetail{{Code: 88}}}},
		{name: "transport", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateStatus(tt.err); got != tt.want {
				t.Errorf("isDuplicateStatus(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBestEffort(t *testing.T) {
	var logs bytes.Buffer
	called := false
	n := BestEffort{
		Channel: "telegram",
		Notifier: Func(func(context.Context, []string) error {
			called = true
			return errors.New("429 too many requests")
		}),
		Log: logger.New(logger.LevelInfo, &logs),
	}

	if err := (Multi{Func(func(context.Context, []string) error { return nil }), n}).Notify(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Notify() error = %v, want secondary failure swallowed", err)
	}
	if !called {
		t.Error("secondary channel not attempted")
	}
	for _, want := range []string{`"level":"WARN"`, `"channel":"telegram"`, "429 too many requests"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log missing %s:\n%s", want, logs.String())
		}
	}
}

func TestNewTwitterNotifier_MissingCredentials(t *testing.T) {
	if _, err := NewTwitterNotifier(context.Background(), config.Twitter{APIKey: "k"}, ""); err == nil {
		t.Error("NewTwitterNotifier() with partial credentials should fail")
	}
}

func TestFormatTweet(t *testing.T) {
	tests := []struct {
		name     string
		item     string
		link     string
		contains []string
	}{
		{
			name:     "short item with link",
			item:     "Kids Workshop Sat 10am",
			link:     "https://example.com/events",
			contains: []string{"Kids Workshop Sat 10am", "https://example.com/events", "🗓"},
		},
		{
			name:     "no link",
			item:     "Story Time",
			contains: []string{"Story Time"},
		},
		{
			name:     "very long item gets truncated",
			item:     strings.Repeat("Très longue description ", 30),
			link:     "https://example.com/events",
			contains: []string{"...", "https://example.com/events"},
		},
		{
			name:     "huge link is dropped",
			item:     "Event A",
			link:     "https://example.com/" + strings.Repeat("a", 300),
			contains: []string{"Event A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTweet(tt.item, tt.link)

			if n := utf8.RuneCountInString(got); n > tweetLimit {
				t.Errorf("formatTweet() length = %d, want <= %d", n, tweetLimit)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("formatTweet() missing %q in tweet:\n%s", want, got)
				}
			}
		})
	}
}
