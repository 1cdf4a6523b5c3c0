package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultStateFile    = "data/last_events.json"
	DefaultSubject      = "{count} new event(s) posted"
	DefaultIntro        = "New events were posted:"
	DefaultLinkText     = "View all events:"
	DefaultLoadTimeout  = 60 * time.Second
	DefaultWaitTimeout  = 30 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultSMTPTimeout  = 30 * time.Second
)

// required lists the settings every run needs, in the order they are reported
var required = []string{
	"TARGET_URL",
	"EVENTS_CONTAINER_SELECTOR",
	"EVENT_ITEM_SELECTOR",
	"NOTIFY_EMAIL",
	"FROM_EMAIL",
	"EMAIL_PASSWORD",
	"SMTP_HOST",
	"SMTP_PORT",
}

var (
	// ErrMissing is matched by every error caused by an absent required setting
	ErrMissing = errors.New("missing required configuration")
	// ErrInvalid is matched by errors caused by a setting with an unusable value
	ErrInvalid = errors.New("invalid configuration")
)

// MissingError lists every required setting that was absent
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required env vars: %s", strings.Join(e.Vars, ", "))
}

// Is makes errors.Is(err, ErrMissing) hold for a *MissingError
func (e *MissingError) Is(target error) bool {
	return target == ErrMissing
}

// SMTP holds outbound mail settings
type SMTP struct {
	Host     string
	Port     int
	From     string
	Password string
	To       string
	// Timeout bounds the delivery of one message, connecting included
	Timeout time.Duration
}

// Addr returns host:port
func (s SMTP) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Message holds the templates used to compose notifications
type Message struct {
	Subject  string
	Intro    string
	LinkText string
	LinkURL  string
}

// Telegram holds optional Telegram channel credentials
type Telegram struct {
	BotToken string
	ChatID   string
}

// Enabled reports whether both credentials are present
func (t Telegram) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Twitter holds optional Twitter channel credentials
type Twitter struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Enabled reports whether all four credentials are present
func (t Twitter) Enabled() bool {
	return t.APIKey != "" && t.APISecret != "" && t.AccessToken != "" && t.AccessSecret != ""
}

// Config is the complete, read-only configuration of one run
type Config struct {
	TargetURL         string
	ContainerSelector string
	ItemSelector      string

	SMTP     SMTP
	Message  Message
	Telegram Telegram
	Twitter  Twitter

	// Automated is set when running on a shared CI runner (GITHUB_ACTIONS=true),
	// where the state directory does not survive the run.
	Automated     bool
	EncryptionKey string
	StateFile     string
	GistID        string
	GitHubToken   string

	LoadTimeout  time.Duration
	WaitTimeout  time.Duration
	PollInterval time.Duration
	AllowEmpty   bool
	LogLevel     string
}

// Load seeds the environment from envFile when it exists, then reads the
// configuration. Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds and validates a Config from a variable lookup function
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(name string) string {
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}

	var missing []string
	for _, name := range required {
		if get(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingError{Vars: missing}
	}

	port, err := strconv.Atoi(get("SMTP_PORT"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: SMTP_PORT %q is not a number", ErrInvalid, get("SMTP_PORT"))
	}
	if port < 1 || port > 65535 {
		return Config{}, fmt.Errorf("%w: SMTP_PORT %d out of range", ErrInvalid, port)
	}

	cfg := Config{
		TargetURL:         get("TARGET_URL"),
		ContainerSelector: get("EVENTS_CONTAINER_SELECTOR"),
		ItemSelector:      get("EVENT_ITEM_SELECTOR"),
		SMTP: SMTP{
			Host:     get("SMTP_HOST"),
			Port:     port,
			From:     get("FROM_EMAIL"),
			Password: get("EMAIL_PASSWORD"),
			To:       get("NOTIFY_EMAIL"),
		},
		Message: Message{
			Subject:  withDefault(get("EMAIL_SUBJECT"), DefaultSubject),
			Intro:    withDefault(get("EMAIL_INTRO"), DefaultIntro),
			LinkText: withDefault(get("EMAIL_LINK_TEXT"), DefaultLinkText),
			LinkURL:  withDefault(get("EVENTS_LINK_URL"), get("TARGET_URL")),
		},
		Telegram: Telegram{
			BotToken: get("TELEGRAM_BOT_TOKEN"),
			ChatID:   get("TELEGRAM_CHAT_ID"),
		},
		Twitter: Twitter{
			APIKey:       get("TWITTER_API_KEY"),
			APISecret:    get("TWITTER_API_SECRET"),
			AccessToken:  get("TWITTER_ACCESS_TOKEN"),
			AccessSecret: get("TWITTER_ACCESS_SECRET"),
		},
		Automated:     strings.EqualFold(get("GITHUB_ACTIONS"), "true"),
		EncryptionKey: get("ARTIFACT_ENCRYPTION_KEY"),
		StateFile:     withDefault(get("STATE_FILE"), DefaultStateFile),
		GistID:        get("STATE_GIST_ID"),
		GitHubToken:   get("GITHUB_TOKEN"),
		PollInterval:  DefaultPollInterval,
		LogLevel:      get("LOG_LEVEL"),
	}

	if cfg.LoadTimeout, err = durationOr(get("LOAD_TIMEOUT"), DefaultLoadTimeout); err != nil {
		return Config{}, fmt.Errorf("%w: LOAD_TIMEOUT: %v", ErrInvalid, err)
	}
	if cfg.WaitTimeout, err = durationOr(get("WAIT_TIMEOUT"), DefaultWaitTimeout); err != nil {
		return Config{}, fmt.Errorf("%w: WAIT_TIMEOUT: %v", ErrInvalid, err)
	}
	if cfg.SMTP.Timeout, err = durationOr(get("SMTP_TIMEOUT"), DefaultSMTPTimeout); err != nil {
		return Config{}, fmt.Errorf("%w: SMTP_TIMEOUT: %v", ErrInvalid, err)
	}
	if v := get("ALLOW_EMPTY_FETCH"); v != "" {
		if cfg.AllowEmpty, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("%w: ALLOW_EMPTY_FETCH %q is not a boolean", ErrInvalid, v)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and usable
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"TARGET_URL", c.TargetURL},
		{"EVENTS_CONTAINER_SELECTOR", c.ContainerSelector},
		{"EVENT_ITEM_SELECTOR", c.ItemSelector},
		{"NOTIFY_EMAIL", c.SMTP.To},
		{"FROM_EMAIL", c.SMTP.From},
		{"EMAIL_PASSWORD", c.SMTP.Password},
		{"SMTP_HOST", c.SMTP.Host},
	}

	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if c.SMTP.Port == 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if c.Automated && c.EncryptionKey == "" {
		missing = append(missing, "ARTIFACT_ENCRYPTION_KEY")
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}

	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("%w: SMTP_PORT %d out of range", ErrInvalid, c.SMTP.Port)
	}
	u, err := url.Parse(c.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: TARGET_URL %q is not an http(s) URL", ErrInvalid, c.TargetURL)
	}
	if c.LoadTimeout <= 0 || c.WaitTimeout <= 0 || c.SMTP.Timeout < 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	if c.StateFile == "" {
		return fmt.Errorf("%w: state file path is empty", ErrInvalid)
	}
	if c.GistID != "" && c.GitHubToken == "" {
		return fmt.Errorf("%w: STATE_GIST_ID requires GITHUB_TOKEN", ErrInvalid)
	}

	return nil
}

// EncryptedStateFile is where the sealed state lives next to the plain file
func (c Config) EncryptedStateFile() string {
	return c.StateFile + ".enc"
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}
