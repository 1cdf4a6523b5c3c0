package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/events-watch/internal/crypto"
	"github.com/pfrederiksen/events-watch/internal/event"
	"github.com/pfrederiksen/events-watch/internal/logger"
)

const (
	gistAPIURL   = "https://api.github.com/gists"
	gistFilename = "last_events.json.enc"
	gistTimeout  = 15 * time.Second
)

// GistStore keeps the sealed state, base64 encoded, in a private GitHub Gist. It lets
// ephemeral runners hand state to the next run without artifact upload steps.
type GistStore struct {
	gistID  string
	baseURL string
	client  *resty.Client
	enc     *crypto.Encryptor
	log     *logger.Logger
}

// NewGistStore creates a Gist-backed store. The encryptor is mandatory: the Gist is
// readable by anyone holding the token.
func NewGistStore(gistID, githubToken string, enc *crypto.Encryptor, log *logger.Logger) (*GistStore, error) {
	if gistID == "" {
		return nil, fmt.Errorf("gist ID is required")
	}
	if githubToken == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}
	if enc == nil {
		return nil, fmt.Errorf("encryption key is required for gist storage")
	}

	client := resty.New().
		SetTimeout(gistTimeout).
		SetHeader("Authorization", "token "+githubToken).
		SetHeader("Accept", "application/vnd.github.v3+json")

	return &GistStore{
		gistID:  gistID,
		baseURL: gistAPIURL,
		client:  client,
		enc:     enc,
		log:     log,
	}, nil
}

func (g *GistStore) url() string {
	return fmt.Sprintf("%s/%s", g.baseURL, g.gistID)
}

// Load fetches the sealed state from the Gist. A Gist without the state file is an
// empty set; an unreachable Gist is an error because the previous state is unknown.
func (g *GistStore) Load(ctx context.Context) (event.Set, error) {
	resp, err := g.client.R().SetContext(ctx).Get(g.url())
	if err != nil {
		return event.Set{}, fmt.Errorf("fetching gist: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		// Don't include response body in error to prevent information leakage
		return event.Set{}, fmt.Errorf("GitHub API error (status %d)", resp.StatusCode())
	}

	var gistResp struct {
		Files map[string]struct {
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal(resp.Body(), &gistResp); err != nil {
		return event.Set{}, fmt.Errorf("decoding gist response: %w", err)
	}

	file, exists := gistResp.Files[gistFilename]
	if !exists || file.Content == "" {
		g.log.Info("Gist has no state yet", logger.Fields{"gist_id": g.gistID})
		return event.NewSet(), nil
	}

	fields := logger.Fields{"gist_id": g.gistID}
	data, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		g.log.Warn("Gist state is not base64, starting from empty state", withError(fields, err))
		return event.NewSet(), nil
	}

	return openSealed(data, g.enc, g.log, fields), nil
}

// Save seals the set and replaces the state file in the Gist
func (g *GistStore) Save(ctx context.Context, set event.Set) error {
	sealed, err := seal(set, g.enc)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"files": map[string]interface{}{
			gistFilename: map[string]string{
				"content": base64.StdEncoding.EncodeToString(sealed),
			},
		},
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Patch(g.url())
	if err != nil {
		return fmt.Errorf("%w: updating gist: %w", ErrPersist, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: GitHub API error (status %d)", ErrPersist, resp.StatusCode())
	}
	return nil
}
