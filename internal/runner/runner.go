package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/events-watch/internal/config"
	"github.com/pfrederiksen/events-watch/internal/event"
	"github.com/pfrederiksen/events-watch/internal/logger"
	"github.com/pfrederiksen/events-watch/internal/notifier"
	"github.com/pfrederiksen/events-watch/internal/scraper"
	"github.com/pfrederiksen/events-watch/internal/storage"
)

var (
	// ErrNotify wraps notification failures. State is not saved after one.
	ErrNotify = errors.New("sending notification")
	// ErrEmptyFetch is returned when the page yields no items although items were
	// seen before, which usually means the page layout or selectors changed.
	ErrEmptyFetch = errors.New("page returned no items")
)

// Runner performs one check
type Runner struct {
	Config   config.Config
	Store    storage.Store
	Fetcher  scraper.Fetcher
	Notifier notifier.Notifier
	Logger   *logger.Logger
	Metrics  *logger.Metrics

	// DryRun skips saving state. The notifier is expected to be a dry-run one too.
	DryRun bool
}

// Result describes a finished run
type Result struct {
	CheckedAt time.Time `json:"checked_at"`
	Previous  event.Set `json:"previous"`
	Current   event.Set `json:"current"`
	New       event.Set `json:"new"`
	Notified  bool      `json:"notified"`
	Saved     bool      `json:"saved"`
}

// NewItems returns the new items sorted for display
func (r *Result) NewItems() []string {
	return r.New.Sorted()
}

// Run performs the check. On error the returned Result holds whatever was learned
// before the failure and may be nil if the run never started.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.Config.Validate(); err != nil {
		return nil, err
	}
	if r.Metrics == nil {
		r.Metrics = logger.NewMetrics()
	}

	log := r.Logger
	result := &Result{CheckedAt: time.Now().UTC()}

	err := r.Metrics.Time("state.load", func() error {
		var err error
		result.Previous, err = r.Store.Load(ctx)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("loading state: %w", err)
	}
	r.Metrics.SetGauge("items.previous", float64(result.Previous.Len()))
	log.Info("Loaded previous state", logger.Fields{"items": result.Previous.Len()})

	var raw []string
	err = r.Metrics.Time("fetch", func() error {
		var err error
		raw, err = r.Fetcher.Fetch(ctx, r.Config.TargetURL, r.Config.ContainerSelector, r.Config.ItemSelector)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("fetching events: %w", err)
	}

	result.Current = event.Collect(raw)
	r.Metrics.SetGauge("items.raw", float64(len(raw)))
	r.Metrics.SetGauge("items.current", float64(result.Current.Len()))
	log.Info("Fetched page", logger.Fields{
		"url":   r.Config.TargetURL,
		"raw":   len(raw),
		"items": result.Current.Len(),
	})

	if result.Current.Len() == 0 && result.Previous.Len() > 0 && !r.Config.AllowEmpty {
		return result, fmt.Errorf("%w (previously %d); check the selectors or set ALLOW_EMPTY_FETCH", ErrEmptyFetch, result.Previous.Len())
	}

	result.New = event.Diff(result.Previous, result.Current)
	r.Metrics.SetGauge("items.new", float64(result.New.Len()))

	if result.New.Len() > 0 {
		items := result.New.Sorted()
		log.Info("New items found", logger.Fields{"count": len(items), "items": items})

		err := r.Metrics.Time("notify", func() error {
			return r.Notifier.Notify(ctx, items)
		})
		if err != nil {
			r.Metrics.IncrCounter("notify.failed")
			return result, fmt.Errorf("%w: %w", ErrNotify, err)
		}
		result.Notified = true
		r.Metrics.IncrCounter("notify.sent")
	} else {
		log.Info("No new items", nil)
	}

	if r.DryRun {
		log.Info("Dry run, state not saved", nil)
		return result, nil
	}

	err = r.Metrics.Time("state.save", func() error {
		return r.Store.Save(ctx, result.Current)
	})
	if err != nil {
		if !errors.Is(err, storage.ErrPersist) {
			err = fmt.Errorf("%w: %w", storage.ErrPersist, err)
		}
		return result, fmt.Errorf("saving state: %w", err)
	}
	result.Saved = true
	log.Debug("Saved state", logger.Fields{"items": result.Current.Len()})

	return result, nil
}
