package enrich

import (
	"context"
	"time"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/logger"
	"github.com/hirevox/hirevox/roster"
)

// Summary counts the outcome of an EnrichAll pass.
type Summary struct {
	Enriched int `json:"enriched"`
	Unknown  int `json:"unknown"`
	Skipped  int `json:"skipped"` // already enriched
	Failed   int `json:"failed"`  // lookup kept failing after retries
}

// Pipeline pulls un-enriched records from the store, queries the lookup,
// and writes localities back.
type Pipeline struct {
	store  *roster.Store
	lookup Lookup

	maxRetries int
	retryDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error // injectable for tests
}

// NewPipeline wires a pipeline from config.
func NewPipeline(store *roster.Store, lookup Lookup, cfg am.EnrichConfig) *Pipeline {
	return &Pipeline{
		store:      store,
		lookup:     lookup,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		sleep:      sleepCtx,
	}
}

// Enrich resolves and stores the locality for one record. A lookup miss is
// a soft failure: the unknown sentinel is stored and no error returned.
// Unless force is set, records that already carry a locality are left
// alone, so re-running the pipeline never re-queries resolved numbers.
func (p *Pipeline) Enrich(ctx context.Context, normalized string, force bool) (string, error) {
	rec, err := p.store.Get(normalized)
	if err != nil {
		return "", err
	}
	if rec.Locality != "" && !force {
		return rec.Locality, nil
	}

	locality, err := p.resolve(ctx, normalized)
	if err != nil {
		return "", err
	}
	if err := p.store.SetLocality(normalized, locality); err != nil {
		return "", err
	}
	return locality, nil
}

// resolve queries the lookup, retrying transient failures with a linear
// backoff. Not-found is final on the first signal.
func (p *Pipeline) resolve(ctx context.Context, normalized string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, time.Duration(attempt)*p.retryDelay); err != nil {
				return "", err
			}
		}

		locality, err := p.lookup.Locality(ctx, normalized)
		switch {
		case err == nil:
			return locality, nil
		case errors.IsNotFound(err):
			return UnknownLocality, nil
		case errors.IsTransient(err):
			lastErr = err
			logger.Warnw("locality lookup unavailable, retrying",
				"phone", normalized, "attempt", attempt+1, "error", err)
		default:
			return "", err
		}
	}
	return "", errors.Wrapf(lastErr, "locality lookup failed after %d attempts", p.maxRetries+1)
}

// EnrichAll runs Enrich over every record, in first-seen order. A
// non-empty sessionID restricts the pass to that session's records.
// Individual lookup failures are counted, not fatal; cancellation stops
// the pass immediately.
func (p *Pipeline) EnrichAll(ctx context.Context, sessionID string, force bool) (Summary, error) {
	var sum Summary
	for _, rec := range p.store.List(sessionID) {
		if err := ctx.Err(); err != nil {
			return sum, errors.Wrap(errors.ErrCancelled, "enrichment pass stopped")
		}
		if rec.Locality != "" && !force {
			sum.Skipped++
			continue
		}

		locality, err := p.Enrich(ctx, rec.Normalized, force)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, errors.ErrCancelled):
			return sum, errors.Wrap(errors.ErrCancelled, "enrichment pass stopped")
		case err != nil:
			sum.Failed++
			logger.Errorw("enrichment failed", "phone", rec.Normalized, "error", err)
		case locality == UnknownLocality:
			sum.Unknown++
		default:
			sum.Enriched++
		}
	}

	logger.Infow("enrichment pass complete",
		"enriched", sum.Enriched, "unknown", sum.Unknown,
		"skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
