package enrich

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/roster"
)

// scriptedLookup replays a fixed sequence of results per phone.
type scriptedLookup struct {
	results map[string][]lookupResult
	calls   map[string]int
}

type lookupResult struct {
	locality string
	err      error
}

func newScriptedLookup() *scriptedLookup {
	return &scriptedLookup{
		results: make(map[string][]lookupResult),
		calls:   make(map[string]int),
	}
}

func (l *scriptedLookup) script(phone string, results ...lookupResult) {
	l.results[phone] = results
}

func (l *scriptedLookup) Locality(_ context.Context, normalized string) (string, error) {
	i := l.calls[normalized]
	l.calls[normalized]++
	seq := l.results[normalized]
	if i >= len(seq) {
		return "", errors.Wrapf(errors.ErrNotFound, "no script for %s", normalized)
	}
	return seq[i].locality, seq[i].err
}

func testPipeline(t *testing.T, lookup Lookup) (*Pipeline, *roster.Store) {
	t.Helper()
	store := roster.NewStore()
	p := NewPipeline(store, lookup, am.EnrichConfig{MaxRetries: 3, RetryDelayMS: 1})
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p, store
}

func seed(t *testing.T, store *roster.Store, phone string) string {
	t.Helper()
	e, err := roster.ValidateEvent(roster.CandidateEvent{Phone: phone})
	require.NoError(t, err)
	res, err := store.Upsert(e)
	require.NoError(t, err)
	return res.Record.Normalized
}

func TestEnrichStoresLocality(t *testing.T) {
	lookup := newScriptedLookup()
	p, store := testPipeline(t, lookup)
	key := seed(t, store, "13800138000")
	lookup.script(key, lookupResult{locality: "北京"})

	got, err := p.Enrich(context.Background(), key, false)
	require.NoError(t, err)
	assert.Equal(t, "北京", got)

	rec, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "北京", rec.Locality)
}

func TestEnrichNotFoundStoresSentinelNoRetry(t *testing.T) {
	lookup := newScriptedLookup()
	p, store := testPipeline(t, lookup)
	key := seed(t, store, "13800138000")
	lookup.script(key, lookupResult{err: errors.ErrNotFound})

	got, err := p.Enrich(context.Background(), key, false)
	require.NoError(t, err)
	assert.Equal(t, UnknownLocality, got)
	assert.Equal(t, 1, lookup.calls[key]) // a miss is final, never retried

	rec, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, UnknownLocality, rec.Locality)
}

func TestEnrichRetriesTransient(t *testing.T) {
	lookup := newScriptedLookup()
	p, store := testPipeline(t, lookup)
	var delays []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	key := seed(t, store, "13800138000")
	lookup.script(key,
		lookupResult{err: errors.ErrTransient},
		lookupResult{err: errors.ErrTransient},
		lookupResult{locality: "上海"},
	)

	got, err := p.Enrich(context.Background(), key, false)
	require.NoError(t, err)
	assert.Equal(t, "上海", got)
	assert.Equal(t, 3, lookup.calls[key])
	// Linear backoff: the wait grows with the attempt number.
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestEnrichGivesUpAfterRetryBudget(t *testing.T) {
	lookup := newScriptedLookup()
	p, store := testPipeline(t, lookup)
	key := seed(t, store, "13800138000")
	lookup.script(key,
		lookupResult{err: errors.ErrTransient},
		lookupResult{err: errors.ErrTransient},
		lookupResult{err: errors.ErrTransient},
		lookupResult{err: errors.ErrTransient},
		lookupResult{locality: "never reached"},
	)

	_, err := p.Enrich(context.Background(), key, false)
	require.Error(t, err)
	assert.Equal(t, 4, lookup.calls[key]) // 1 initial + 3 retries

	rec, getErr := store.Get(key)
	require.NoError(t, getErr)
	assert.Empty(t, rec.Locality) // still un-enriched, eligible for a later pass
}

func TestEnrichIdempotentUnlessForced(t *testing.T) {
	lookup := newScriptedLookup()
	p, store := testPipeline(t, lookup)
	key := seed(t, store, "13800138000")
	lookup.script(key, lookupResult{locality: "深圳"}, lookupResult{locality: "广州"})

	_, err := p.Enrich(context.Background(), key, false)
	require.NoError(t, err)
	got, err := p.Enrich(context.Background(), key, false)
	require.NoError(t, err)
	assert.Equal(t, "深圳", got)
	assert.Equal(t, 1, lookup.calls[key])

	got, err = p.Enrich(context.Background(), key, true)
	require.NoError(t, err)
	assert.Equal(t, "广州", got)
}

func TestEnrichAllCountsOutcomes(t *testing.T) {
	lookup := newScriptedLookup()
	p, store := testPipeline(t, lookup)

	resolved := seed(t, store, "13800000001")
	missing := seed(t, store, "13800000002")
	already := seed(t, store, "13800000003")
	broken := seed(t, store, "13800000004")

	lookup.script(resolved, lookupResult{locality: "杭州"})
	lookup.script(missing, lookupResult{err: errors.ErrNotFound})
	require.NoError(t, store.SetLocality(already, "南京"))
	lookup.script(broken,
		lookupResult{err: errors.ErrTransient},
		lookupResult{err: errors.ErrTransient},
		lookupResult{err: errors.ErrTransient},
		lookupResult{err: errors.ErrTransient},
	)

	sum, err := p.EnrichAll(context.Background(), "", false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Enriched: 1, Unknown: 1, Skipped: 1, Failed: 1}, sum)
}

func TestEnrichAllCancellation(t *testing.T) {
	lookup := newScriptedLookup()
	p, store := testPipeline(t, lookup)
	seed(t, store, "13800000001")
	seed(t, store, "13800000002")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.EnrichAll(ctx, "", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestOfflineLookup(t *testing.T) {
	l := NewOfflineLookup()

	got, err := l.Locality(context.Background(), "+862188884444")
	require.NoError(t, err)
	assert.Equal(t, "上海", got)

	got, err = l.Locality(context.Background(), "+8675512345678")
	require.NoError(t, err)
	assert.Equal(t, "深圳", got)

	// Mobile numbers have no built-in data.
	_, err = l.Locality(context.Background(), "+8613800138000")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	// Non-mainland numbers are a miss, not an error class of their own.
	_, err = l.Locality(context.Background(), "+14155552671")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestOfflineLookupLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/prefixes.csv"
	require.NoError(t, os.WriteFile(path, []byte("1380013,北京\n1391234,上海\n"), 0o644))

	l := NewOfflineLookup()
	require.NoError(t, l.LoadTable(path))

	got, err := l.Locality(context.Background(), "+8613800138000")
	require.NoError(t, err)
	assert.Equal(t, "北京", got)
}
