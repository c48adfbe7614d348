package dial

import (
	"context"
	"sync"
	"time"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/logger"
	"github.com/hirevox/hirevox/voice"
)

// Summary reports how a batch run ended.
type Summary struct {
	BatchID   string `json:"batch_id"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Scheduler drains call batches serially, in input order, with at least
// the batch interval between consecutive dial starts. One batch runs at a
// time unless the config allows concurrency.
type Scheduler struct {
	ledger   *Ledger
	renderer voice.Renderer
	caller   voice.Caller
	retry    *RetryController

	allowConcurrent bool

	mu      sync.Mutex
	running bool

	lastDialMu    sync.Mutex
	lastDialStart time.Time

	now   func() time.Time                                 // injectable for tests
	sleep func(ctx context.Context, d time.Duration) error // likewise
}

// NewScheduler wires a scheduler from dialer config.
func NewScheduler(ledger *Ledger, renderer voice.Renderer, caller voice.Caller, cfg am.DialerConfig) *Scheduler {
	return &Scheduler{
		ledger:          ledger,
		renderer:        renderer,
		caller:          caller,
		retry:           NewRetryController(cfg),
		allowConcurrent: cfg.AllowConcurrentBatches,
		now:             time.Now,
		sleep:           sleepCtx,
	}
}

// Run executes a batch to completion. Cancelling the context lets the
// in-flight call finish and marks every remaining job skipped; the batch
// still completes with a summary rather than vanishing mid-run.
func (s *Scheduler) Run(ctx context.Context, b *Batch) (Summary, error) {
	if !s.allowConcurrent {
		s.mu.Lock()
		if s.running {
			s.mu.Unlock()
			return Summary{}, errors.Wrap(errors.ErrConflict, "a batch is already running")
		}
		s.running = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
	}

	if err := s.ledger.CreateBatch(b); err != nil {
		return Summary{}, err
	}
	logger.Infow("batch started",
		"batch", b.ID, "jobs", len(b.Jobs), "interval", b.Interval, "template", b.TemplateName)

	sum := Summary{BatchID: b.ID}
	var abortReason string
	for _, job := range b.Jobs {
		if abortReason == "" && ctx.Err() != nil {
			abortReason = "batch cancelled"
		}
		if abortReason != "" {
			if !job.State.Terminal() {
				job.Skip(abortReason)
				s.persist(job)
			}
			sum.Skipped++
			continue
		}

		jobErr := s.runJob(ctx, b, job)
		switch job.State {
		case JobStateSucceeded:
			sum.Succeeded++
		case JobStateSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
		// A misconfigured template fails identically for every job;
		// skip the rest instead of burning through the batch.
		if jobErr != nil && errors.IsConfiguration(jobErr) {
			abortReason = "batch aborted: " + jobErr.Error()
		}
	}

	now := s.now()
	b.CompletedAt = &now
	if err := s.ledger.CompleteBatch(b.ID, now); err != nil {
		return sum, err
	}

	logger.Infow("batch complete",
		"batch", b.ID, "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

// runJob takes one job through render, pacing, and dial, returning the
// error that decided its fate (nil on success or skip).
func (s *Scheduler) runJob(ctx context.Context, b *Batch, job *Job) error {
	job.StartRendering()
	s.persist(job)

	audio, err := s.renderer.Render(ctx, voice.RenderRequest{
		Text:     b.Text,
		Template: b.TemplateName,
		Params:   b.TemplateParams,
	})
	if err != nil {
		job.Fail(err)
		s.persist(job)
		return err
	}

	// Pace off the previous dial start, not the previous completion, so a
	// slow provider call does not stretch the batch further.
	if err := s.waitInterval(ctx, b.Interval); err != nil {
		job.Skip("batch cancelled")
		s.persist(job)
		return nil
	}

	job.StartDialing()
	s.markDialStart()
	s.persist(job)

	// The in-flight provider call is allowed to finish on cancel; the
	// retry loop itself still observes ctx between attempts.
	callCtx := context.WithoutCancel(ctx)
	var result voice.CallResult
	_, err = s.retry.Do(ctx, func(context.Context) error {
		job.RecordAttempt()
		s.persist(job)
		var callErr error
		result, callErr = s.caller.Call(callCtx, job.Phone, audio)
		return callErr
	})
	if err != nil {
		job.Fail(err)
		s.persist(job)
		return err
	}

	job.Succeed(audio.Handle)
	s.persist(job)
	logger.Infow("job succeeded", "batch", b.ID, "phone", job.Phone, "call_id", result.CallID)
	return nil
}

// waitInterval blocks until at least the interval has passed since the
// previous dial start. Interruptible: a cancel during the wait returns
// immediately.
func (s *Scheduler) waitInterval(ctx context.Context, interval time.Duration) error {
	s.lastDialMu.Lock()
	last := s.lastDialStart
	s.lastDialMu.Unlock()
	if last.IsZero() {
		return ctx.Err()
	}

	remaining := interval - s.now().Sub(last)
	if remaining <= 0 {
		return ctx.Err()
	}
	return s.sleep(ctx, remaining)
}

func (s *Scheduler) markDialStart() {
	s.lastDialMu.Lock()
	s.lastDialStart = s.now()
	s.lastDialMu.Unlock()
}

// persist writes job state back to the ledger; persistence failures are
// logged rather than aborting the batch, the in-memory state machine
// stays authoritative for the run.
func (s *Scheduler) persist(job *Job) {
	if err := s.ledger.UpdateJob(job); err != nil {
		logger.Errorw("failed to persist job state",
			"job", job.ID, "state", job.State, "error", err)
	}
}
