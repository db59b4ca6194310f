// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package poll waits for check tasks to finish. It repeatedly fetches a
// task, tracks its state, and aggregates the report once the task
// completes, within an attempt and wall-clock budget. Tasks are
// independent; nothing is shared between concurrent waits except what
// the caller passes in.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/antiplagiat/internal/check"
	"github.com/pdiddy/antiplagiat/internal/engine"
	"github.com/pdiddy/antiplagiat/internal/httputil"
	"github.com/pdiddy/antiplagiat/internal/logging"
	"github.com/pdiddy/antiplagiat/internal/report"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

const (
	defaultInterval             = 2 * time.Second
	defaultMaxInterval          = 15 * time.Second
	defaultMultiplier           = 1.5
	defaultMaxAttempts          = 60
	defaultMaxDuration          = 5 * time.Minute
	defaultFetchTimeout         = 15 * time.Second
	defaultMaxConsecutiveErrors = 3
)

// Fetcher is the subset of *check.Fetcher the poller needs.
type Fetcher interface {
	Fetch(ctx context.Context, id types.TaskID) (types.RawResult, error)
	Catalog(ctx context.Context) ([]types.Source, error)
}

// Limiter paces fetches. *rate.Limiter from golang.org/x/time/rate
// implements it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Observer is called after every successful observation of a task.
type Observer func(id types.TaskID, s State)

// TimeoutError is returned when a task is still running after the
// attempt or duration budget is spent.
type TimeoutError struct {
	TaskID     types.TaskID
	Attempts   int
	Elapsed    time.Duration
	LastStatus types.Status
}

func (e *TimeoutError) Error() string {
	last := string(e.LastStatus)
	if last == "" {
		last = "unobserved"
	}
	return fmt.Sprintf("task %s still %s after %d attempts (%s)",
		e.TaskID, last, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// TaskFailedError is returned when the engine reports the task as failed.
type TaskFailedError struct {
	TaskID types.TaskID
	Reason string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Reason)
}

// Option configures a Poller.
type Option func(*Poller)

// WithLimiter paces every fetch through l.
func WithLimiter(l Limiter) Option {
	return func(p *Poller) { p.limiter = l }
}

// WithObserver registers fn to see each observed state.
func WithObserver(fn Observer) Option {
	return func(p *Poller) { p.observe = fn }
}

// Poller runs the fetch loop for individual tasks.
type Poller struct {
	fetcher Fetcher
	agg     *report.Aggregator
	cfg     types.PollConfig
	limiter Limiter
	observe Observer
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewPoller returns a Poller. Zero fields in cfg take their defaults.
func NewPoller(f Fetcher, agg *report.Aggregator, cfg types.PollConfig, log logrus.FieldLogger, opts ...Option) *Poller {
	log = logging.OrDiscard(log)
	if agg == nil {
		agg = report.NewAggregator(log)
	}
	p := &Poller{
		fetcher: f,
		agg:     agg,
		cfg:     withDefaults(cfg),
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Poller) Config() types.PollConfig { return p.cfg }

func withDefaults(cfg types.PollConfig) types.PollConfig {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	if cfg.MaxInterval < cfg.Interval {
		cfg.MaxInterval = cfg.Interval
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = defaultMultiplier
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = defaultMaxConsecutiveErrors
	}
	return cfg
}

// Wait polls task id until it completes, fails, or the budget runs out.
// It returns the aggregated report on completion, *TaskFailedError on
// failure, *TimeoutError when the budget is spent, and ctx.Err() when
// the caller cancels. Abandoning a wait leaves nothing behind but the
// in-flight request, which is bounded by FetchTimeout.
func (p *Poller) Wait(ctx context.Context, id types.TaskID) (types.Report, error) {
	log := p.log.WithField("task_id", id)
	tracker := NewTracker(id, p.agg, p.log)
	backoff := httputil.Backoff{
		Initial:    p.cfg.Interval,
		Max:        p.cfg.MaxInterval,
		Multiplier: p.cfg.Multiplier,
	}

	start := p.now()
	failures := 0
	waits := 0
	for attempt := 0; ; attempt++ {
		if attempt >= p.cfg.MaxAttempts || p.now().Sub(start) >= p.cfg.MaxDuration {
			return types.Report{}, &TimeoutError{
				TaskID:     id,
				Attempts:   attempt,
				Elapsed:    p.now().Sub(start),
				LastStatus: tracker.State().Status,
			}
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return types.Report{}, err
			}
		}

		raw, err := p.fetch(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return types.Report{}, ctx.Err()
			}
			failures++
			if !Transient(err) || failures >= p.cfg.MaxConsecutiveErrors {
				return types.Report{}, err
			}
			log.WithError(err).WithField("failures", failures).Warn("fetch failed; retrying")
		} else {
			failures = 0

			var catalog []types.Source
			if raw.Status == types.StatusCompleted && !tracker.State().Terminal() && report.NeedsCatalog(raw) {
				catalog = p.catalog(ctx, log)
			}

			state, err := tracker.Observe(raw, catalog)
			if err != nil {
				return types.Report{}, err
			}
			if p.observe != nil {
				p.observe(id, state)
			}

			switch state.Status {
			case types.StatusCompleted:
				return *state.Report, nil
			case types.StatusFailed:
				return types.Report{}, &TaskFailedError{TaskID: id, Reason: state.Reason}
			}
		}

		remaining := p.cfg.MaxDuration - p.now().Sub(start)
		delay := backoff.Delay(waits)
		waits++
		if delay > remaining {
			delay = remaining
		}
		if err := httputil.Sleep(ctx, delay); err != nil {
			return types.Report{}, err
		}
	}
}

func (p *Poller) fetch(ctx context.Context, id types.TaskID) (types.RawResult, error) {
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()
	return p.fetcher.Fetch(fctx, id)
}

// catalog fetches the engine's source catalog. Failures are not fatal:
// aggregation proceeds without it.
func (p *Poller) catalog(ctx context.Context, log logrus.FieldLogger) []types.Source {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	sources, err := p.fetcher.Catalog(cctx)
	if err != nil {
		log.WithError(err).Debug("source catalog unavailable")
		return nil
	}
	return sources
}

// Transient reports whether a fetch error is worth another attempt:
// transport failures and 429/5xx responses. Unknown tasks, unknown
// statuses, and other client errors are not.
func Transient(err error) bool {
	var nf *check.NotFoundError
	if errors.As(err, &nf) {
		return false
	}
	var netErr *engine.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *engine.APIError
	if errors.As(err, &apiErr) {
		return httputil.RetryableStatus(apiErr.Status)
	}
	return false
}

// Result is the outcome of waiting for one task in WaitAll.
type Result struct {
	TaskID types.TaskID
	Report types.Report
	Err    error
}

// WaitAll waits for every id concurrently and returns one Result per id,
// in input order.
func WaitAll(ctx context.Context, p *Poller, ids []types.TaskID) []Result {
	results := make([]Result, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id types.TaskID) {
			defer wg.Done()
			r, err := p.Wait(ctx, id)
			results[i] = Result{TaskID: id, Report: r, Err: err}
		}(i, id)
	}

	wg.Wait()
	return results
}
