// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/pdiddy/antiplagiat/internal/archive"
	"github.com/pdiddy/antiplagiat/internal/check"
	"github.com/pdiddy/antiplagiat/internal/engine"
	"github.com/pdiddy/antiplagiat/internal/poll"
	"github.com/pdiddy/antiplagiat/internal/report"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

// app holds what the commands share: configuration, logger, and the
// engine-facing components built from them.
type app struct {
	cfg       types.Config
	log       logrus.FieldLogger
	client    *engine.Client
	submitter *check.Submitter
	fetcher   *check.Fetcher
	agg       *report.Aggregator
	limiter   *rate.Limiter
}

func newApp(cfg types.Config, log logrus.FieldLogger, hc *http.Client) (*app, error) {
	client, err := engine.NewClient(cfg.Engine, hc, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		client:    client,
		submitter: check.NewSubmitter(client, log),
		fetcher:   check.NewFetcher(client, log),
		agg:       report.NewAggregator(log),
	}
	// One limiter per process so concurrent waits share the budget.
	if cfg.Poll.Rate > 0 {
		burst := int(cfg.Poll.Rate)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.Poll.Rate), burst)
	}
	return a, nil
}

// appFromViper builds the app from the global configuration.
func appFromViper() (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return newApp(cfg, log, nil)
}

func (a *app) poller(opts ...poll.Option) *poll.Poller {
	if a.limiter != nil {
		opts = append(opts, poll.WithLimiter(a.limiter))
	}
	return poll.NewPoller(a.fetcher, a.agg, a.cfg.Poll, a.log, opts...)
}

func (a *app) openArchive() (*archive.Store, error) {
	return archive.NewStore(a.cfg.Archive)
}

// archiveObserver mirrors observed statuses into the archive. Archive
// failures are logged and never interrupt a wait.
func archiveObserver(ctx context.Context, store *archive.Store, log logrus.FieldLogger) poll.Observer {
	return func(id types.TaskID, s poll.State) {
		log.WithFields(logrus.Fields{"task_id": id, "state": s.String()}).Info("task observed")
		if store == nil {
			return
		}
		if err := store.UpdateStatus(ctx, id, s.Status); err != nil {
			log.WithError(err).WithField("task_id", id).Warn("archive status update failed")
		}
	}
}

// saveReport archives r. An already archived report is not an error.
func saveReport(ctx context.Context, store *archive.Store, r types.Report, log logrus.FieldLogger) {
	if store == nil {
		return
	}
	if err := store.SaveReport(ctx, r); err != nil && !errors.Is(err, archive.ErrReportExists) {
		log.WithError(err).WithField("task_id", r.TaskID).Warn("archiving report failed")
	}
}

// describeError turns the error kinds a caller can act on into one-line
// messages and leaves everything else as is.
func describeError(err error) string {
	var (
		validation *check.ValidationError
		notFound   *check.NotFoundError
		timeout    *poll.TimeoutError
		failed     *poll.TaskFailedError
		protocol   *poll.ProtocolError
		unknown    *types.UnknownStatusError
		notReady   *report.NotReadyError
		apiErr     *engine.APIError
		networkErr *engine.NetworkError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &notFound):
		return fmt.Sprintf("unknown task %s: the engine has no record of it", notFound.TaskID)
	case errors.As(err, &timeout):
		return fmt.Sprintf("gave up waiting: %s; run 'antiplagiat report %s' later", timeout.Error(), timeout.TaskID)
	case errors.As(err, &failed):
		return fmt.Sprintf("check %s failed on the engine: %s", failed.TaskID, failed.Reason)
	case errors.As(err, &protocol):
		return "engine misbehaved: " + protocol.Error()
	case errors.As(err, &unknown):
		return fmt.Sprintf("engine returned unknown status %q for task %s", unknown.Status, unknown.TaskID)
	case errors.As(err, &notReady):
		return notReady.Error()
	case errors.Is(err, check.ErrNoCatalog):
		return "this engine does not publish a source catalog"
	case errors.Is(err, archive.ErrNotArchived):
		return err.Error() + "; run 'antiplagiat report --refresh' to fetch it"
	case errors.As(err, &apiErr):
		return "engine rejected the request: " + apiErr.Error()
	case errors.As(err, &networkErr):
		return "engine unreachable: " + networkErr.Error()
	}
	return err.Error()
}

// exitCode separates caller mistakes (2) and timeouts (3) from other
// failures (1).
func exitCode(err error) int {
	var (
		validation *check.ValidationError
		timeout    *poll.TimeoutError
	)
	switch {
	case errors.As(err, &validation):
		return 2
	case errors.As(err, &timeout):
		return 3
	}
	return 1
}
