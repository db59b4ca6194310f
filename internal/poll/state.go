// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package poll

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/antiplagiat/internal/logging"
	"github.com/pdiddy/antiplagiat/internal/report"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

// State is the client's view of one task: Pending, Processing,
// Completed with its Report, or Failed with a reason. The zero State
// means nothing has been observed yet.
type State struct {
	Status types.Status
	Report *types.Report
	Reason string
}

func Pending() State    { return State{Status: types.StatusPending} }
func Processing() State { return State{Status: types.StatusProcessing} }

func Completed(r types.Report) State {
	return State{Status: types.StatusCompleted, Report: &r}
}

func Failed(reason string) State {
	return State{Status: types.StatusFailed, Reason: reason}
}

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool { return s.Status.Terminal() }

func (s State) String() string {
	switch s.Status {
	case "":
		return "unobserved"
	case types.StatusFailed:
		return "failed: " + s.Reason
	}
	return string(s.Status)
}

// ProtocolError reports an engine response that contradicts what was
// already observed for the task, such as a terminal task going back to
// processing.
type ProtocolError struct {
	TaskID types.TaskID
	From   types.Status
	To     types.Status
	Msg    string
}

func (e *ProtocolError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("task %s: protocol violation: %s", e.TaskID, e.Msg)
	}
	return fmt.Sprintf("task %s: protocol violation: %s after %s", e.TaskID, e.To, e.From)
}

// Tracker follows one task's state across fetches. The first completed
// observation is aggregated and cached; later observations may repeat
// the terminal state but never replace it. A Tracker is not safe for
// concurrent use; use one per task.
type Tracker struct {
	id    types.TaskID
	agg   *report.Aggregator
	log   logrus.FieldLogger
	state State
}

// NewTracker returns a Tracker for task id.
func NewTracker(id types.TaskID, agg *report.Aggregator, log logrus.FieldLogger) *Tracker {
	if agg == nil {
		agg = report.NewAggregator(log)
	}
	return &Tracker{id: id, agg: agg, log: logging.OrDiscard(log).WithField("task_id", id)}
}

// State returns the current state.
func (t *Tracker) State() State { return t.state }

// Observe applies a fetched result. catalog is passed to the aggregator
// when raw is the first completed observation. A result that would move
// the task out of a terminal state yields *ProtocolError and leaves the
// cached state untouched.
func (t *Tracker) Observe(raw types.RawResult, catalog []types.Source) (State, error) {
	if raw.TaskID != "" && raw.TaskID != t.id {
		return t.state, &ProtocolError{TaskID: t.id, Msg: fmt.Sprintf("result is for task %s", raw.TaskID)}
	}

	if t.state.Terminal() {
		if raw.Status == t.state.Status {
			return t.state, nil
		}
		return t.state, &ProtocolError{TaskID: t.id, From: t.state.Status, To: raw.Status}
	}

	var next State
	switch raw.Status {
	case types.StatusPending:
		if t.state.Status == types.StatusProcessing {
			t.log.Warn("task went back from processing to pending")
		}
		next = Pending()
	case types.StatusProcessing:
		next = Processing()
	case types.StatusCompleted:
		r, err := t.agg.Aggregate(raw, catalog)
		if err != nil {
			return t.state, err
		}
		next = Completed(r)
	case types.StatusFailed:
		reason := raw.Error
		if reason == "" {
			reason = raw.Note
		}
		if reason == "" {
			reason = "no reason given"
		}
		next = Failed(reason)
	default:
		return t.state, &types.UnknownStatusError{TaskID: t.id, Status: string(raw.Status)}
	}

	if next.Status != t.state.Status {
		t.log.WithFields(logrus.Fields{"from": t.state.Status, "to": next.Status}).Debug("task state changed")
	}
	t.state = next
	return t.state, nil
}
