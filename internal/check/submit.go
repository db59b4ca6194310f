// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package check submits texts to the detection engine and fetches task
// state. Every operation is a single request; errors from the transport
// are returned unchanged and retry policy is left to the caller.
package check

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/antiplagiat/internal/engine"
	"github.com/pdiddy/antiplagiat/internal/logging"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

const checkPath = "/api/v1/check"

// Sender is the transport the check operations run on. *engine.Client
// implements it.
type Sender interface {
	Send(ctx context.Context, method, path string, body, out interface{}) error
}

// Submitter creates check tasks.
type Submitter struct {
	transport Sender
	log       logrus.FieldLogger
}

// NewSubmitter returns a Submitter sending through transport.
func NewSubmitter(transport Sender, log logrus.FieldLogger) *Submitter {
	return &Submitter{transport: transport, log: logging.OrDiscard(log)}
}

// Submit validates req and creates a check task, returning its id.
// Invalid requests fail with *ValidationError without touching the
// network.
func (s *Submitter) Submit(ctx context.Context, req types.CheckRequest) (types.TaskID, error) {
	valid, err := Validate(req)
	if err != nil {
		return "", err
	}

	var sub types.Submission
	if err := s.transport.Send(ctx, http.MethodPost, checkPath, valid, &sub); err != nil {
		return "", err
	}
	if sub.TaskID == "" {
		return "", &engine.NetworkError{
			Op:  http.MethodPost + " " + checkPath,
			Err: errors.New("response has no task_id"),
		}
	}

	s.log.WithFields(logrus.Fields{
		"task_id":        sub.TaskID,
		"mode":           valid.Mode,
		"lang":           valid.Lang,
		"status":         sub.Status,
		"estimated_secs": sub.EstimatedTimeSeconds,
	}).Debug("check submitted")
	return sub.TaskID, nil
}
