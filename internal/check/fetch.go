// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package check

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/antiplagiat/internal/engine"
	"github.com/pdiddy/antiplagiat/internal/logging"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

const (
	sourcesPath = "/api/v1/sources"
	healthPath  = "/health"
)

// ErrNoCatalog is returned by Catalog when the engine does not serve a
// source catalog.
var ErrNoCatalog = errors.New("engine has no source catalog")

var errEmptyTaskID = &ValidationError{Field: "task_id", Constraint: "must not be empty"}

// NotFoundError reports a task id the engine does not know, either never
// issued or expired.
type NotFoundError struct {
	TaskID types.TaskID
	Err    *engine.APIError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// Fetcher reads task state and auxiliary engine endpoints.
type Fetcher struct {
	transport Sender
	log       logrus.FieldLogger
}

// NewFetcher returns a Fetcher sending through transport.
func NewFetcher(transport Sender, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{transport: transport, log: logging.OrDiscard(log)}
}

// Fetch returns the task's state at the moment of the call. A non-terminal
// result is a normal return; its nullable fields may be nil. The status is
// normalised and any value outside the known set yields
// *types.UnknownStatusError.
func (f *Fetcher) Fetch(ctx context.Context, id types.TaskID) (types.RawResult, error) {
	if id == "" {
		return types.RawResult{}, errEmptyTaskID
	}
	var raw types.RawResult
	if err := f.transport.Send(ctx, http.MethodGet, taskPath(id), nil, &raw); err != nil {
		return types.RawResult{}, notFound(id, err)
	}

	status, err := types.ParseStatus(string(raw.Status))
	if err != nil {
		var use *types.UnknownStatusError
		if errors.As(err, &use) {
			use.TaskID = id
		}
		return types.RawResult{}, err
	}
	raw.Status = status
	if raw.TaskID == "" {
		raw.TaskID = id
	}

	f.log.WithFields(logrus.Fields{"task_id": id, "status": status}).Debug("task fetched")
	return raw, nil
}

// Delete removes a task and its result from the engine.
func (f *Fetcher) Delete(ctx context.Context, id types.TaskID) error {
	if id == "" {
		return errEmptyTaskID
	}
	return notFound(id, f.transport.Send(ctx, http.MethodDelete, taskPath(id), nil, nil))
}

// Catalog returns the engine's source catalog. The endpoint is optional:
// 404 and 405 map to ErrNoCatalog. The body may be a bare array or an
// object with a "sources" array.
func (f *Fetcher) Catalog(ctx context.Context) ([]types.Source, error) {
	var body json.RawMessage
	if err := f.transport.Send(ctx, http.MethodGet, sourcesPath, nil, &body); err != nil {
		var apiErr *engine.APIError
		if errors.As(err, &apiErr) &&
			(apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusMethodNotAllowed) {
			return nil, ErrNoCatalog
		}
		return nil, err
	}

	body = bytes.TrimSpace(body)
	var sources []types.Source
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &sources); err != nil {
			return nil, &engine.NetworkError{Op: http.MethodGet + " " + sourcesPath, Err: err}
		}
		return sources, nil
	}

	var wrapped struct {
		Sources []types.Source `json:"sources"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, &engine.NetworkError{Op: http.MethodGet + " " + sourcesPath, Err: err}
	}
	return wrapped.Sources, nil
}

// Health calls the engine's liveness probe.
func (f *Fetcher) Health(ctx context.Context) (types.HealthStatus, error) {
	var h types.HealthStatus
	if err := f.transport.Send(ctx, http.MethodGet, healthPath, nil, &h); err != nil {
		return types.HealthStatus{}, err
	}
	return h, nil
}

func taskPath(id types.TaskID) string {
	return checkPath + "/" + url.PathEscape(string(id))
}

// notFound converts a 404 APIError into *NotFoundError and passes every
// other error through.
func notFound(id types.TaskID, err error) error {
	var apiErr *engine.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return &NotFoundError{TaskID: id, Err: apiErr}
	}
	return err
}
