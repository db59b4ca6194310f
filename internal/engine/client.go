// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine is the HTTP transport to the detection engine. It
// encodes requests, decodes JSON responses, and turns failures into
// *APIError or *NetworkError. It never retries.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/antiplagiat/internal/logging"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

const (
	defaultUserAgent = "antiplagiat/0.1"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client sends requests to one engine instance.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	log       logrus.FieldLogger
}

// NewClient returns a client for the engine at cfg.BaseURL. When hc is
// nil a client with cfg.Timeout is created.
func NewClient(cfg types.EngineConfig, hc *http.Client, log logrus.FieldLogger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("engine base URL is empty")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("engine base URL %q must start with http:// or https://", base)
	}

	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		baseURL:   base,
		http:      hc,
		userAgent: ua,
		log:       logging.OrDiscard(log),
	}, nil
}

// BaseURL returns the engine root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Send issues method on path with body encoded as JSON (nil for no body)
// and decodes a 2xx response into out (nil to discard it). Non-2xx
// responses yield *APIError; transport and decoding failures yield
// *NetworkError.
func (c *Client) Send(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "path": path, "request_id": requestID})
	log.Debug("engine request")

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Debug("engine request failed")
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Detail: parseDetail(data),
		}
		log.WithField("status", resp.StatusCode).Debug("engine returned error")
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	log.WithField("status", resp.StatusCode).Debug("engine response")
	return nil
}
