// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/antiplagiat/internal/archive"
	"github.com/pdiddy/antiplagiat/internal/check"
	"github.com/pdiddy/antiplagiat/internal/engine"
	"github.com/pdiddy/antiplagiat/internal/fakeengine"
	"github.com/pdiddy/antiplagiat/internal/logging"
	"github.com/pdiddy/antiplagiat/internal/poll"
	"github.com/pdiddy/antiplagiat/internal/report"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

// --- test helpers ---

func testApp(t *testing.T, srv *fakeengine.Server) (*app, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg := types.Config{
		Engine: types.EngineConfig{BaseURL: ts.URL},
		Poll: types.PollConfig{
			Interval:     time.Millisecond,
			MaxInterval:  2 * time.Millisecond,
			MaxAttempts:  20,
			MaxDuration:  5 * time.Second,
			FetchTimeout: time.Second,
		},
		Archive: types.ArchiveConfig{Dir: t.TempDir()},
	}
	a, err := newApp(cfg, logging.Discard(), ts.Client())
	require.NoError(t, err)
	return a, ts
}

func longText() string { return strings.Repeat("The quick brown fox. ", 8) }

func decodeReport(t *testing.T, data []byte) types.Report {
	t.Helper()
	var r types.Report
	require.NoError(t, json.Unmarshal(data, &r))
	return r
}

// --- commands ---

func TestCheckPrintsTaskID(t *testing.T) {
	srv := fakeengine.New()
	srv.Enqueue(fakeengine.Script{ID: "abc123", Steps: []types.RawResult{{Status: types.StatusPending}}})
	a, _ := testApp(t, srv)

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), a, longText(), checkOptions{Lang: types.LangEnglish}, &out))
	assert.Equal(t, "abc123\n", out.String())

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, types.LangEnglish, reqs[0].Lang)

	store, err := a.openArchive()
	require.NoError(t, err)
	defer store.Close()
	ids, err := store.PendingTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.TaskID{"abc123"}, ids)
}

func TestCheckShortTextIsRejectedLocally(t *testing.T) {
	srv := fakeengine.New()
	a, _ := testApp(t, srv)

	err := runCheck(context.Background(), a, "too short", checkOptions{NoArchive: true}, &bytes.Buffer{})
	var ve *check.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Empty(t, srv.Requests())
	assert.Equal(t, 2, exitCode(err))
}

func TestCheckWaitArchivesReport(t *testing.T) {
	originality := 40.0
	srv := fakeengine.New()
	srv.Enqueue(fakeengine.Script{ID: "t1", Steps: []types.RawResult{
		{Status: types.StatusProcessing},
		{
			Status:      types.StatusCompleted,
			Originality: &originality,
			Matches: []types.Match{
				{Start: 0, End: 9, SourceID: 7, Similarity: 0.9},
				{Start: 10, End: 19, SourceID: 7, Similarity: 0.7},
			},
			Sources: []types.Source{{ID: 7, Title: "Seven", URL: "https://seven.example", MatchCount: 2, AvgSimilarity: 0.8}},
		},
	}})
	a, ts := testApp(t, srv)

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), a, longText(), checkOptions{Wait: true, Format: "json"}, &out))
	r := decodeReport(t, out.Bytes())
	assert.Equal(t, types.TaskID("t1"), r.TaskID)
	require.Len(t, r.Sources, 1)
	assert.Equal(t, 2, r.Sources[0].MatchCount)

	// The archived copy is served without the engine.
	ts.Close()
	out.Reset()
	require.NoError(t, runReport(context.Background(), a, []types.TaskID{"t1"}, "json", false, &out))
	assert.Equal(t, 40.0, decodeReport(t, out.Bytes()).Originality)
}

func TestCheckRetriesTransientSubmitErrors(t *testing.T) {
	fake := fakeengine.New()
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		fake.ServeHTTP(w, r)
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	a, err := newApp(types.Config{
		Engine:  types.EngineConfig{BaseURL: ts.URL},
		Poll:    types.PollConfig{Interval: time.Millisecond, MaxInterval: time.Millisecond},
		Archive: types.ArchiveConfig{Dir: t.TempDir()},
	}, logging.Discard(), ts.Client())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), a, longText(), checkOptions{Retries: 1, NoArchive: true}, &out))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.NotEmpty(t, strings.TrimSpace(out.String()))
}

func TestReportWaitsForSeveralTasks(t *testing.T) {
	srv := fakeengine.New()
	srv.AddTask("a", types.RawResult{Status: types.StatusProcessing}, types.RawResult{Status: types.StatusCompleted, Originality: fptr(90)})
	srv.AddTask("b", types.RawResult{Status: types.StatusCompleted, Originality: fptr(80)})
	a, _ := testApp(t, srv)

	var out bytes.Buffer
	require.NoError(t, runReport(context.Background(), a, []types.TaskID{"a", "b"}, "json", true, &out))

	dec := json.NewDecoder(&out)
	var first, second types.Report
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, types.TaskID("a"), first.TaskID)
	assert.Equal(t, types.TaskID("b"), second.TaskID)
}

func TestReportUnknownTask(t *testing.T) {
	a, _ := testApp(t, fakeengine.New())

	err := runReport(context.Background(), a, []types.TaskID{"ghost"}, "table", false, &bytes.Buffer{})
	var nf *check.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Contains(t, describeError(err), "unknown task ghost")
}

func TestStatusAndDelete(t *testing.T) {
	srv := fakeengine.New()
	srv.AddTask("done", types.RawResult{Status: types.StatusCompleted, Originality: fptr(64)})
	srv.AddTask("bad", types.RawResult{Status: types.StatusFailed, Error: "engine exploded"})
	a, _ := testApp(t, srv)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runStatus(ctx, a, []types.TaskID{"done", "bad"}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "completed")
	assert.Contains(t, lines[0], "originality 64.0%")
	assert.Contains(t, lines[1], "engine exploded")

	out.Reset()
	require.NoError(t, runDelete(ctx, a, []types.TaskID{"done"}, &out))
	assert.Equal(t, "deleted done\n", out.String())

	out.Reset()
	err := runStatus(ctx, a, []types.TaskID{"done"}, &out)
	var nf *check.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Contains(t, out.String(), "error")
}

func TestStatusReportsArchivedTerminalRegression(t *testing.T) {
	srv := fakeengine.New()
	srv.AddTask("r1", types.RawResult{Status: types.StatusProcessing})
	a, _ := testApp(t, srv)
	ctx := context.Background()

	store, err := a.openArchive()
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, "r1", types.StatusFailed))
	store.Close()

	var out bytes.Buffer
	err = runStatus(ctx, a, []types.TaskID{"r1"}, &out)
	var perr *poll.ProtocolError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, types.StatusFailed, perr.From)
	assert.Equal(t, types.StatusProcessing, perr.To)
	assert.Contains(t, out.String(), "engine misbehaved")
	assert.Contains(t, out.String(), "processing after failed")

	store, err = a.openArchive()
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(ctx, archive.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.StatusFailed, entries[0].Status)
}

func TestSourcesAndHealth(t *testing.T) {
	srv := fakeengine.New()
	a, _ := testApp(t, srv)
	ctx := context.Background()

	err := runSources(ctx, a, false, &bytes.Buffer{})
	assert.True(t, errors.Is(err, check.ErrNoCatalog))
	assert.Equal(t, "this engine does not publish a source catalog", describeError(err))

	srv.SetCatalog([]types.Source{{ID: 1, Title: "One", URL: "https://one.example", Domain: "one.example"}})
	var out bytes.Buffer
	require.NoError(t, runSources(ctx, a, false, &out))
	assert.Contains(t, out.String(), "one.example")
	assert.Contains(t, out.String(), "1 sources")

	out.Reset()
	require.NoError(t, runHealth(ctx, a, &out))
	assert.Contains(t, out.String(), "status:   healthy")
}

func TestArchiveSyncAndExport(t *testing.T) {
	srv := fakeengine.New()
	srv.AddTask("s1", types.RawResult{Status: types.StatusProcessing}, types.RawResult{Status: types.StatusCompleted, Originality: fptr(55)})
	srv.AddTask("s2", types.RawResult{Status: types.StatusFailed, Error: "no"})
	a, _ := testApp(t, srv)
	ctx := context.Background()

	store, err := a.openArchive()
	require.NoError(t, err)
	require.NoError(t, store.RecordSubmission(ctx, "s1", types.CheckRequest{Text: longText()}))
	require.NoError(t, store.RecordSubmission(ctx, "s2", types.CheckRequest{Text: longText()}))
	store.Close()

	var out bytes.Buffer
	err = runArchiveSync(ctx, a, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "synced  s1")
	assert.Contains(t, out.String(), "failed  s2")

	store, err = a.openArchive()
	require.NoError(t, err)
	defer store.Close()

	ids, err := store.PendingTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	out.Reset()
	require.NoError(t, runArchiveList(ctx, store, archive.ListOptions{Status: types.StatusCompleted}, false, &out))
	assert.Contains(t, out.String(), "s1")
	assert.Contains(t, out.String(), "55.0%")

	out.Reset()
	require.NoError(t, runArchiveExport(ctx, store, archive.ListOptions{}, "json", &out))
	var entries []archive.ExportEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	assert.Len(t, entries, 2)

	assert.Error(t, runArchiveExport(ctx, store, archive.ListOptions{}, "csv", &out))
}

// --- configuration and errors ---

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("ANTIPLAGIAT_ENGINE_BASE_URL", "http://engine.internal:9000")
	t.Setenv("ANTIPLAGIAT_POLL_MAX_ATTEMPTS", "7")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ANTIPLAGIAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.Set("poll.interval", "250ms")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "http://engine.internal:9000", cfg.Engine.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 7, cfg.Poll.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Poll.MaxDuration)
	assert.Equal(t, ".antiplagiat", cfg.Archive.Dir)
}

func TestNewAppRateLimiter(t *testing.T) {
	a, err := newApp(types.Config{
		Engine: types.EngineConfig{BaseURL: "http://localhost:8001"},
		Poll:   types.PollConfig{Rate: 0.5},
	}, logging.Discard(), nil)
	require.NoError(t, err)
	require.NotNil(t, a.limiter)
	assert.Equal(t, 1, a.limiter.Burst())

	_, err = newApp(types.Config{Engine: types.EngineConfig{BaseURL: "ftp://x"}}, logging.Discard(), nil)
	assert.Error(t, err)
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &poll.TimeoutError{TaskID: "t", Attempts: 3, LastStatus: types.StatusProcessing}, "gave up waiting: task t still processing after 3 attempts"},
		{"failed", &poll.TaskFailedError{TaskID: "t", Reason: "boom"}, "check t failed on the engine: boom"},
		{"unknown status", &types.UnknownStatusError{TaskID: "t", Status: "queued"}, `engine returned unknown status "queued" for task t`},
		{"protocol", &poll.ProtocolError{TaskID: "t", From: types.StatusCompleted, To: types.StatusProcessing}, "engine misbehaved"},
		{"not ready", &report.NotReadyError{TaskID: "t", Status: types.StatusProcessing}, "t"},
		{"api", &engine.APIError{Method: "POST", Path: "/api/v1/check", Status: 500, Detail: "oops"}, "engine rejected the request"},
		{"network", &engine.NetworkError{Op: "GET /health", Err: errors.New("refused")}, "engine unreachable"},
		{"cancelled", context.Canceled, "interrupted"},
		{"archive", archive.ErrNotArchived, "--refresh"},
		{"other", errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, describeError(tt.err), tt.want)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(&check.ValidationError{Field: "text"}))
	assert.Equal(t, 3, exitCode(&poll.TimeoutError{TaskID: "t"}))
	assert.Equal(t, 1, exitCode(errors.New("x")))
}

func fptr(v float64) *float64 { return &v }
