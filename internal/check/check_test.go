// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package check

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/antiplagiat/internal/engine"
	"github.com/pdiddy/antiplagiat/internal/fakeengine"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

// countingSender records calls and fails if any are made.
type countingSender struct {
	calls int
}

func (c *countingSender) Send(context.Context, string, string, interface{}, interface{}) error {
	c.calls++
	return errors.New("unexpected network call")
}

func newEngine(t *testing.T, srv http.Handler) *engine.Client {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	c, err := engine.NewClient(types.EngineConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second},
		BaseURL:    ts.URL,
	}, ts.Client(), nil)
	require.NoError(t, err)
	return c
}

func text(n int) string {
	return strings.Repeat("x", n)
}

// --- Validation ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       types.CheckRequest
		wantField string
	}{
		{"exactly minimum", types.CheckRequest{Text: text(100)}, ""},
		{"cyrillic counted by character", types.CheckRequest{Text: strings.Repeat("ё", 100)}, ""},
		{"one short", types.CheckRequest{Text: text(99)}, "text"},
		{"empty", types.CheckRequest{}, "text"},
		{"too long", types.CheckRequest{Text: text(MaxTextLength + 1)}, "text"},
		{"deep english", types.CheckRequest{Text: text(150), Mode: types.ModeDeep, Lang: types.LangEnglish}, ""},
		{"bad mode", types.CheckRequest{Text: text(150), Mode: "slow"}, "mode"},
		{"bad lang", types.CheckRequest{Text: text(150), Lang: "fr"}, "lang"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want *ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.NotEmpty(t, ve.Constraint)
		})
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	got, err := Validate(types.CheckRequest{Text: text(120)})
	require.NoError(t, err)
	assert.Equal(t, types.ModeFast, got.Mode)
	assert.Equal(t, types.LangRussian, got.Lang)
	assert.Nil(t, got.ExcludeQuotes)
}

func TestValidationErrorNamesConstraint(t *testing.T) {
	_, err := Validate(types.CheckRequest{Text: text(42)})
	require.Error(t, err)
	assert.Equal(t, "invalid text: must be at least 100 characters, got 42", err.Error())
}

// --- Submit ---

func TestSubmitShortTextMakesNoNetworkCall(t *testing.T) {
	for _, n := range []int{0, 1, 50, 99} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			sender := &countingSender{}
			_, err := NewSubmitter(sender, nil).Submit(context.Background(), types.CheckRequest{Text: text(n)})

			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
			assert.Equal(t, 0, sender.calls)
		})
	}
}

func TestSubmitReturnsTaskID(t *testing.T) {
	srv := fakeengine.New()
	srv.Enqueue(fakeengine.Script{ID: "abc123", Steps: []types.RawResult{{Status: types.StatusPending}}})
	c := newEngine(t, srv)

	excl := false
	id, err := NewSubmitter(c, nil).Submit(context.Background(), types.CheckRequest{
		Text:          text(150),
		Lang:          types.LangKazakh,
		ExcludeQuotes: &excl,
	})
	require.NoError(t, err)
	assert.Equal(t, types.TaskID("abc123"), id)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, types.ModeFast, reqs[0].Mode)
	assert.Equal(t, types.LangKazakh, reqs[0].Lang)
	require.NotNil(t, reqs[0].ExcludeQuotes)
	assert.False(t, *reqs[0].ExcludeQuotes)
	assert.Nil(t, reqs[0].ExcludeBibliography)
}

func TestSubmitPassesAPIErrorThrough(t *testing.T) {
	c := newEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"detail":"engine overloaded"}`)
	}))

	_, err := NewSubmitter(c, nil).Submit(context.Background(), types.CheckRequest{Text: text(150)})
	var apiErr *engine.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "engine overloaded", apiErr.Detail)
}

func TestSubmitMissingTaskID(t *testing.T) {
	c := newEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"pending"}`)
	}))

	_, err := NewSubmitter(c, nil).Submit(context.Background(), types.CheckRequest{Text: text(150)})
	var netErr *engine.NetworkError
	assert.True(t, errors.As(err, &netErr), "got %v", err)
}

// --- Fetch ---

func TestFetchNonTerminalIsValid(t *testing.T) {
	srv := fakeengine.New()
	srv.AddTask("t1", types.RawResult{Status: "PROCESSING"})
	f := NewFetcher(newEngine(t, srv), nil)

	raw, err := f.Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, raw.Status)
	assert.Equal(t, types.TaskID("t1"), raw.TaskID)
	assert.Nil(t, raw.Originality)
	assert.Nil(t, raw.TotalChars)
}

func TestFetchCompleted(t *testing.T) {
	originality := 81.5
	srv := fakeengine.New()
	srv.AddTask("t1", types.RawResult{
		Status:      types.StatusCompleted,
		Originality: &originality,
		Matches:     []types.Match{{Start: 0, End: 5, SourceID: 7, Similarity: 0.9, Type: types.MatchLexical}},
		AIPowered:   true,
	})
	f := NewFetcher(newEngine(t, srv), nil)

	raw, err := f.Fetch(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, raw.Status)
	require.NotNil(t, raw.Originality)
	assert.Equal(t, 81.5, *raw.Originality)
	require.Len(t, raw.Matches, 1)
	assert.Equal(t, types.SourceID(7), raw.Matches[0].SourceID)
	assert.True(t, raw.AIPowered)
	assert.False(t, raw.CreatedAt.IsZero())
}

func TestFetchNotFound(t *testing.T) {
	f := NewFetcher(newEngine(t, fakeengine.New()), nil)

	_, err := f.Fetch(context.Background(), "missing")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, types.TaskID("missing"), nf.TaskID)

	var apiErr *engine.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Check not found", apiErr.Detail)
}

func TestFetchUnknownStatus(t *testing.T) {
	srv := fakeengine.New()
	srv.AddTask("t1", types.RawResult{Status: "queued"})
	f := NewFetcher(newEngine(t, srv), nil)

	_, err := f.Fetch(context.Background(), "t1")
	var use *types.UnknownStatusError
	require.True(t, errors.As(err, &use), "got %v", err)
	assert.Equal(t, "queued", use.Status)
	assert.Equal(t, types.TaskID("t1"), use.TaskID)
}

func TestFetchServerErrorPassesThrough(t *testing.T) {
	c := newEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := NewFetcher(c, nil).Fetch(context.Background(), "t1")
	var apiErr *engine.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)

	var nf *NotFoundError
	assert.False(t, errors.As(err, &nf))
}

func TestFetchEscapesTaskID(t *testing.T) {
	var path string
	c := newEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		fmt.Fprint(w, `{"status":"pending"}`)
	}))

	_, err := NewFetcher(c, nil).Fetch(context.Background(), "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/check/a%2Fb%20c", path)
}

func TestFetchEmptyID(t *testing.T) {
	sender := &countingSender{}
	_, err := NewFetcher(sender, nil).Fetch(context.Background(), "")

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, 0, sender.calls)
}

// --- Delete, Catalog, Health ---

func TestDelete(t *testing.T) {
	srv := fakeengine.New()
	srv.AddTask("t1", types.RawResult{Status: types.StatusCompleted})
	f := NewFetcher(newEngine(t, srv), nil)

	require.NoError(t, f.Delete(context.Background(), "t1"))

	var nf *NotFoundError
	assert.True(t, errors.As(f.Delete(context.Background(), "t1"), &nf))
}

func TestCatalogAbsent(t *testing.T) {
	f := NewFetcher(newEngine(t, fakeengine.New()), nil)

	_, err := f.Catalog(context.Background())
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestCatalogShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"id":1,"title":"One","url":"https://one.example","domain":"one.example"}]`},
		{"wrapped", `{"sources":[{"id":1,"title":"One","url":"https://one.example","domain":"one.example"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))

			sources, err := NewFetcher(c, nil).Catalog(context.Background())
			require.NoError(t, err)
			require.Len(t, sources, 1)
			assert.Equal(t, types.SourceID(1), sources[0].ID)
			assert.Equal(t, "one.example", sources[0].Domain)
		})
	}
}

func TestHealth(t *testing.T) {
	f := NewFetcher(newEngine(t, fakeengine.New()), nil)

	h, err := f.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "connected", h.Database)
}
