// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fakeengine is a scripted stand-in for the detection engine. It
// serves the engine's HTTP API and replays pre-recorded task states; it
// never inspects the submitted text beyond request validation.
package fakeengine

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pdiddy/antiplagiat/pkg/types"
)

const (
	minText = 100
	maxText = 500000
)

// Script is the sequence of states a task reports on successive fetches.
// The last state repeats once reached.
type Script struct {
	// ID forces the task id; empty means a random uuid.
	ID    types.TaskID      `yaml:"id,omitempty"`
	Steps []types.RawResult `yaml:"steps"`
}

type task struct {
	steps   []types.RawResult
	next    int
	fetches int
}

// Server implements http.Handler. It is safe for concurrent use.
type Server struct {
	router *mux.Router

	mu       sync.Mutex
	tasks    map[types.TaskID]*task
	queue    []Script
	catalog  []types.Source
	requests []types.CheckRequest
	now      func() time.Time
}

// New returns an empty engine with no catalog endpoint.
func New() *Server {
	s := &Server{
		tasks: make(map[types.TaskID]*task),
		now:   time.Now,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/check", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/check/{task_id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/check/{task_id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/api/v1/sources", s.handleSources).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Enqueue schedules scripts for the next submissions, in order. A
// submission with no queued script completes immediately with no matches.
func (s *Server) Enqueue(scripts ...Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scripts...)
}

// AddTask registers a task directly, as if it had been submitted earlier.
// With no steps the task is already completed with no matches.
func (s *Server) AddTask(id types.TaskID, steps ...types.RawResult) {
	if len(steps) == 0 {
		steps = []types.RawResult{defaultResult("")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = &task{steps: s.stamp(id, steps)}
}

// SetCatalog enables GET /api/v1/sources. A nil catalog disables it.
func (s *Server) SetCatalog(sources []types.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = sources
}

// Requests returns the check requests accepted so far.
func (s *Server) Requests() []types.CheckRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.CheckRequest(nil), s.requests...)
}

// Fetches returns how many times the task has been fetched.
func (s *Server) Fetches(id types.TaskID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.fetches
	}
	return 0
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthStatus{
		Status:      "healthy",
		Timestamp:   s.now().UTC().Format(time.RFC3339),
		Database:    "connected",
		Environment: "fake",
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "body", "Invalid JSON body")
		return
	}
	if req.Mode == "" {
		req.Mode = types.ModeFast
	}
	if req.Lang == "" {
		req.Lang = types.LangRussian
	}
	n := utf8.RuneCountInString(req.Text)
	switch {
	case n < minText:
		writeValidation(w, "text", "String should have at least 100 characters")
		return
	case n > maxText:
		writeValidation(w, "text", "String should have at most 500000 characters")
		return
	case !req.Mode.Valid():
		writeValidation(w, "mode", "String should match pattern '^(fast|deep)$'")
		return
	case !req.Lang.Valid():
		writeValidation(w, "lang", "String should match pattern '^(ru|en|kk)$'")
		return
	}

	s.mu.Lock()
	var script Script
	if len(s.queue) > 0 {
		script = s.queue[0]
		s.queue = s.queue[1:]
	}
	id := script.ID
	if id == "" {
		id = types.TaskID(uuid.NewString())
	}
	steps := script.Steps
	if len(steps) == 0 {
		steps = []types.RawResult{defaultResult(req.Text)}
	}
	steps = s.stamp(id, steps)
	s.tasks[id] = &task{steps: steps}
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	estimate := 3
	if req.Mode == types.ModeDeep {
		estimate = 15
	}
	writeJSON(w, http.StatusOK, types.Submission{
		TaskID:               id,
		Status:               steps[0].Status,
		EstimatedTimeSeconds: estimate,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := types.TaskID(mux.Vars(r)["task_id"])

	s.mu.Lock()
	t, ok := s.tasks[id]
	var step types.RawResult
	if ok {
		t.fetches++
		step = t.steps[t.next]
		if t.next < len(t.steps)-1 {
			t.next++
		}
	}
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Check not found")
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := types.TaskID(mux.Vars(r)["task_id"])

	s.mu.Lock()
	_, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Check not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Check deleted"})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	catalog := s.catalog
	s.mu.Unlock()

	if catalog == nil {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]types.Source{"sources": catalog})
}

// stamp fills the task id, and the creation time on terminal steps. Caller
// holds s.mu or owns steps exclusively.
func (s *Server) stamp(id types.TaskID, steps []types.RawResult) []types.RawResult {
	created := types.NewTimestamp(s.now())
	out := make([]types.RawResult, len(steps))
	for i, st := range steps {
		st.TaskID = id
		if st.CreatedAt.IsZero() && types.Status(strings.ToLower(string(st.Status))).Terminal() {
			st.CreatedAt = created
		}
		out[i] = st
	}
	return out
}

// defaultResult is a completed, fully original result for unscripted
// submissions.
func defaultResult(text string) types.RawResult {
	originality := 100.0
	words := len(strings.Fields(text))
	chars := utf8.RuneCountInString(text)
	return types.RawResult{
		Status:      types.StatusCompleted,
		Originality: &originality,
		TotalWords:  &words,
		TotalChars:  &chars,
		Matches:     []types.Match{},
		Sources:     []types.Source{},
		Note:        "fake engine: no sources configured",
	}
}

type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationItem{
		"detail": {{Loc: []string{"body", field}, Msg: msg, Type: "value_error"}},
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
