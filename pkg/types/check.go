// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Mode selects the engine's detection behaviour. The client passes it
// through unchanged.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeDeep Mode = "deep"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeFast || m == ModeDeep
}

// Language identifies the language of the submitted text.
type Language string

const (
	LangRussian Language = "ru"
	LangEnglish Language = "en"
	LangKazakh  Language = "kk"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LangRussian, LangEnglish, LangKazakh:
		return true
	}
	return false
}

// TaskID is the opaque identifier the engine assigns to a check task.
type TaskID string

// CheckRequest is the body of a check submission. It is built once per
// submit call and not retained afterwards.
type CheckRequest struct {
	// Text is the document to analyse.
	Text string `json:"text" yaml:"text"`

	// Mode is fast or deep (default fast).
	Mode Mode `json:"mode" yaml:"mode"`

	// Lang is ru, en, or kk (default ru).
	Lang Language `json:"lang" yaml:"lang"`

	// ExcludeQuotes and ExcludeBibliography are omitted when nil; the
	// engine treats a missing flag as true.
	ExcludeQuotes       *bool `json:"exclude_quotes,omitempty" yaml:"exclude_quotes,omitempty"`
	ExcludeBibliography *bool `json:"exclude_bibliography,omitempty" yaml:"exclude_bibliography,omitempty"`
}

// Submission is the engine's response to a check submission.
type Submission struct {
	TaskID               TaskID `json:"task_id" yaml:"task_id"`
	Status               Status `json:"status,omitempty" yaml:"status,omitempty"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds,omitempty" yaml:"estimated_time_seconds,omitempty"`
}

// Task is the client's read-only view of an engine task.
type Task struct {
	ID        TaskID    `json:"task_id" yaml:"task_id"`
	Status    Status    `json:"status" yaml:"status"`
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
}

// HealthStatus is the body returned by the engine's liveness probe.
type HealthStatus struct {
	Status              string `json:"status" yaml:"status"`
	Timestamp           string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	GoogleSearchEnabled bool   `json:"google_search_enabled" yaml:"google_search_enabled"`
	Database            string `json:"database,omitempty" yaml:"database,omitempty"`
	Environment         string `json:"environment,omitempty" yaml:"environment,omitempty"`
}
