// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MatchType tags how the engine found a match.
type MatchType string

const (
	MatchLexical  MatchType = "lexical"
	MatchSemantic MatchType = "semantic"
)

// SourceID references a Source from a Match.
type SourceID int64

// Match is a single overlap between the submitted text and a known source.
// Offsets are character offsets into the submitted text.
type Match struct {
	Start      int       `json:"start" yaml:"start"`
	End        int       `json:"end" yaml:"end"`
	Text       string    `json:"text" yaml:"text"`
	SourceID   SourceID  `json:"source_id" yaml:"source_id"`
	Similarity float64   `json:"similarity" yaml:"similarity"`
	Type       MatchType `json:"type" yaml:"type"`
}

// Source is a cited origin. MatchCount and AvgSimilarity are derived from
// the matches that reference it; a Source in a Report always has
// MatchCount >= 1.
type Source struct {
	ID            SourceID `json:"id" yaml:"id"`
	Title         string   `json:"title,omitempty" yaml:"title,omitempty"`
	URL           string   `json:"url,omitempty" yaml:"url,omitempty"`
	Domain        string   `json:"domain,omitempty" yaml:"domain,omitempty"`
	MatchCount    int      `json:"match_count" yaml:"match_count"`
	AvgSimilarity float64  `json:"avg_similarity" yaml:"avg_similarity"`
}

// RawResult is a task's state as returned by the engine. Only Status is
// meaningful until the task is terminal; the nullable fields may be nil
// before then. Sources is either absent or aggregated by the engine.
type RawResult struct {
	TaskID      TaskID    `json:"task_id" yaml:"task_id"`
	Status      Status    `json:"status" yaml:"status"`
	Originality *float64  `json:"originality,omitempty" yaml:"originality,omitempty"`
	TotalWords  *int      `json:"total_words,omitempty" yaml:"total_words,omitempty"`
	TotalChars  *int      `json:"total_chars,omitempty" yaml:"total_chars,omitempty"`
	Matches     []Match   `json:"matches,omitempty" yaml:"matches,omitempty"`
	Sources     []Source  `json:"sources,omitempty" yaml:"sources,omitempty"`
	AIPowered   bool      `json:"ai_powered" yaml:"ai_powered"`
	CreatedAt   Timestamp `json:"created_at" yaml:"created_at"`

	// Note is an informational message from the engine.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`

	// Error is the failure reason of a failed task.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the aggregated result of a completed task. Matches keep the
// engine's detection order; Sources are ordered by first appearance
// among Matches.
type Report struct {
	TaskID      TaskID    `json:"task_id" yaml:"task_id"`
	Originality float64   `json:"originality" yaml:"originality"`
	TotalWords  int       `json:"total_words" yaml:"total_words"`
	TotalChars  int       `json:"total_chars" yaml:"total_chars"`
	Matches     []Match   `json:"matches" yaml:"matches"`
	Sources     []Source  `json:"sources" yaml:"sources"`
	AIPowered   bool      `json:"ai_powered" yaml:"ai_powered"`
	CreatedAt   Timestamp `json:"created_at" yaml:"created_at"`
}

// Borrowed returns the share of the text judged not original (100 - Originality).
func (r Report) Borrowed() float64 {
	return 100 - r.Originality
}
