// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report turns a completed task result into a Report: matches
// grouped by source, per-source counts and mean similarity, and a clamped
// originality score.
package report

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/antiplagiat/internal/logging"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

// similarityTolerance is how far a declared avg_similarity may drift from
// the recomputed mean before it is considered wrong.
const similarityTolerance = 1e-6

// NotReadyError is returned when aggregation is attempted on a task that
// has not completed.
type NotReadyError struct {
	TaskID types.TaskID
	Status types.Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("task %s is %s, not completed", e.TaskID, e.Status)
}

// Aggregator builds Reports. It holds no state between calls.
type Aggregator struct {
	log logrus.FieldLogger
}

// NewAggregator returns an Aggregator logging contract violations to log.
func NewAggregator(log logrus.FieldLogger) *Aggregator {
	return &Aggregator{log: logging.OrDiscard(log)}
}

// group accumulates the matches of one source.
type group struct {
	count int
	sum   float64
}

// Aggregate builds the Report for raw. catalog is the engine's source
// listing, if one was fetched; it resolves sources that raw.Sources does
// not describe and may be nil.
//
// Source counts and means are always recomputed from raw.Matches; values
// the engine declared are checked against them and replaced when they
// differ. A source that matches reference but that no catalog describes
// is dropped with a warning. When there is no catalog at all, sources are
// reported by id alone.
func (a *Aggregator) Aggregate(raw types.RawResult, catalog []types.Source) (types.Report, error) {
	if raw.Status != types.StatusCompleted {
		return types.Report{}, &NotReadyError{TaskID: raw.TaskID, Status: raw.Status}
	}
	log := a.log.WithField("task_id", raw.TaskID)

	totalChars := deref(raw.TotalChars)
	a.checkMatches(log, raw.Matches, raw.TotalChars)

	groups, order := groupMatches(raw.Matches)

	declared := make(map[types.SourceID]types.Source, len(raw.Sources))
	for _, s := range raw.Sources {
		if _, dup := declared[s.ID]; dup {
			log.WithField("source_id", s.ID).Warn("duplicate source in result; keeping the first")
			continue
		}
		declared[s.ID] = s
		g, referenced := groups[s.ID]
		if !referenced {
			log.WithField("source_id", s.ID).Warn("source has no matches; dropping")
			continue
		}
		if s.MatchCount != g.count {
			log.WithFields(logrus.Fields{
				"source_id": s.ID,
				"declared":  s.MatchCount,
				"computed":  g.count,
			}).Warn("source match_count disagrees with matches; recomputing")
		} else if avg := g.sum / float64(g.count); math.Abs(avg-s.AvgSimilarity) > similarityTolerance {
			log.WithFields(logrus.Fields{
				"source_id": s.ID,
				"declared":  s.AvgSimilarity,
				"computed":  avg,
			}).Debug("source avg_similarity disagrees with matches; recomputing")
		}
	}

	known := make(map[types.SourceID]types.Source, len(catalog))
	for _, s := range catalog {
		if _, ok := known[s.ID]; !ok {
			known[s.ID] = s
		}
	}
	haveCatalog := len(declared) > 0 || len(known) > 0

	sources := make([]types.Source, 0, len(order))
	for _, id := range order {
		g := groups[id]
		src, ok := declared[id]
		if !ok {
			src, ok = known[id]
		}
		if !ok {
			if haveCatalog {
				log.WithFields(logrus.Fields{
					"source_id": id,
					"matches":   g.count,
				}).Warn("matches reference an unknown source; dropping it from sources")
				continue
			}
			src = types.Source{ID: id}
		}
		src.ID = id
		src.MatchCount = g.count
		src.AvgSimilarity = g.sum / float64(g.count)
		sources = append(sources, src)
	}

	matches := make([]types.Match, len(raw.Matches))
	copy(matches, raw.Matches)

	return types.Report{
		TaskID:      raw.TaskID,
		Originality: a.originality(log, raw.Originality),
		TotalWords:  deref(raw.TotalWords),
		TotalChars:  totalChars,
		Matches:     matches,
		Sources:     sources,
		AIPowered:   raw.AIPowered,
		CreatedAt:   raw.CreatedAt,
	}, nil
}

// NeedsCatalog reports whether raw references sources that raw.Sources
// does not describe, so that an external catalog could help resolve them.
func NeedsCatalog(raw types.RawResult) bool {
	declared := make(map[types.SourceID]bool, len(raw.Sources))
	for _, s := range raw.Sources {
		declared[s.ID] = true
	}
	for _, m := range raw.Matches {
		if !declared[m.SourceID] {
			return true
		}
	}
	return false
}

// groupMatches groups matches by source id. order lists ids by first
// appearance.
func groupMatches(matches []types.Match) (map[types.SourceID]*group, []types.SourceID) {
	groups := make(map[types.SourceID]*group)
	var order []types.SourceID
	for _, m := range matches {
		g, ok := groups[m.SourceID]
		if !ok {
			g = &group{}
			groups[m.SourceID] = g
			order = append(order, m.SourceID)
		}
		g.count++
		g.sum += m.Similarity
	}
	return groups, order
}

// checkMatches logs matches that break the offset or similarity
// invariants. Matches are never altered.
func (a *Aggregator) checkMatches(log logrus.FieldLogger, matches []types.Match, totalChars *int) {
	for i, m := range matches {
		bad := m.Start < 0 || m.Start >= m.End
		if totalChars != nil && m.End > *totalChars {
			bad = true
		}
		if bad {
			log.WithFields(logrus.Fields{
				"match": i, "start": m.Start, "end": m.End,
			}).Warn("match offsets out of range")
		}
		if m.Similarity < 0 || m.Similarity > 1 || math.IsNaN(m.Similarity) {
			log.WithFields(logrus.Fields{
				"match": i, "similarity": m.Similarity,
			}).Warn("match similarity outside [0,1]")
		}
	}
}

// originality clamps the engine's score into [0,100]. A missing or NaN
// score is reported as 0.
func (a *Aggregator) originality(log logrus.FieldLogger, v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		log.Warn("completed result has no originality score; using 0")
		return 0
	}
	switch {
	case *v < 0:
		log.WithField("originality", *v).Warn("originality below 0; clamping")
		return 0
	case *v > 100:
		log.WithField("originality", *v).Warn("originality above 100; clamping")
		return 100
	}
	return *v
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
