// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package poll

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/antiplagiat/pkg/types"
)

func fptr(v float64) *float64 { return &v }

func completedRaw(id types.TaskID, matches ...types.Match) types.RawResult {
	return types.RawResult{
		TaskID:      id,
		Status:      types.StatusCompleted,
		Originality: fptr(70),
		Matches:     matches,
	}
}

func TestTrackerTransitions(t *testing.T) {
	tr := NewTracker("t1", nil, nil)
	assert.Equal(t, "unobserved", tr.State().String())

	s, err := tr.Observe(types.RawResult{Status: types.StatusPending}, nil)
	require.NoError(t, err)
	assert.Equal(t, Pending(), s)

	s, err = tr.Observe(types.RawResult{Status: types.StatusProcessing}, nil)
	require.NoError(t, err)
	assert.Equal(t, Processing(), s)
	assert.False(t, s.Terminal())

	s, err = tr.Observe(completedRaw("t1", types.Match{Start: 0, End: 4, SourceID: 1, Similarity: 0.5}), nil)
	require.NoError(t, err)
	assert.True(t, s.Terminal())
	require.NotNil(t, s.Report)
	assert.Equal(t, 70.0, s.Report.Originality)
	require.Len(t, s.Report.Sources, 1)
}

func TestTrackerTerminalIsIdempotent(t *testing.T) {
	tr := NewTracker("t1", nil, nil)
	first, err := tr.Observe(completedRaw("t1"), nil)
	require.NoError(t, err)

	// A later completed result with different numbers does not replace
	// the cached report.
	changed := completedRaw("t1")
	changed.Originality = fptr(5)
	again, err := tr.Observe(changed, nil)
	require.NoError(t, err)
	assert.Same(t, first.Report, again.Report)
	assert.Equal(t, 70.0, again.Report.Originality)
}

func TestTrackerRejectsRegression(t *testing.T) {
	tests := []struct {
		name     string
		terminal types.RawResult
		next     types.Status
	}{
		{"processing after completed", completedRaw("t1"), types.StatusProcessing},
		{"pending after completed", completedRaw("t1"), types.StatusPending},
		{"failed after completed", completedRaw("t1"), types.StatusFailed},
		{"processing after failed", types.RawResult{Status: types.StatusFailed, Error: "boom"}, types.StatusProcessing},
		{"completed after failed", types.RawResult{Status: types.StatusFailed, Error: "boom"}, types.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker("t1", nil, nil)
			before, err := tr.Observe(tt.terminal, nil)
			require.NoError(t, err)

			after, err := tr.Observe(types.RawResult{Status: tt.next, Originality: fptr(1)}, nil)
			var pe *ProtocolError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, before.Status, pe.From)
			assert.Equal(t, tt.next, pe.To)
			assert.Equal(t, before, after)
			assert.Equal(t, before, tr.State())
		})
	}
}

func TestTrackerFailureReason(t *testing.T) {
	tests := []struct {
		name string
		raw  types.RawResult
		want string
	}{
		{"error field", types.RawResult{Status: types.StatusFailed, Error: "search quota exceeded", Note: "n"}, "search quota exceeded"},
		{"note field", types.RawResult{Status: types.StatusFailed, Note: "engine crashed"}, "engine crashed"},
		{"nothing", types.RawResult{Status: types.StatusFailed}, "no reason given"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewTracker("t1", nil, nil).Observe(tt.raw, nil)
			require.NoError(t, err)
			assert.Equal(t, Failed(tt.want), s)
			assert.Equal(t, "failed: "+tt.want, s.String())
		})
	}
}

func TestTrackerRejectsForeignResult(t *testing.T) {
	tr := NewTracker("t1", nil, nil)
	_, err := tr.Observe(types.RawResult{TaskID: "t2", Status: types.StatusProcessing}, nil)

	var pe *ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Error(), "t2")
	assert.Equal(t, State{}, tr.State())
}

func TestTrackerPendingAfterProcessingAllowed(t *testing.T) {
	tr := NewTracker("t1", nil, nil)
	_, err := tr.Observe(types.RawResult{Status: types.StatusProcessing}, nil)
	require.NoError(t, err)

	s, err := tr.Observe(types.RawResult{Status: types.StatusPending}, nil)
	require.NoError(t, err)
	assert.Equal(t, Pending(), s)
}

func TestTrackerUnknownStatus(t *testing.T) {
	_, err := NewTracker("t1", nil, nil).Observe(types.RawResult{Status: "paused"}, nil)
	var use *types.UnknownStatusError
	assert.True(t, errors.As(err, &use))
}
