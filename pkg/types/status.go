// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an engine task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UnknownStatusError is returned when the engine reports a status outside
// the known set.
type UnknownStatusError struct {
	TaskID TaskID
	Status string
}

func (e *UnknownStatusError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("unknown task status %q", e.Status)
	}
	return fmt.Sprintf("task %s: unknown status %q", e.TaskID, e.Status)
}

// ParseStatus maps an engine status string onto a Status. Matching is
// case-insensitive and ignores surrounding whitespace; anything else is an
// *UnknownStatusError.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", &UnknownStatusError{Status: s}
}
