// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package check

import (
	"fmt"
	"unicode/utf8"

	"github.com/pdiddy/antiplagiat/pkg/types"
)

const (
	// MinTextLength is the shortest text the engine accepts, in characters.
	MinTextLength = 100

	// MaxTextLength is the longest text the engine accepts, in characters.
	MaxTextLength = 500000

	DefaultMode = types.ModeFast
	DefaultLang = types.LangRussian
)

// ValidationError reports a request rejected before any network call.
type ValidationError struct {
	Field      string
	Constraint string
	Value      string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Constraint)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Constraint)
}

// Validate returns req with defaults applied (mode fast, lang ru) or a
// *ValidationError naming the first violated constraint. Length is
// counted in Unicode code points.
func Validate(req types.CheckRequest) (types.CheckRequest, error) {
	if req.Mode == "" {
		req.Mode = DefaultMode
	}
	if req.Lang == "" {
		req.Lang = DefaultLang
	}

	n := utf8.RuneCountInString(req.Text)
	if n < MinTextLength {
		return types.CheckRequest{}, &ValidationError{
			Field:      "text",
			Constraint: fmt.Sprintf("must be at least %d characters, got %d", MinTextLength, n),
		}
	}
	if n > MaxTextLength {
		return types.CheckRequest{}, &ValidationError{
			Field:      "text",
			Constraint: fmt.Sprintf("must be at most %d characters, got %d", MaxTextLength, n),
		}
	}
	if !req.Mode.Valid() {
		return types.CheckRequest{}, &ValidationError{
			Field:      "mode",
			Value:      string(req.Mode),
			Constraint: "must be fast or deep",
		}
	}
	if !req.Lang.Valid() {
		return types.CheckRequest{}, &ValidationError{
			Field:      "lang",
			Value:      string(req.Lang),
			Constraint: "must be ru, en, or kk",
		}
	}
	return req, nil
}
