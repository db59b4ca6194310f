// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/antiplagiat/pkg/types"
)

// FormatTable writes a human-readable summary of r to w.
func FormatTable(r types.Report, w io.Writer) {
	fmt.Fprintf(w, "Task:         %s\n", r.TaskID)
	fmt.Fprintf(w, "Originality:  %.1f%%\n", r.Originality)
	fmt.Fprintf(w, "Borrowed:     %.1f%%\n", r.Borrowed())
	fmt.Fprintf(w, "Words/chars:  %d / %d\n", r.TotalWords, r.TotalChars)
	if r.AIPowered {
		fmt.Fprintln(w, "Engine:       deep (web search)")
	} else {
		fmt.Fprintln(w, "Engine:       fast")
	}
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created:      %s\n", r.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintln(w)

	if len(r.Sources) == 0 {
		fmt.Fprintln(w, "No matching sources found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-40s  %-24s  %-7s  %s\n", "Rank", "Title", "Domain", "Matches", "Avg sim")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for i, s := range r.Sources {
		title := s.Title
		if title == "" {
			title = fmt.Sprintf("source %d", s.ID)
		}
		fmt.Fprintf(w, "%-4d  %-40s  %-24s  %-7d  %.2f\n",
			i+1, truncate(title, 40), truncate(s.Domain, 24), s.MatchCount, s.AvgSimilarity)
	}

	fmt.Fprintf(w, "\n%d sources, %d matches\n", len(r.Sources), len(r.Matches))
}

// FormatJSON writes r as indented JSON to w.
func FormatJSON(r types.Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// FormatYAML writes r as YAML to w.
func FormatYAML(r types.Report, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

// Write renders r in the named format: table, json, or yaml.
func Write(r types.Report, format string, w io.Writer) error {
	switch format {
	case "table", "":
		FormatTable(r, w)
		return nil
	case "json":
		return FormatJSON(r, w)
	case "yaml":
		return FormatYAML(r, w)
	}
	return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
