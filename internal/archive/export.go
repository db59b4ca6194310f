// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/antiplagiat/pkg/types"
)

// ExportEntry is an archived task together with its full report.
type ExportEntry struct {
	Entry  `yaml:",inline"`
	Report *types.Report `json:"report,omitempty" yaml:"report,omitempty"`
}

// Export returns every archived task matching opts, with reports attached
// to completed ones.
func (s *Store) Export(ctx context.Context, opts ListOptions) ([]ExportEntry, error) {
	entries, err := s.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	out := make([]ExportEntry, len(entries))
	for i, e := range entries {
		out[i] = ExportEntry{Entry: e}
		if e.Originality == nil {
			continue
		}
		r, err := s.GetReport(ctx, e.TaskID)
		if err != nil {
			return nil, err
		}
		out[i].Report = &r
	}
	return out, nil
}

// ExportYAML writes the archive to w as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts ListOptions) error {
	entries, err := s.Export(ctx, opts)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the archive to w as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts ListOptions) error {
	entries, err := s.Export(ctx, opts)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []ExportEntry{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}
