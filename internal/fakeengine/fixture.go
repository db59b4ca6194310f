// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fakeengine

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/antiplagiat/pkg/types"
)

// Fixture is the YAML file format read by LoadFixture:
//
//	catalog:
//	  - {id: 1, title: Example, url: https://example.com, domain: example.com}
//	scripts:
//	  - id: abc123
//	    steps:
//	      - {status: processing}
//	      - {status: completed, originality: 72.5, matches: [...]}
type Fixture struct {
	Catalog []types.Source `yaml:"catalog"`
	Scripts []Script       `yaml:"scripts"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parsing fixture %s: %w", path, err)
	}
	for i, sc := range f.Scripts {
		if len(sc.Steps) == 0 {
			return Fixture{}, fmt.Errorf("fixture %s: script %d has no steps", path, i)
		}
	}
	return f, nil
}

// Apply loads the fixture's catalog and queues its scripts.
func (s *Server) Apply(f Fixture) {
	if f.Catalog != nil {
		s.SetCatalog(f.Catalog)
	}
	s.Enqueue(f.Scripts...)
}
