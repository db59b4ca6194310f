// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the engine's source catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		a, err := appFromViper()
		if err != nil {
			return err
		}
		return runSources(cmd.Context(), a, jsonOutput, os.Stdout)
	},
}

func runSources(ctx context.Context, a *app, jsonOutput bool, w io.Writer) error {
	sources, err := a.fetcher.Catalog(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sources)
	}

	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources.")
		return nil
	}

	fmt.Fprintf(w, "%-6s  %-40s  %-24s  %s\n", "ID", "Title", "Domain", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, s := range sources {
		title := s.Title
		if r := []rune(title); len(r) > 40 {
			title = string(r[:37]) + "..."
		}
		fmt.Fprintf(w, "%-6d  %-40s  %-24s  %s\n", s.ID, title, s.Domain, s.URL)
	}
	fmt.Fprintf(w, "\n%d sources\n", len(sources))
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the engine is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromViper()
		if err != nil {
			return err
		}
		return runHealth(cmd.Context(), a, os.Stdout)
	},
}

func runHealth(ctx context.Context, a *app, w io.Writer) error {
	h, err := a.fetcher.Health(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "engine:   %s\n", a.client.BaseURL())
	fmt.Fprintf(w, "status:   %s\n", h.Status)
	if h.Database != "" {
		fmt.Fprintf(w, "database: %s\n", h.Database)
	}
	if h.Environment != "" {
		fmt.Fprintf(w, "env:      %s\n", h.Environment)
	}
	fmt.Fprintf(w, "search:   %t\n", h.GoogleSearchEnabled)
	if h.Status != "healthy" && h.Status != "ok" {
		return fmt.Errorf("engine reports status %q", h.Status)
	}
	return nil
}

func init() {
	sourcesCmd.Flags().Bool("json", false, "output the catalog as JSON")

	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(healthCmd)
}
