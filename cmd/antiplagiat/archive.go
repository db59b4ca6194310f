// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/antiplagiat/internal/archive"
	"github.com/pdiddy/antiplagiat/internal/poll"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the local archive of checks (list, export, sync)",
	Long: `Archive works with the local SQLite record of submitted checks and their
reports. Nothing here changes tasks on the engine.`,
}

// --- list subcommand ---

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived checks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromViper()
		if err != nil {
			return err
		}
		store, err := a.openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		jsonOutput, _ := cmd.Flags().GetBool("json")
		return runArchiveList(cmd.Context(), store, listOptsFromFlags(cmd), jsonOutput, os.Stdout)
	},
}

func runArchiveList(ctx context.Context, store *archive.Store, opts archive.ListOptions, jsonOutput bool, w io.Writer) error {
	entries, err := store.List(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		if entries == nil {
			entries = []archive.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No archived checks.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-10s  %-4s  %-2s  %7s  %11s  %7s  %s\n",
		"Task", "Status", "Mode", "Ln", "Chars", "Originality", "Sources", "Submitted")
	fmt.Fprintln(w, strings.Repeat("-", 112))
	for _, e := range entries {
		originality := "-"
		if e.Originality != nil {
			originality = fmt.Sprintf("%.1f%%", *e.Originality)
		}
		fmt.Fprintf(w, "%-36s  %-10s  %-4s  %-2s  %7d  %11s  %7d  %s\n",
			e.TaskID, e.Status, e.Mode, e.Lang, e.Chars, originality, e.Sources,
			e.SubmittedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "\n%d checks\n", len(entries))
	return nil
}

// --- export subcommand ---

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived checks and reports to YAML or JSON",
	Long: `Export writes every archived check (or a filtered subset) with its full
report to stdout, or to --output when given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		a, err := appFromViper()
		if err != nil {
			return err
		}
		store, err := a.openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		var w io.Writer = os.Stdout
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		if err := runArchiveExport(cmd.Context(), store, listOptsFromFlags(cmd), format, w); err != nil {
			return err
		}
		if w != os.Stdout {
			fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
		}
		return nil
	},
}

func runArchiveExport(ctx context.Context, store *archive.Store, opts archive.ListOptions, format string, w io.Writer) error {
	switch format {
	case "yaml", "":
		return store.ExportYAML(ctx, w, opts)
	case "json":
		return store.ExportJSON(ctx, w, opts)
	}
	return fmt.Errorf("unsupported format %q: use yaml or json", format)
}

// --- sync subcommand ---

var archiveSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Wait for every unfinished archived check and archive its report",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromViper()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runArchiveSync(ctx, a, os.Stdout)
	},
}

// runArchiveSync polls all pending tasks concurrently. Each outcome is
// recorded; failures do not stop the other waits.
func runArchiveSync(ctx context.Context, a *app, w io.Writer) error {
	store, err := a.openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.PendingTasks(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "Nothing to sync.")
		return nil
	}

	p := a.poller(poll.WithObserver(archiveObserver(ctx, store, a.log)))
	var done, failed int
	for _, res := range poll.WaitAll(ctx, p, ids) {
		if res.Err != nil {
			failed++
			fmt.Fprintf(w, "failed  %s: %s\n", res.TaskID, describeError(res.Err))
			continue
		}
		saveReport(ctx, store, res.Report, a.log)
		done++
		fmt.Fprintf(w, "synced  %s (originality %.1f%%, %d sources)\n",
			res.TaskID, res.Report.Originality, len(res.Report.Sources))
	}

	fmt.Fprintf(w, "\nsynced: %d, failed: %d\n", done, failed)
	if failed > 0 {
		return fmt.Errorf("%d check(s) did not finish", failed)
	}
	return nil
}

// --- shared helpers ---

func listOptsFromFlags(cmd *cobra.Command) archive.ListOptions {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	return archive.ListOptions{Status: types.Status(strings.ToLower(status)), Limit: limit}
}

func init() {
	for _, c := range []*cobra.Command{archiveListCmd, archiveExportCmd} {
		c.Flags().String("status", "", "only checks in this status: pending, processing, completed, failed")
		c.Flags().Int("limit", 0, "maximum entries (0 = all)")
	}
	archiveListCmd.Flags().Bool("json", false, "output entries as JSON")
	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	archiveExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveExportCmd)
	archiveCmd.AddCommand(archiveSyncCmd)

	rootCmd.AddCommand(archiveCmd)
}
