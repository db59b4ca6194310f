// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/antiplagiat/internal/archive"
	"github.com/pdiddy/antiplagiat/internal/poll"
	"github.com/pdiddy/antiplagiat/internal/report"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status <task-id>...",
	Short: "Fetch the current status of one or more checks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromViper()
		if err != nil {
			return err
		}
		return runStatus(cmd.Context(), a, taskIDs(args), os.Stdout)
	},
}

// runStatus fetches each task once and prints one line per task. It
// returns the first error after printing every line.
func runStatus(ctx context.Context, a *app, ids []types.TaskID, w io.Writer) error {
	store, err := a.openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	var first error
	for _, id := range ids {
		raw, err := a.fetcher.Fetch(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "%-36s  %-10s  %s\n", id, "error", describeError(err))
			if first == nil {
				first = err
			}
			continue
		}

		line := fmt.Sprintf("%-36s  %-10s", id, raw.Status)
		switch {
		case raw.Status == types.StatusCompleted && raw.Originality != nil:
			line += fmt.Sprintf("  originality %.1f%%", *raw.Originality)
		case raw.Status == types.StatusFailed && raw.Error != "":
			line += "  " + raw.Error
		}

		// The archive holds what was observed before; a terminal status
		// there that the engine now contradicts is a protocol violation.
		if err := store.UpdateStatus(ctx, id, raw.Status); err != nil {
			var te *archive.TerminalError
			if errors.As(err, &te) {
				perr := &poll.ProtocolError{TaskID: id, From: te.Status, To: te.To}
				line += "  " + describeError(perr)
				if first == nil {
					first = perr
				}
			} else {
				a.log.WithError(err).WithField("task_id", id).Warn("archive status update failed")
			}
		}
		fmt.Fprintln(w, line)
	}
	return first
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report <task-id>...",
	Short: "Show the aggregated report of one or more checks",
	Long: `Report prints the aggregated report for each task. Archived reports are
shown without contacting the engine; other tasks are polled until they
finish, concurrently when several ids are given. --refresh ignores the
archive and always polls.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		refresh, _ := cmd.Flags().GetBool("refresh")

		a, err := appFromViper()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runReport(ctx, a, taskIDs(args), format, refresh, os.Stdout)
	},
}

func runReport(ctx context.Context, a *app, ids []types.TaskID, format string, refresh bool, w io.Writer) error {
	store, err := a.openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	results := make([]poll.Result, len(ids))
	var pending []int
	for i, id := range ids {
		results[i].TaskID = id
		if !refresh {
			r, err := store.GetReport(ctx, id)
			if err == nil {
				results[i].Report = r
				continue
			}
			if !errors.Is(err, archive.ErrNotArchived) {
				return err
			}
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		toWait := make([]types.TaskID, len(pending))
		for j, i := range pending {
			toWait[j] = ids[i]
		}
		p := a.poller(poll.WithObserver(archiveObserver(ctx, store, a.log)))
		for j, res := range poll.WaitAll(ctx, p, toWait) {
			results[pending[j]] = res
			if res.Err == nil {
				saveReport(ctx, store, res.Report, a.log)
			}
		}
	}

	return writeResults(results, format, w)
}

// writeResults prints every successful report and returns the first error.
func writeResults(results []poll.Result, format string, w io.Writer) error {
	var first error
	for i, res := range results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", res.TaskID, describeError(res.Err))
			if first == nil {
				first = res.Err
			}
			continue
		}
		if i > 0 && format == "table" {
			fmt.Fprintln(w)
		}
		if err := report.Write(res.Report, format, w); err != nil {
			return err
		}
	}
	return first
}

// --- delete ---

var deleteCmd = &cobra.Command{
	Use:   "delete <task-id>...",
	Short: "Delete checks on the engine and from the archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromViper()
		if err != nil {
			return err
		}
		return runDelete(cmd.Context(), a, taskIDs(args), os.Stdout)
	},
}

func runDelete(ctx context.Context, a *app, ids []types.TaskID, w io.Writer) error {
	store, err := a.openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, id := range ids {
		if err := a.fetcher.Delete(ctx, id); err != nil {
			return err
		}
		if err := store.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(w, "deleted %s\n", id)
	}
	return nil
}

func taskIDs(args []string) []types.TaskID {
	ids := make([]types.TaskID, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			ids = append(ids, types.TaskID(a))
		}
	}
	return ids
}

func init() {
	reportCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	reportCmd.Flags().Bool("refresh", false, "ignore archived reports and poll the engine")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(deleteCmd)
}
