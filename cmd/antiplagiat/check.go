// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/antiplagiat/internal/archive"
	"github.com/pdiddy/antiplagiat/internal/httputil"
	"github.com/pdiddy/antiplagiat/internal/poll"
	"github.com/pdiddy/antiplagiat/internal/report"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Submit a text for an originality check",
	Long: `Check submits a text to the engine and prints the task id. The text is
taken from the arguments, from --file, or from stdin when neither is given.

With --wait, check polls the task until it finishes and prints the
aggregated report. Reports are archived unless --no-archive is set.`,
	RunE: runCheckCmd,
}

// checkOptions carries the check flags.
type checkOptions struct {
	Mode                types.Mode
	Lang                types.Language
	ExcludeQuotes       *bool
	ExcludeBibliography *bool
	Wait                bool
	Retries             int
	Format              string
	NoArchive           bool
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}

	mode, _ := cmd.Flags().GetString("mode")
	lang, _ := cmd.Flags().GetString("lang")
	opts := checkOptions{
		Mode: types.Mode(mode),
		Lang: types.Language(lang),
	}
	opts.Wait, _ = cmd.Flags().GetBool("wait")
	opts.Retries, _ = cmd.Flags().GetInt("retries")
	opts.Format, _ = cmd.Flags().GetString("format")
	opts.NoArchive, _ = cmd.Flags().GetBool("no-archive")
	if cmd.Flags().Changed("exclude-quotes") {
		v, _ := cmd.Flags().GetBool("exclude-quotes")
		opts.ExcludeQuotes = &v
	}
	if cmd.Flags().Changed("exclude-bibliography") {
		v, _ := cmd.Flags().GetBool("exclude-bibliography")
		opts.ExcludeBibliography = &v
	}

	a, err := appFromViper()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return runCheck(ctx, a, text, opts, os.Stdout)
}

// runCheck submits text and, with opts.Wait, waits for its report.
func runCheck(ctx context.Context, a *app, text string, opts checkOptions, w io.Writer) error {
	req := types.CheckRequest{
		Text:                text,
		Mode:                opts.Mode,
		Lang:                opts.Lang,
		ExcludeQuotes:       opts.ExcludeQuotes,
		ExcludeBibliography: opts.ExcludeBibliography,
	}

	var store *archive.Store
	if !opts.NoArchive {
		s, err := a.openArchive()
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	attempts := opts.Retries + 1
	backoff := httputil.Backoff{Initial: a.cfg.Poll.Interval, Max: a.cfg.Poll.MaxInterval}
	var id types.TaskID
	err := httputil.Retry(ctx, attempts, backoff, poll.Transient, func(ctx context.Context) error {
		var err error
		id, err = a.submitter.Submit(ctx, req)
		return err
	})
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.RecordSubmission(ctx, id, req); err != nil {
			a.log.WithError(err).WithField("task_id", id).Warn("archiving submission failed")
		}
	}

	if !opts.Wait {
		fmt.Fprintln(w, id)
		return nil
	}
	fmt.Fprintf(os.Stderr, "Submitted %s; waiting for the engine\n", id)

	r, err := a.poller(poll.WithObserver(archiveObserver(ctx, store, a.log))).Wait(ctx, id)
	if err != nil {
		return err
	}
	saveReport(ctx, store, r, a.log)
	return report.Write(r, opts.Format, w)
}

// readText resolves the text to check: arguments, then --file, then stdin.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	path, _ := cmd.Flags().GetString("file")
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func init() {
	checkCmd.Flags().StringP("file", "f", "", "read the text from a file (- for stdin)")
	checkCmd.Flags().String("mode", string(types.ModeFast), "check mode: fast or deep")
	checkCmd.Flags().String("lang", string(types.LangRussian), "text language: ru, en, or kk")
	checkCmd.Flags().Bool("exclude-quotes", true, "ignore quoted passages")
	checkCmd.Flags().Bool("exclude-bibliography", true, "ignore the bibliography section")
	checkCmd.Flags().BoolP("wait", "w", false, "wait for the check to finish and print the report")
	checkCmd.Flags().Int("retries", 0, "extra submission attempts on transient engine errors")
	checkCmd.Flags().String("format", "table", "report format with --wait: table, json, or yaml")
	checkCmd.Flags().Bool("no-archive", false, "do not record the check in the local archive")

	rootCmd.AddCommand(checkCmd)
}
