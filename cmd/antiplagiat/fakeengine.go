// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/antiplagiat/internal/fakeengine"
)

var fakeEngineCmd = &cobra.Command{
	Use:   "fake-engine",
	Short: "Serve an in-memory engine for local testing",
	Long: `Fake-engine serves the engine HTTP API from memory. Submissions complete
at once with 100% originality unless a --fixture file scripts them; a
fixture can also publish a source catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		fixture, _ := cmd.Flags().GetString("fixture")

		srv := fakeengine.New()
		if fixture != "" {
			f, err := fakeengine.LoadFixture(fixture)
			if err != nil {
				return err
			}
			srv.Apply(f)
			log.WithField("scripts", len(f.Scripts)).Info("loaded fixture")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, &http.Server{
			Addr:              addr,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		})
	},
}

// serve runs hs until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, hs *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", hs.Addr).Info("fake engine listening")
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("fake engine stopped")
	return nil
}

func init() {
	fakeEngineCmd.Flags().String("addr", "127.0.0.1:8001", "listen address")
	fakeEngineCmd.Flags().String("fixture", "", "YAML fixture with scripted tasks and a source catalog")

	rootCmd.AddCommand(fakeEngineCmd)
}
