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

	"github.com/securerpc/tlsmatrix/internal/api"
	"github.com/securerpc/tlsmatrix/internal/config"
)

// API command flags
var (
	apiListen      string
	apiProfilePath string
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the matrix over HTTP",
	Long: `Serve the matrix over HTTP.

Endpoints:
  GET  /health            Liveness and version
  GET  /api/v1/scenarios  Legal scenarios with predicted verdicts
  POST /api/v1/run        Execute a run (optionally narrowed by the body)
  GET  /api/v1/report     The last completed run`,
	RunE: runAPI,
}

func init() {
	apiCmd.Flags().StringVar(&apiListen, "listen", "127.0.0.1:8080", "Listen address")
	apiCmd.Flags().StringVar(&apiProfilePath, "profile", "", "Run profile YAML file")

	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	profile := config.Default()
	if apiProfilePath != "" {
		p, err := config.Load(apiProfilePath)
		if err != nil {
			return err
		}
		profile = p
	}

	backend, err := newLogBackend()
	if err != nil {
		return err
	}
	defer backend.Close()
	log := backend.GetLogger("api")

	srv := &http.Server{
		Addr:              apiListen,
		Handler:           api.NewServer(profile, version, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Noticef("matrix API listening on %s", apiListen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
