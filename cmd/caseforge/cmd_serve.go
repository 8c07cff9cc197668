package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"caseforge/internal/config"
	"caseforge/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for case generation",
	Long: `Serves case submission (POST /cases), status and bundle queries, and a
websocket event stream (GET /cases/{id}/events) pushing per-step progress.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	o, store, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	hub := server.NewHub()
	o.OnEvent = hub.Publish

	cases := server.NewCaseHandler(store, hub, o.Run)
	srv := server.New(cfg.Port, server.NewMux(cases))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
