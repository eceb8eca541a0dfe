package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/alphaaudio/internal/server"
	"github.com/vampirenirmal/alphaaudio/internal/session"
)

var (
	serveAddr    string
	probeOnStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface",
	Long: `Starts the HTTP server with the Design Studio and Gear Lab pages.

The endpoint is chosen lazily on the first generation request unless
--probe is given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&probeOnStart, "probe", false, "Probe the model list before accepting requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if probeOnStart {
		if _, err := a.selector.Select(ctx); err != nil {
			// Not fatal: the studio shows the notice and the user can retry.
			a.logger.Warn("startup probe failed", "error", err)
		}
	}

	sessions := session.NewManager(a.cfg.Server.MaxSessions, a.cfg.Server.SessionTTL, a.logger)
	handler, err := server.NewHandler(server.Deps{
		Orchestrator:   a.orch,
		Prompts:        a.roles,
		Catalog:        a.catalog,
		Sessions:       sessions,
		Exporter:       a.exporter,
		Hub:            server.NewHub(),
		Status:         a.selector,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Logger:         a.logger,
	})
	if err != nil {
		return err
	}

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(addr, handler.Routes(), a.logger)
	fmt.Fprintf(cmd.OutOrStdout(), "Studio: http://%s\n", srv.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	sessions.Purge()
	return nil
}
