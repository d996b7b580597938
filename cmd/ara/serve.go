package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ara/internal/config"
	"ara/internal/logging"
	"ara/internal/render"
	"ara/internal/server"
	"ara/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.flags.Host, "host", opts.flags.Host, "Host address to bind")
	cmd.Flags().IntVar(&opts.flags.Port, "port", opts.flags.Port, "Server port")
	cmd.Flags().StringVar(&opts.flags.DBPath, "db", "", "Path to SQLite database, or :memory: (default: ~/.ara/ansible.sqlite)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ResolveDBPath(); err != nil {
		return err
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel))

	if cfg.AbsDBPath != config.MemoryDB {
		if err := os.MkdirAll(filepath.Dir(cfg.AbsDBPath), 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
	}
	st, err := store.Open(cfg.AbsDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	// Note: st.Close() is called explicitly after the server drains

	env, err := render.New(cfg.PathMax)
	if err != nil {
		_ = st.Close()
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(st, env),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.LogServerStart(cfg.Addr, cfg.Summary())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case <-shutdownCtx.Done():
		logging.LogServerShutdown("shutdown signal received; draining", nil)
	case err := <-errCh:
		_ = st.Close()
		logging.LogServerShutdown("server error", err)
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.LogServerShutdown("http shutdown", err)
	}
	// Close store after the server drains to avoid racing in-flight requests
	if err := st.Close(); err != nil {
		logging.LogServerShutdown("close db", err)
	}
	logging.LogServerShutdown("shutdown complete", nil)
	return nil
}
