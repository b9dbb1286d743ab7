package cli

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

	"github.com/sanixdarker/strapisource/internal/app"
	"github.com/sanixdarker/strapisource/internal/server"
)

var (
	servePort            int
	serveRefreshInterval time.Duration
	serveNoSync          bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the preview server",
	Long: `Start an HTTP server exposing the node store as JSON.

A sync runs on startup and, when --refresh-interval is set, periodically
afterwards. POST /__refresh triggers one on demand.

Examples:
  strapisource serve
  strapisource serve --port 8080 --refresh-interval 5m
  strapisource serve --no-sync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		srv := server.New(application)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !serveNoSync {
			go refreshLoop(ctx, application, serveRefreshInterval)
		}

		go func() {
			<-ctx.Done()
			application.Logger.Info("shutting down server...")
			srv.Shutdown()
		}()

		application.Logger.Info("starting server", "port", cfg.Port)
		fmt.Printf("strapisource preview running at http://localhost:%d\n", cfg.Port)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// refreshLoop syncs once and then every interval until ctx is done.
func refreshLoop(ctx context.Context, application *app.App, interval time.Duration) {
	run := func() {
		rep, err := application.Sync(ctx)
		switch {
		case errors.Is(err, app.ErrSyncInProgress):
			application.Logger.Debug("skipping refresh, sync in progress")
		case err != nil:
			application.Logger.Error("sync failed", "error", err)
		default:
			application.Logger.Info("sync finished", "types", len(rep.Collections), "failed", rep.Failed(), "duration", rep.Duration)
		}
	}

	run()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP port to listen on")
	serveCmd.Flags().DurationVar(&serveRefreshInterval, "refresh-interval", 0, "Re-sync periodically (0 disables)")
	serveCmd.Flags().BoolVar(&serveNoSync, "no-sync", false, "Serve the existing node store without syncing")

	rootCmd.AddCommand(serveCmd)
}
