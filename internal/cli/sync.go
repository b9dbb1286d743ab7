package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sanixdarker/strapisource/internal/app"
)

var (
	syncCollections []string
	syncSingles     []string
	syncStrict      bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch content and update the node store",
	Long: `Fetch every configured content type, download the files it references
and update the node store. Nodes that disappeared from the CMS are removed.

Examples:
  strapisource sync
  strapisource sync --collection article --collection category
  strapisource sync --api-url http://localhost:1337 --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("collection") {
			cfg.CollectionTypes = syncCollections
		}
		if cmd.Flags().Changed("single") {
			cfg.SingleTypes = syncSingles
		}

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rep, err := application.Sync(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return errors.New("sync interrupted")
			}
			return fmt.Errorf("sync failed: %w", err)
		}

		renderSummary(cmd.OutOrStdout(), rep, DefaultStyles())

		if syncStrict && rep.Failed() {
			return errors.New("some content types failed to sync")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringSliceVar(&syncCollections, "collection", nil, "Collection types to sync (overrides the config)")
	syncCmd.Flags().StringSliceVar(&syncSingles, "single", nil, "Single types to sync (overrides the config)")
	syncCmd.Flags().BoolVar(&syncStrict, "strict", false, "Exit with an error when any content type fails")

	rootCmd.AddCommand(syncCmd)
}
