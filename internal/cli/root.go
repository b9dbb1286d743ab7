// Package cli provides the command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanixdarker/strapisource/internal/app"
)

var (
	// Version is set at build time.
	Version = "dev"
	// Commit is set at build time.
	Commit = "none"
)

var (
	configPath string
	debug      bool
	logFormat  string
	apiURL     string
	apiToken   string
)

var rootCmd = &cobra.Command{
	Use:   "strapisource",
	Short: "Source Strapi content as site nodes",
	Long: `strapisource introspects a Strapi GraphQL API, pages through the
configured collection and single types and stores every entity as a node,
downloading the files it references.

Settings are read from strapisource.yaml; the API URL and token can also come
from the STRAPI_API_URL and STRAPI_TOKEN environment variables.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("strapisource version %s (commit: %s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "strapisource.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", app.LogFormatText, "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Strapi API URL (or set STRAPI_API_URL env var)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "Strapi access token (or set STRAPI_TOKEN env var)")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges, in increasing precedence, the defaults, the config
// file, the environment and the flags. A missing default config file is
// not an error.
func loadConfig(cmd *cobra.Command) (*app.Config, error) {
	cfg := app.DefaultConfig()

	loaded, err := app.LoadConfig(configPath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
	default:
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if flags.Changed("token") {
		cfg.AccessToken = apiToken
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
