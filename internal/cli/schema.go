package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanixdarker/strapisource/internal/app"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the node type definitions",
	Long: `Introspect the API and print the GraphQL type definitions of the nodes
a sync would create.

Examples:
  strapisource schema
  strapisource schema --out schema.graphql`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		sch, err := application.Sourcer.Schema(cmd.Context())
		if err != nil {
			return err
		}
		sdl, err := application.Sourcer.Declarations(sch, cfg.MarkdownFields())
		if err != nil {
			return fmt.Errorf("failed to build declarations: %w", err)
		}

		var w io.Writer = cmd.OutOrStdout()
		if schemaOutput != "" {
			f, err := os.Create(schemaOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if _, err := io.WriteString(w, sdl); err != nil {
			return fmt.Errorf("failed to write declarations: %w", err)
		}
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "out", "o", "", "Write the definitions to a file instead of stdout")

	rootCmd.AddCommand(schemaCmd)
}
