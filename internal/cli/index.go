package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// IndexCmd rebuilds the catalog index from a file.
func IndexCmd(load Loader) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the catalog index",
		Long:  "Extracts, embeds and indexes a catalog file. Defaults to CATALOG_PATH.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := loadServices(cmd, load)
			if err != nil {
				return err
			}
			defer services.close()

			started := time.Now()
			result, err := services.Indexer.Reindex(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("index catalog: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen, color.Bold).Fprint(out, "indexed ")
			fmt.Fprintf(out, "%d chunks in %s\n", result.NumChunks, time.Since(started).Round(time.Millisecond))
			fmt.Fprintf(out, "run: %s\n", result.RunID)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Catalog file in the CATALOG_PATH directory or an upload key (default CATALOG_PATH)")
	return cmd
}
