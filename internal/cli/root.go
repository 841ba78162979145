// Package cli implements the catalogctl commands. Commands run the same use
// cases as the API, in-process.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

// Services are the use cases a command needs. Close releases them.
type Services struct {
	Chat    ports.ChatService
	Indexer ports.CatalogIndexer
	Close   func()
}

// Loader builds Services on demand so --help never touches the backends.
type Loader func(ctx context.Context, verbose bool) (*Services, error)

func NewRootCmd(load Loader) *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Index and query the product catalog assistant",
		Long: `catalogctl runs catalog indexing and chat turns in-process, using the
same configuration as the API (environment variables or a .env file).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().Bool("verbose", false, "Log at LOG_LEVEL instead of warn")

	root.AddCommand(IndexCmd(load))
	root.AddCommand(AskCmd(load))
	return root
}

func loadServices(cmd *cobra.Command, load Loader) (*Services, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return load(cmd.Context(), verbose)
}

func (s *Services) close() {
	if s != nil && s.Close != nil {
		s.Close()
	}
}
