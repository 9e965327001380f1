package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the configured web search provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadSections("search")
	if err != nil {
		return err
	}

	client, err := search.NewClient(commandLogger(cmd), cfg.Search)
	if err != nil {
		return fmt.Errorf("failed to create search client: %w", err)
	}

	results, err := client.Search(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, results)
}
