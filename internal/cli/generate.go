package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vaelis-ai/vaelis-api/internal/config"
	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/platform/chatcompletion"
	"github.com/vaelis-ai/vaelis-api/internal/search"
)

var (
	generateMode       string
	generateSearch     bool
	generateQuery      string
	generateMaxRetries int
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Run one generation against the configured provider",
	Long: `Send a prompt through the same retrying client the server uses and print the
JSON envelope. Nothing is stored. A failed generation prints the error
envelope and exits non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateMode, "mode", "m", "chat", "Mode: chat, think, study or build")
	generateCmd.Flags().BoolVar(&generateSearch, "search", false, "Ground the prompt with web search results")
	generateCmd.Flags().StringVar(&generateQuery, "query", "", "Search query (default: the prompt)")
	generateCmd.Flags().IntVar(&generateMaxRetries, "max-retries", -1, "Retry budget override (negative: configured default)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadSections("llm", "search")
	if err != nil {
		return err
	}
	log := commandLogger(cmd)

	client, err := chatcompletion.NewClient(log, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create chat completion client: %w", err)
	}

	req := generation.Request{
		Prompt: args[0],
		Mode:   generation.ParseMode(generateMode),
	}
	if generateMaxRetries >= 0 {
		req.MaxRetries = generation.Retries(generateMaxRetries)
	}

	if generateSearch {
		searcher, err := search.NewClient(log, cfg.Search)
		if err != nil {
			return fmt.Errorf("failed to create search client: %w", err)
		}
		query := generateQuery
		if query == "" {
			query = req.Prompt
		}
		results, err := searcher.Search(cmd.Context(), query)
		if err != nil {
			log.Warn("search failed, continuing without sources", "error", err)
		} else {
			req.Sources = results.Sources()
		}
	}

	result := client.Generate(cmd.Context(), req)
	if err := printJSON(cmd, result); err != nil {
		return err
	}
	if !result.OK() {
		return errors.New(result.Output)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
