package main

import (
	"context"
	"fmt"

	"github.com/abdulachik/bookrec/internal/config"
	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [partial title]",
	Short: "Autocomplete a partial title",
	Long: `Print catalog titles matching a partial query. Titles containing the
query come first, then similar titles.

Example:
  bookrec suggest "hobb"`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

var suggestLimit int

func init() {
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 0, "maximum suggestions (overrides SUGGEST_LIMIT)")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).Validate, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Load(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	titles, err := a.Engine.Suggest(args[0], suggestLimit)
	if err != nil {
		return fmt.Errorf("suggest: %w", err)
	}
	for _, t := range titles {
		fmt.Println(t)
	}
	return nil
}
