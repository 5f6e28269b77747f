package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/abdulachik/bookrec/internal/config"
	"github.com/abdulachik/bookrec/internal/resolver"
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [title]",
	Short: "Recommend books similar to a title",
	Long: `Resolve a title query against the catalog and print the most
similar books.

Example:
  bookrec recommend "harry potter"`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

var recommendLimit int

func init() {
	recommendCmd.Flags().IntVarP(&recommendLimit, "limit", "n", 0, "number of recommendations (overrides RECOMMEND_LIMIT)")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).Validate, func(cfg *config.Config) {
		if recommendLimit > 0 {
			cfg.RecommendLimit = recommendLimit
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Load(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	res, err := a.Engine.Recommend(args[0])
	if errors.Is(err, resolver.ErrNoMatch) {
		fmt.Println("No similar book title found in our database")
		return nil
	}
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	fmt.Printf("Matched: %s (%s, score %.2f)\n", res.MatchedTitle(), res.Match.Method, res.Match.Score)
	fmt.Println()
	if len(res.Recommendations) == 0 {
		fmt.Println("No other books in the catalog.")
		return nil
	}
	for i, rec := range res.Recommendations {
		fmt.Printf("%d. %s (distance %.4f)\n", i+1, rec.Title, rec.Distance)
	}
	return nil
}
