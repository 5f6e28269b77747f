package main

import (
	"context"
	"fmt"

	"github.com/abdulachik/bookrec/internal/config"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Long:  `Display statistics about the stored catalog and neighbor index.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).Validate, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	fmt.Println("=== bookrec Statistics ===")
	fmt.Println()
	fmt.Printf("Database: %s\n", a.Store.Path())
	fmt.Println()

	if stats.Meta == nil {
		fmt.Println("No index built yet. Run: bookrec build")
		return nil
	}

	fmt.Println("Index:")
	fmt.Printf("  Books: %d\n", stats.Books)
	fmt.Printf("  Neighbors per book: %d\n", stats.Meta.K)
	fmt.Printf("  Algorithm: %s\n", stats.Meta.Algorithm)
	fmt.Printf("  Built at: %s\n", stats.Meta.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Build duration: %s\n", stats.Meta.BuildDuration)
	if stats.Meta.CatalogPath != "" {
		fmt.Printf("  Catalog: %s\n", stats.Meta.CatalogPath)
	}
	fmt.Println()

	if len(stats.Languages) > 0 {
		fmt.Println("  By language:")
		for _, lc := range stats.Languages {
			fmt.Printf("    %s: %d\n", lc.LanguageCode, lc.Count)
		}
		fmt.Println()
	}

	return nil
}
