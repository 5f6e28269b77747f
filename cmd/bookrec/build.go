package main

import (
	"context"
	"fmt"

	"github.com/abdulachik/bookrec/internal/config"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the neighbor index from the catalog",
	Long: `Read the catalog CSV, encode every book, precompute its nearest
neighbors and store the result in the database.

Example:
  bookrec build --catalog data/books.csv --k 5 --algorithm balltree`,
	RunE: runBuild,
}

var (
	buildCatalog   string
	buildK         int
	buildAlgorithm string
	buildWorkers   int
)

func init() {
	buildCmd.Flags().StringVar(&buildCatalog, "catalog", "", "catalog CSV path (overrides CATALOG_PATH)")
	buildCmd.Flags().IntVar(&buildK, "k", 0, "neighbors per book (overrides NEIGHBORS_K)")
	buildCmd.Flags().StringVar(&buildAlgorithm, "algorithm", "", "balltree or brute (overrides NEIGHBOR_ALGORITHM)")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", -1, "parallel queries, 0 = all CPUs (overrides BUILD_WORKERS)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).ValidateForBuild, func(cfg *config.Config) {
		if buildCatalog != "" {
			cfg.CatalogPath = buildCatalog
		}
		if buildK > 0 {
			cfg.NeighborsK = buildK
		}
		if buildAlgorithm != "" {
			cfg.NeighborAlgorithm = buildAlgorithm
		}
		if buildWorkers >= 0 {
			cfg.BuildWorkers = buildWorkers
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.Build(ctx)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	fmt.Printf("Built index for %d books\n", snap.Catalog.Len())
	fmt.Printf("  Dimensions: %d\n", snap.Encoder.Dim())
	fmt.Printf("  Neighbors per book: %d\n", snap.Table.K())
	fmt.Printf("  Algorithm: %s\n", snap.Options.Algorithm)
	fmt.Printf("  Duration: %s\n", snap.BuildDuration)
	fmt.Printf("  Database: %s\n", a.Store.Path())
	return nil
}
