package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FallbackCatalogNames are tried, in order, when CATALOG_PATH does not exist.
var FallbackCatalogNames = []string{"books1.csv", "books.csv", "books_data.csv"}

// Config holds all application configuration.
type Config struct {
	// Catalog
	CatalogPath string // Book catalog CSV (default: data/books.csv)

	// Database
	DatabasePath string

	// Neighbor index
	NeighborsK        int    // Neighbors precomputed per book (default: 5)
	NeighborAlgorithm string // "balltree" or "brute" (default: balltree)
	BuildWorkers      int    // Parallel neighbor queries, 0 = NumCPU

	// Query behavior
	RecommendLimit int     // Recommendations per query (default: 5)
	ResolveCutoff  float64 // Fuzzy title threshold (default: 0.5)
	SuggestCutoff  float64 // Fuzzy autocomplete threshold (default: 0.4)
	SuggestLimit   int     // Autocomplete results (default: 10)

	// HTTP
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		CatalogPath:       getEnv("CATALOG_PATH", "data/books.csv"),
		DatabasePath:      getEnv("DATABASE_PATH", "data/bookrec.db"),
		NeighborAlgorithm: getEnv("NEIGHBOR_ALGORITHM", "balltree"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	ints := []struct {
		key  string
		def  string
		dest *int
	}{
		{"NEIGHBORS_K", "5", &cfg.NeighborsK},
		{"BUILD_WORKERS", "0", &cfg.BuildWorkers},
		{"RECOMMEND_LIMIT", "5", &cfg.RecommendLimit},
		{"SUGGEST_LIMIT", "10", &cfg.SuggestLimit},
	}
	for _, v := range ints {
		n, err := strconv.Atoi(getEnv(v.key, v.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dest = n
	}

	floats := []struct {
		key  string
		def  string
		dest *float64
	}{
		{"RESOLVE_CUTOFF", "0.5", &cfg.ResolveCutoff},
		{"SUGGEST_CUTOFF", "0.4", &cfg.SuggestCutoff},
	}
	for _, v := range floats {
		f, err := strconv.ParseFloat(getEnv(v.key, v.def), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dest = f
	}

	var err error
	cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("HTTP_SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and in range.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.NeighborsK < 1 {
		return fmt.Errorf("NEIGHBORS_K must be at least 1, got %d", c.NeighborsK)
	}
	switch c.NeighborAlgorithm {
	case "balltree", "brute":
	default:
		return fmt.Errorf("invalid NEIGHBOR_ALGORITHM: %s (must be 'balltree' or 'brute')", c.NeighborAlgorithm)
	}
	if c.BuildWorkers < 0 {
		return fmt.Errorf("BUILD_WORKERS must not be negative, got %d", c.BuildWorkers)
	}
	if c.RecommendLimit < 1 {
		return fmt.Errorf("RECOMMEND_LIMIT must be at least 1, got %d", c.RecommendLimit)
	}
	if c.SuggestLimit < 1 {
		return fmt.Errorf("SUGGEST_LIMIT must be at least 1, got %d", c.SuggestLimit)
	}
	if c.ResolveCutoff <= 0 || c.ResolveCutoff > 1 {
		return fmt.Errorf("RESOLVE_CUTOFF must be in (0, 1], got %v", c.ResolveCutoff)
	}
	if c.SuggestCutoff <= 0 || c.SuggestCutoff > 1 {
		return fmt.Errorf("SUGGEST_CUTOFF must be in (0, 1], got %v", c.SuggestCutoff)
	}
	return nil
}

// ValidateForBuild checks configuration needed to build the index.
func (c *Config) ValidateForBuild() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("CATALOG_PATH is required for build")
	}
	return nil
}

// ValidateForServe checks all configuration needed for serve mode.
func (c *Config) ValidateForServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required for serve")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// ResolveCatalogPath returns CatalogPath if it exists, otherwise the first
// fallback file found next to it or in the working directory.
func (c *Config) ResolveCatalogPath() (string, error) {
	candidates := []string{c.CatalogPath}
	for _, dir := range []string{filepath.Dir(c.CatalogPath), "."} {
		for _, name := range FallbackCatalogNames {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	seen := make(map[string]bool)
	var tried []string
	for _, p := range candidates {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		tried = append(tried, p)

		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat catalog %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("catalog not found (tried %s)", strings.Join(tried, ", "))
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
