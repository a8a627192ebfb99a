// Copyright 2025 DFRAS Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/config"
	"github.com/oppachoriya-tal/dfras/internal/dataset"
)

var (
	dataPath   string
	dbPath     string
	configPath string
)

// MirrorStats summarizes one mirror run.
type MirrorStats struct {
	Tables    int
	TotalRows int
	PerTable  map[string]int
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ingest",
		Short: "DFRAS dataset ingestion tool",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data-path", "d", "", "Path to the CSV dataset directory")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite mirror database")

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load the CSV dataset and mirror it into SQLite",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			stats, err := runLoad(cfg, logger)
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print per-table row counts from the SQLite mirror",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			stats, err := runSummary(cfg)
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		},
	}

	rootCmd.AddCommand(loadCmd, summaryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and applies flag overrides on top of it.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: false,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dataPath != "" {
		cfg.Dataset.Path = dataPath
	}
	if dbPath != "" {
		cfg.Dataset.DBPath = dbPath
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// runLoad reads the CSV dataset and mirrors every table into SQLite.
func runLoad(cfg *config.Config, logger *zap.Logger) (*MirrorStats, error) {
	loader := dataset.NewLoader(cfg.Dataset.Path, logger)
	rt, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	store, err := dataset.NewStore(cfg.Dataset.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Mirror(rt); err != nil {
		return nil, fmt.Errorf("failed to mirror dataset: %w", err)
	}

	logger.Info("Dataset mirrored",
		zap.String("data_path", cfg.Dataset.Path),
		zap.String("db_path", cfg.Dataset.DBPath),
	)

	return statsFromCounts(rt.Counts()), nil
}

// runSummary reports row counts from an existing SQLite mirror.
func runSummary(cfg *config.Config) (*MirrorStats, error) {
	store, err := dataset.NewStore(cfg.Dataset.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}
	defer func() { _ = store.Close() }()

	counts, err := store.Counts()
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror counts: %w", err)
	}
	return statsFromCounts(counts), nil
}

func statsFromCounts(counts map[string]int) *MirrorStats {
	stats := &MirrorStats{PerTable: counts}
	for _, n := range counts {
		if n > 0 {
			stats.Tables++
		}
		stats.TotalRows += n
	}
	return stats
}

func printStats(stats *MirrorStats) {
	names := make([]string, 0, len(stats.PerTable))
	for name := range stats.PerTable {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%-20s %d\n", name, stats.PerTable[name])
	}
	fmt.Printf("%-20s %d rows across %d tables\n", "total", stats.TotalRows, stats.Tables)
}
