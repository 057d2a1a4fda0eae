/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tactilesound/ratingexplorer/internal/cache"
	"github.com/tactilesound/ratingexplorer/internal/dataset"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import rating data",
	Long:  "Import ESC-50 rating exports into the database the server reads at startup",
}

var importESC50Cmd = &cobra.Command{
	Use:   "esc50",
	Short: "Import an ESC-50 ratings CSV",
	Long:  "Import a ratings CSV (filename,design,rating per row) and invalidate cached aggregates",
	RunE:  runImportRatings,
}

var (
	ratingsCSVPath   string
	ratingsDryRun    bool
	ratingsSkipCache bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importESC50Cmd)

	importESC50Cmd.Flags().StringVar(&ratingsCSVPath, "csv", "", "Path to ratings CSV (required)")
	importESC50Cmd.Flags().BoolVar(&ratingsDryRun, "dry-run", false, "Parse and validate without writing")
	importESC50Cmd.Flags().BoolVar(&ratingsSkipCache, "skip-cache", false, "Skip cache invalidation after import")
	importESC50Cmd.MarkFlagRequired("csv")
}

func runImportRatings(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Str("csv", ratingsCSVPath).
		Bool("dry_run", ratingsDryRun).
		Msg("starting ratings import")

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	importer := dataset.NewImporter(database, logger, ratingsDryRun)
	result, err := importer.ImportCSV(ratingsCSVPath)
	if err != nil {
		return fmt.Errorf("import esc50: %w", err)
	}

	logger.Info().
		Str("batch_id", result.BatchID).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("ratings import finished")

	if ratingsDryRun || ratingsSkipCache || !cfg.CacheEnabled {
		return nil
	}

	// Stale aggregates would otherwise survive until TTL expiry.
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = cfg.RedisAddr
	cacheCfg.RedisPassword = cfg.RedisPassword
	cacheCfg.RedisDB = cfg.RedisDB
	entityCache, err := cache.New(cacheCfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("cache unavailable, skipping invalidation")
		return nil
	}
	defer entityCache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := entityCache.InvalidateDataset(ctx); err != nil {
		logger.Warn().Err(err).Msg("dataset cache invalidation failed")
	}
	return nil
}
