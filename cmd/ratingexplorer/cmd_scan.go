/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tactilesound/ratingexplorer/internal/media"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Cross-check the vibration media tree against the rating table",
	Long:  "Walk the vibration media directory and report files with no rating record, records with no file, and unparseable filenames",
	RunE:  runScan,
}

var scanJSON bool

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Emit the scan report as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	scanner := media.NewScanner(database, cfg.MediaRoot, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	result, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan media tree: %w", err)
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("scanned:      %d files\n", result.Scanned)
	fmt.Printf("orphaned:     %d (on disk, no rating record)\n", len(result.OrphanedFiles))
	fmt.Printf("missing:      %d (rating record, no file)\n", len(result.MissingFiles))
	fmt.Printf("unparseable:  %d\n", len(result.UnparseableName))
	for _, name := range result.OrphanedFiles {
		fmt.Printf("  orphaned: %s\n", name)
	}
	for _, name := range result.MissingFiles {
		fmt.Printf("  missing:  %s\n", name)
	}
	for _, name := range result.UnparseableName {
		fmt.Printf("  unparseable: %s\n", name)
	}
	return nil
}
