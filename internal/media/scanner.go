/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tactilesound/ratingexplorer/internal/dataset"
	"github.com/tactilesound/ratingexplorer/internal/models"
)

// ScanResult summarizes one media tree scan.
type ScanResult struct {
	Scanned         int      `json:"scanned"`
	OrphanedFiles   []string `json:"orphaned_files"`   // on disk, no rating record
	MissingFiles    []string `json:"missing_files"`    // rating record, no file
	UnparseableName []string `json:"unparseable_name"` // does not match the naming convention
}

// Scanner cross-checks the media tree against the rating table: vibration
// files nobody rates and rated sounds whose files are gone both indicate a
// broken import.
type Scanner struct {
	db        *gorm.DB
	mediaRoot string
	logger    zerolog.Logger
}

// NewScanner creates a media scanner.
func NewScanner(db *gorm.DB, mediaRoot string, logger zerolog.Logger) *Scanner {
	return &Scanner{
		db:        db,
		mediaRoot: mediaRoot,
		logger:    logger.With().Str("component", "media_scanner").Logger(),
	}
}

// Scan walks the vibration tree and compares it with the rating table.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	known, err := s.knownVibrationFiles(ctx)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{}
	onDisk := make(map[string]struct{})

	root := filepath.Join(s.mediaRoot, KindVibration)
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // empty tree is fine
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(info.Name()), ".wav") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result.Scanned++
		name := info.Name()
		onDisk[name] = struct{}{}

		if _, _, parseErr := dataset.ParseVibrationFilename(name); parseErr != nil {
			result.UnparseableName = append(result.UnparseableName, name)
			return nil
		}
		if _, ok := known[name]; !ok {
			result.OrphanedFiles = append(result.OrphanedFiles, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for name := range known {
		if _, ok := onDisk[name]; !ok {
			result.MissingFiles = append(result.MissingFiles, name)
		}
	}

	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("orphaned", len(result.OrphanedFiles)).
		Int("missing", len(result.MissingFiles)).
		Int("unparseable", len(result.UnparseableName)).
		Msg("media scan complete")

	return result, nil
}

func (s *Scanner) knownVibrationFiles(ctx context.Context) (map[string]struct{}, error) {
	var records []models.RatingRecord
	if err := s.db.WithContext(ctx).Select("vibration_file").Find(&records).Error; err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.VibrationFile != "" {
			known[r.VibrationFile] = struct{}{}
		}
	}
	return known, nil
}
