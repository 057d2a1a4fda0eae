/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tactilesound/ratingexplorer/internal/models"
)

// Importer performs the one-shot ETL: an ESC-50 ratings CSV becomes
// RatingRecords in the database the server loads at startup.
type Importer struct {
	db     *gorm.DB
	logger zerolog.Logger
	dryRun bool
}

// ImportResult summarizes one import run.
type ImportResult struct {
	BatchID  string
	Imported int
	Skipped  int
}

// NewImporter creates an importer. With dryRun set the CSV is parsed and
// validated but nothing is written.
func NewImporter(db *gorm.DB, logger zerolog.Logger, dryRun bool) *Importer {
	return &Importer{db: db, logger: logger.With().Str("component", "importer").Logger(), dryRun: dryRun}
}

// ImportCSV reads a ratings CSV with header
// filename,design,rating[,fold,target,category,clip_id,take] and upserts
// one RatingRecord per row. Rows that fail to parse are skipped with a
// warning; the import does not abort on a bad row.
func (imp *Importer) ImportCSV(path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ratings csv: %w", err)
	}
	defer f.Close()
	return imp.importReader(csv.NewReader(f))
}

func (imp *Importer) importReader(reader *csv.Reader) (*ImportResult, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, required := range []string{"filename", "design", "rating"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("ratings csv missing %q column", required)
		}
	}

	result := &ImportResult{BatchID: uuid.NewString()}
	var batch []models.RatingRecord

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		record, err := imp.rowToRecord(row, columns)
		if err != nil {
			imp.logger.Warn().Err(err).Msg("skipping unparseable row")
			result.Skipped++
			continue
		}
		batch = append(batch, record)
		result.Imported++
	}

	if imp.dryRun {
		imp.logger.Info().Int("rows", result.Imported).Msg("dry run, nothing written")
		return result, nil
	}

	if len(batch) > 0 {
		err := imp.db.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(batch, 500).Error
		if err != nil {
			return nil, fmt.Errorf("write rating records: %w", err)
		}
	}

	imp.logger.Info().
		Str("batch_id", result.BatchID).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("ratings import complete")
	return result, nil
}

func (imp *Importer) rowToRecord(row []string, columns map[string]int) (models.RatingRecord, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	filename := field("filename")
	design := models.Design(field("design"))
	if !design.Valid() {
		return models.RatingRecord{}, fmt.Errorf("row %q: unknown design %q", filename, design)
	}

	rating, err := strconv.ParseFloat(field("rating"), 64)
	if err != nil {
		return models.RatingRecord{}, fmt.Errorf("row %q: rating: %w", filename, err)
	}
	if rating < 0 || rating > 100 {
		return models.RatingRecord{}, fmt.Errorf("row %q: rating %v outside [0,100]", filename, rating)
	}

	// Provenance comes from the filename; explicit CSV columns win when
	// present so hand-curated datasets can override.
	info, err := ParseAudioFilename(filename)
	if err != nil {
		return models.RatingRecord{}, err
	}
	category := info.Category
	if v := field("category"); v != "" {
		category = v
	}

	return models.RatingRecord{
		ID:            fmt.Sprintf("%s:%s", filename, design),
		AudioFile:     filename,
		VibrationFile: VibrationFilename(filename, design),
		Class:         strconv.Itoa(info.Target),
		Category:      category,
		Design:        design,
		Rating:        rating,
		Target:        info.Target,
		Fold:          info.Fold,
		ClipID:        info.ClipID,
		Take:          info.Take,
	}, nil
}

// LoadFromDB reads the full record set into an immutable store.
func LoadFromDB(db *gorm.DB) (*Store, error) {
	var records []models.RatingRecord
	if err := db.Order("audio_file, design").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load rating records: %w", err)
	}
	return New(records), nil
}
