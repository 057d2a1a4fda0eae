/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package dataset owns the rating record store: the flat, immutable-per-load
// array of rating records everything else derives from.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tactilesound/ratingexplorer/internal/models"
)

// Store holds one loaded dataset. Records are immutable after construction;
// a reload produces a new Store.
type Store struct {
	records []models.RatingRecord
	summary models.Summary
}

// New builds a store over records and precomputes the summary.
func New(records []models.RatingRecord) *Store {
	s := &Store{records: append([]models.RatingRecord(nil), records...)}
	s.summary = summarize(s.records)
	return s
}

// LoadFile reads a ratings JSON array from disk.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadJSON(f)
}

// LoadJSON decodes a ratings JSON array.
func LoadJSON(r io.Reader) (*Store, error) {
	var records []models.RatingRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return New(records), nil
}

// Records returns the loaded records. Callers must treat the slice as
// read-only.
func (s *Store) Records() []models.RatingRecord {
	return s.records
}

// Summary returns the precomputed aggregate summary.
func (s *Store) Summary() models.Summary {
	return s.summary
}

// Len returns the record count.
func (s *Store) Len() int { return len(s.records) }

func summarize(records []models.RatingRecord) models.Summary {
	sounds := make(map[string]bool)
	categories := make(map[string]bool)
	classes := make(map[string]bool)
	sums := make(map[models.Design]float64)
	counts := make(map[models.Design]int)

	for _, record := range records {
		sounds[record.AudioFile] = true
		categories[record.Category] = true
		classes[record.Class] = true
		sums[record.Design] += record.Rating
		counts[record.Design]++
	}

	averages := make(map[models.Design]float64, len(models.Designs))
	for _, design := range models.Designs {
		if counts[design] > 0 {
			averages[design] = sums[design] / float64(counts[design])
		}
	}

	return models.Summary{
		TotalRecords:    len(records),
		TotalSounds:     len(sounds),
		Categories:      len(categories),
		Classes:         len(classes),
		AverageByDesign: averages,
		GeneratedAt:     time.Now().UTC(),
	}
}
