/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package stats holds the pure aggregation transforms over rating records.
// Every function is deterministic given the same input slice; none of them
// mutate their arguments. Empty inputs yield NaN-bearing stats rather than
// errors, and callers are expected to render NaN as "no data".
package stats

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/tactilesound/ratingexplorer/internal/models"
)

// DesignStats summarizes all ratings for one design.
type DesignStats struct {
	Design        models.Design `json:"design"`
	AverageRating float64       `json:"averageRating"`
	Count         int           `json:"count"`
	MinRating     float64       `json:"minRating"`
	MaxRating     float64       `json:"maxRating"`
}

// designStatsWire is the JSON shape: NaN ("no data") crosses the wire as
// null, which encoding/json cannot do for a plain float64.
type designStatsWire struct {
	Design        models.Design `json:"design"`
	AverageRating *float64      `json:"averageRating"`
	Count         int           `json:"count"`
	MinRating     *float64      `json:"minRating"`
	MaxRating     *float64      `json:"maxRating"`
}

func floatOrNull(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func nullOrFloat(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func (s DesignStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(designStatsWire{
		Design:        s.Design,
		AverageRating: floatOrNull(s.AverageRating),
		Count:         s.Count,
		MinRating:     floatOrNull(s.MinRating),
		MaxRating:     floatOrNull(s.MaxRating),
	})
}

func (s *DesignStats) UnmarshalJSON(data []byte) error {
	var wire designStatsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Design = wire.Design
	s.Count = wire.Count
	s.AverageRating = nullOrFloat(wire.AverageRating)
	s.MinRating = nullOrFloat(wire.MinRating)
	s.MaxRating = nullOrFloat(wire.MaxRating)
	return nil
}

// CategoryStats summarizes one leaf category across all designs.
type CategoryStats struct {
	Category string        `json:"category"`
	Designs  []DesignStats `json:"designs"`
	// TotalCount assumes exactly one record per design per sound; with
	// partial ratings in the input it goes fractional, which callers
	// truncate. See ForClass for the same caveat.
	TotalCount int `json:"totalCount"`
}

// ClassStats summarizes one class code; the category is taken from the
// first matching record.
type ClassStats struct {
	Class      string        `json:"class"`
	Category   string        `json:"category"`
	Designs    []DesignStats `json:"designs"`
	TotalCount int           `json:"totalCount"`
}

// UniqueCategories returns the sorted distinct categories in records.
func UniqueCategories(records []models.RatingRecord) []string {
	return uniqueField(records, func(r models.RatingRecord) string { return r.Category })
}

// UniqueClasses returns the sorted distinct class codes in records.
func UniqueClasses(records []models.RatingRecord) []string {
	return uniqueField(records, func(r models.RatingRecord) string { return r.Class })
}

func uniqueField(records []models.RatingRecord, field func(models.RatingRecord) string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, record := range records {
		value := field(record)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}

// ForDesign computes mean/min/max rating for one design. With no matching
// records the numeric fields are NaN and Count is 0.
func ForDesign(records []models.RatingRecord, design models.Design) DesignStats {
	stats := DesignStats{
		Design:        design,
		AverageRating: math.NaN(),
		MinRating:     math.NaN(),
		MaxRating:     math.NaN(),
	}

	sum := 0.0
	for _, record := range records {
		if record.Design != design {
			continue
		}
		if stats.Count == 0 {
			stats.MinRating = record.Rating
			stats.MaxRating = record.Rating
		} else {
			stats.MinRating = math.Min(stats.MinRating, record.Rating)
			stats.MaxRating = math.Max(stats.MaxRating, record.Rating)
		}
		sum += record.Rating
		stats.Count++
	}
	if stats.Count > 0 {
		stats.AverageRating = sum / float64(stats.Count)
	}
	return stats
}

// ForCategory computes per-design stats for one leaf category.
func ForCategory(records []models.RatingRecord, category string) CategoryStats {
	filtered := filterRecords(records, func(r models.RatingRecord) bool { return r.Category == category })

	result := CategoryStats{Category: category, Designs: make([]DesignStats, 0, len(models.Designs))}
	for _, design := range models.Designs {
		result.Designs = append(result.Designs, ForDesign(filtered, design))
	}
	result.TotalCount = len(filtered) / len(models.Designs)
	return result
}

// ForClass computes per-design stats for one class code.
func ForClass(records []models.RatingRecord, class string) ClassStats {
	filtered := filterRecords(records, func(r models.RatingRecord) bool { return r.Class == class })

	result := ClassStats{Class: class, Designs: make([]DesignStats, 0, len(models.Designs))}
	if len(filtered) > 0 {
		result.Category = filtered[0].Category
	}
	for _, design := range models.Designs {
		result.Designs = append(result.Designs, ForDesign(filtered, design))
	}
	result.TotalCount = len(filtered) / len(models.Designs)
	return result
}

func filterRecords(records []models.RatingRecord, keep func(models.RatingRecord) bool) []models.RatingRecord {
	var filtered []models.RatingRecord
	for _, record := range records {
		if keep(record) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
