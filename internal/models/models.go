/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Design identifies a vibration rendering algorithm.
type Design string

const (
	DesignFreqShift  Design = "freqshift"
	DesignHapticGen  Design = "hapticgen"
	DesignPercept    Design = "percept"
	DesignPitchMatch Design = "pitchmatch"
)

// Designs is the canonical enumeration order. Best-algorithm tie-breaking
// and per-design rating layout both follow this order, so it must not be
// reordered without migrating stored summaries.
var Designs = []Design{DesignFreqShift, DesignHapticGen, DesignPercept, DesignPitchMatch}

// Valid reports whether d is one of the tracked designs.
func (d Design) Valid() bool {
	for _, known := range Designs {
		if d == known {
			return true
		}
	}
	return false
}

// RatingRecord is one audio-file x design rating. Records are immutable
// once loaded; everything else in the system derives from them.
type RatingRecord struct {
	ID            string  `gorm:"primaryKey" json:"id"`
	AudioFile     string  `gorm:"index" json:"audioFile"`
	VibrationFile string  `json:"vibrationFile"`
	Class         string  `gorm:"index" json:"class"`
	Category      string  `gorm:"index" json:"category"`
	Design        Design  `gorm:"index" json:"design"`
	Rating        float64 `json:"rating"`

	// Provenance metadata from the ESC-50 naming convention
	// {fold}-{clip_id}-{take}-{target}.wav. Passed through untouched.
	Target int    `json:"target"`
	Fold   string `json:"fold"`
	ClipID string `json:"clip_id"`
	Take   string `json:"take"`

	CreatedAt time.Time `json:"-"`
}

// TableName sets the gorm table name.
func (RatingRecord) TableName() string { return "rating_records" }

// SoundCard is the per-audio-file view built by the catalog builder: all
// design ratings for one sound merged into a single entity.
type SoundCard struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	AudioFile string `json:"audioFile"`

	// Ratings always carries every tracked design; absent records default
	// to 0 and are not distinguishable from a true zero score here.
	Ratings map[Design]float64 `json:"ratings"`

	MaxRating      float64  `json:"maxRating"`
	BestAlgorithm  Design   `json:"bestAlgorithm"`
	HasZeroRatings bool     `json:"hasZeroRatings"`
	MissingDesigns []Design `json:"missingDesigns,omitempty"`

	Category  string `json:"category"`
	Class     string `json:"class"`
	SoundName string `json:"soundname"`
}

// Summary is the aggregate object served at /data/summary.json.
type Summary struct {
	TotalRecords    int                `json:"total_records"`
	TotalSounds     int                `json:"total_sounds"`
	Categories      int                `json:"categories"`
	Classes         int                `json:"classes"`
	AverageByDesign map[Design]float64 `json:"average_by_design"`
	GeneratedAt     time.Time          `json:"generated_at"`
}
