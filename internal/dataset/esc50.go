/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tactilesound/ratingexplorer/internal/models"
)

// FileInfo is the provenance parsed from an ESC-50 style audio filename,
// {fold}-{clip_id}-{take}-{target}.wav, e.g. "1-100038-A-14.wav".
type FileInfo struct {
	Fold     string
	ClipID   string
	Take     string
	Target   int
	Category string
}

// ParseAudioFilename parses an ESC-50 audio filename. The category is
// resolved through the fixed target table; unknown targets are rejected
// rather than labelled "unknown" so bad files fail the import loudly.
func ParseAudioFilename(name string) (FileInfo, error) {
	base := strings.TrimSuffix(name, ".wav")
	if base == name {
		return FileInfo{}, fmt.Errorf("parse %q: not a .wav filename", name)
	}
	parts := strings.Split(base, "-")
	if len(parts) < 4 {
		return FileInfo{}, fmt.Errorf("parse %q: want {fold}-{clip_id}-{take}-{target}", name)
	}

	target, err := strconv.Atoi(parts[3])
	if err != nil {
		return FileInfo{}, fmt.Errorf("parse %q: target: %w", name, err)
	}
	category, ok := models.TargetCategories[target]
	if !ok {
		return FileInfo{}, fmt.Errorf("parse %q: unknown target class %d", name, target)
	}

	return FileInfo{
		Fold:     parts[0],
		ClipID:   parts[1],
		Take:     parts[2],
		Target:   target,
		Category: category,
	}, nil
}

// ParseVibrationFilename parses a vibration filename,
// {fold}-{clip_id}-{take}-{target}-vib-{design}.wav, returning the info of
// the underlying audio file plus the design.
func ParseVibrationFilename(name string) (FileInfo, models.Design, error) {
	base, designPart, found := strings.Cut(name, "-vib-")
	if !found {
		return FileInfo{}, "", fmt.Errorf("parse %q: missing -vib- marker", name)
	}
	design := models.Design(strings.TrimSuffix(designPart, ".wav"))
	if !design.Valid() {
		return FileInfo{}, "", fmt.Errorf("parse %q: unknown design %q", name, design)
	}
	info, err := ParseAudioFilename(base + ".wav")
	if err != nil {
		return FileInfo{}, "", err
	}
	return info, design, nil
}

// VibrationFilename constructs the vibration filename for an audio file and
// design.
func VibrationFilename(audioFile string, design models.Design) string {
	base := strings.TrimSuffix(audioFile, ".wav")
	return fmt.Sprintf("%s-vib-%s.wav", base, design)
}
