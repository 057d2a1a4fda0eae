/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Top-level category groups. Every leaf category belongs to exactly one.
const (
	GroupAnimals  = "Animals"
	GroupNatural  = "Natural Soundscapes"
	GroupHuman    = "Human Non-Speech"
	GroupInterior = "Interior/Domestic"
	GroupExterior = "Exterior/Urban"
)

// GroupNames lists the groups in display order.
var GroupNames = []string{GroupAnimals, GroupNatural, GroupHuman, GroupInterior, GroupExterior}

// TargetCategories maps an ESC-50 target class (0-49) to its leaf category.
// Used by the importer to derive categories from filenames.
var TargetCategories = map[int]string{
	0: "dog", 1: "rooster", 2: "pig", 3: "cow", 4: "frog",
	5: "cat", 6: "hen", 7: "insects", 8: "sheep", 9: "crow",
	10: "rain", 11: "sea_waves", 12: "crackling_fire", 13: "crickets",
	14: "chirping_birds", 15: "water_drops", 16: "wind", 17: "pouring_water",
	18: "toilet_flush", 19: "thunderstorm", 20: "crying_baby", 21: "sneezing",
	22: "clapping", 23: "breathing", 24: "coughing", 25: "footsteps",
	26: "laughing", 27: "brushing_teeth", 28: "snoring", 29: "drinking_sipping",
	30: "door_wood_knock", 31: "mouse_click", 32: "keyboard_typing",
	33: "door_wood_creaks", 34: "can_opening", 35: "washing_machine",
	36: "vacuum_cleaner", 37: "clock_alarm", 38: "clock_tick", 39: "glass_breaking",
	40: "helicopter", 41: "chainsaw", 42: "siren", 43: "car_horn", 44: "engine",
	45: "train", 46: "church_bells", 47: "airplane", 48: "fireworks", 49: "hand_saw",
}

// Taxonomy is the leaf-category to group partition, held as configuration
// data with a bidirectional lookup built once.
type Taxonomy struct {
	groups      map[string][]string
	leafToGroup map[string]string
}

// taxonomyFile is the on-disk YAML override shape.
type taxonomyFile struct {
	Groups map[string][]string `yaml:"groups"`
}

// DefaultTaxonomy returns the fixed ESC-50 partition: each block of ten
// target classes forms one group.
func DefaultTaxonomy() *Taxonomy {
	groups := make(map[string][]string, len(GroupNames))
	for target := 0; target < 50; target++ {
		group := GroupNames[target/10]
		groups[group] = append(groups[group], TargetCategories[target])
	}
	taxonomy, err := NewTaxonomy(groups)
	if err != nil {
		// The built-in table is validated by tests; a failure here is a bug.
		panic(err)
	}
	return taxonomy
}

// LoadTaxonomy reads a YAML override file. The file replaces the whole
// partition; there is no per-group merging.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	return NewTaxonomy(file.Groups)
}

// NewTaxonomy validates and indexes a partition: every leaf must map to
// exactly one group.
func NewTaxonomy(groups map[string][]string) (*Taxonomy, error) {
	leafToGroup := make(map[string]string)
	for group, leaves := range groups {
		for _, leaf := range leaves {
			if previous, dup := leafToGroup[leaf]; dup {
				return nil, fmt.Errorf("category %q appears in both %q and %q", leaf, previous, group)
			}
			leafToGroup[leaf] = group
		}
	}
	indexed := make(map[string][]string, len(groups))
	for group, leaves := range groups {
		sorted := append([]string(nil), leaves...)
		sort.Strings(sorted)
		indexed[group] = sorted
	}
	return &Taxonomy{groups: indexed, leafToGroup: leafToGroup}, nil
}

// GroupOf returns the group a leaf category belongs to.
func (t *Taxonomy) GroupOf(leaf string) (string, bool) {
	group, ok := t.leafToGroup[leaf]
	return group, ok
}

// Leaves returns the sorted leaf categories of a group, or nil for an
// unknown group.
func (t *Taxonomy) Leaves(group string) []string {
	leaves := t.groups[group]
	if leaves == nil {
		return nil
	}
	return append([]string(nil), leaves...)
}

// Groups returns the group names present, sorted.
func (t *Taxonomy) Groups() []string {
	names := make([]string, 0, len(t.groups))
	for name := range t.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsGroup reports whether name is a group label (as opposed to a leaf).
func (t *Taxonomy) IsGroup(name string) bool {
	_, ok := t.groups[name]
	return ok
}
