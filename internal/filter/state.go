/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package filter owns the canonical per-session filter state. All mutation
// goes through the Container so debounce, cascade-clear and group-toggle
// invariants stay centralized.
package filter

import (
	"github.com/tactilesound/ratingexplorer/internal/models"
)

// SortKey selects the catalog sort dimension.
type SortKey string

const (
	SortAverage  SortKey = "average"
	SortVariance SortKey = "variance"
	SortFilename SortKey = "filename"
)

// SortOrder selects ascending or descending output.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// RatingRange is an inclusive bound on a sound's max rating.
type RatingRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v falls inside the inclusive range.
func (r RatingRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// State is the full set of user-adjustable view constraints. Empty sets
// mean "unrestricted", never "exclude all".
type State struct {
	Search      string          `json:"search"`
	Categories  []string        `json:"categories"`
	Classes     []string        `json:"classes"`
	Designs     []models.Design `json:"designs"`
	Algorithms  []models.Design `json:"algorithms"`
	RatingRange RatingRange     `json:"ratingRange"`
	SortBy      SortKey         `json:"sortBy"`
	SortOrder   SortOrder       `json:"sortOrder"`
}

// Update is a partial state; nil fields are left untouched by
// Container.UpdateFilter (shallow merge).
type Update struct {
	Search      *string          `json:"search,omitempty"`
	Categories  *[]string        `json:"categories,omitempty"`
	Classes     *[]string        `json:"classes,omitempty"`
	Designs     *[]models.Design `json:"designs,omitempty"`
	Algorithms  *[]models.Design `json:"algorithms,omitempty"`
	RatingRange *RatingRange     `json:"ratingRange,omitempty"`
	SortBy      *SortKey         `json:"sortBy,omitempty"`
	SortOrder   *SortOrder       `json:"sortOrder,omitempty"`
}

// DefaultState returns an unrestricted state except for the configured
// rating floor (the dashboard ships with a 35-point floor so the grid is
// not dominated by unrated sounds).
func DefaultState(ratingFloor float64) State {
	return State{
		RatingRange: RatingRange{Min: ratingFloor, Max: 100},
		SortBy:      SortAverage,
		SortOrder:   SortDesc,
	}
}

// HasCategory reports whether a leaf category is selected.
func (s State) HasCategory(leaf string) bool {
	for _, c := range s.Categories {
		if c == leaf {
			return true
		}
	}
	return false
}

// Clone deep-copies the slice-valued fields so a snapshot handed to a
// consumer cannot be mutated under it.
func (s State) Clone() State {
	clone := s
	clone.Categories = append([]string(nil), s.Categories...)
	clone.Classes = append([]string(nil), s.Classes...)
	clone.Designs = append([]models.Design(nil), s.Designs...)
	clone.Algorithms = append([]models.Design(nil), s.Algorithms...)
	return clone
}

func (s *State) merge(u Update) {
	if u.Search != nil {
		s.Search = *u.Search
	}
	if u.Categories != nil {
		s.Categories = append([]string(nil), (*u.Categories)...)
	}
	if u.Classes != nil {
		s.Classes = append([]string(nil), (*u.Classes)...)
	}
	if u.Designs != nil {
		s.Designs = append([]models.Design(nil), (*u.Designs)...)
	}
	if u.Algorithms != nil {
		s.Algorithms = append([]models.Design(nil), (*u.Algorithms)...)
	}
	if u.RatingRange != nil {
		s.RatingRange = *u.RatingRange
	}
	if u.SortBy != nil {
		s.SortBy = *u.SortBy
	}
	if u.SortOrder != nil {
		s.SortOrder = *u.SortOrder
	}
}

// GroupState is the tri-state selection of a category group.
type GroupState int

const (
	GroupUnselected GroupState = iota
	GroupPartial
	GroupSelected
)

func (g GroupState) String() string {
	switch g {
	case GroupSelected:
		return "selected"
	case GroupPartial:
		return "partial"
	default:
		return "unselected"
	}
}
