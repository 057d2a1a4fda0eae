/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package selection

import "github.com/tactilesound/ratingexplorer/internal/models"

// Level is the drill depth of a navigation-capable visualization.
type Level int

const (
	Level1 Level = iota + 1 // top, all axes free
	Level2                  // one axis fixed (algorithm)
	Level3                  // two axes fixed (algorithm + category group)
	Level4                  // fully specific, individual items
)

// Drill is the per-visualization navigation state machine. Each
// drill-capable chart owns one instance; the coordinator keeps them in sync
// through bus events.
type Drill struct {
	level       Level
	algorithm   *models.Design
	category    *string
	subcategory *string
}

// NewDrill starts at Level1 with all fields clear.
func NewDrill() *Drill {
	return &Drill{level: Level1}
}

// Level returns the current depth.
func (d *Drill) Level() Level { return d.level }

// Algorithm returns the algorithm fixed at Level2+, or nil.
func (d *Drill) Algorithm() *models.Design { return d.algorithm }

// Category returns the group fixed at Level3+, or nil.
func (d *Drill) Category() *string { return d.category }

// Subcategory returns the leaf fixed at Level4, or nil.
func (d *Drill) Subcategory() *string { return d.subcategory }

// DescendAlgorithm advances Level1 -> Level2.
func (d *Drill) DescendAlgorithm(design models.Design) bool {
	if d.level != Level1 {
		return false
	}
	d.algorithm = &design
	d.level = Level2
	return true
}

// DescendCategory advances Level2 -> Level3.
func (d *Drill) DescendCategory(group string) bool {
	if d.level != Level2 {
		return false
	}
	d.category = &group
	d.level = Level3
	return true
}

// DescendSubcategory advances Level3 -> Level4.
func (d *Drill) DescendSubcategory(leaf string) bool {
	if d.level != Level3 {
		return false
	}
	d.subcategory = &leaf
	d.level = Level4
	return true
}

// Back retreats exactly one level, clearing only the field that was
// meaningful at the deeper level. Fields scoping the shallower levels are
// retained: stepping back from Level3 keeps the algorithm fixed at Level2.
func (d *Drill) Back() bool {
	switch d.level {
	case Level4:
		d.subcategory = nil
		d.level = Level3
	case Level3:
		d.category = nil
		d.level = Level2
	case Level2:
		d.algorithm = nil
		d.level = Level1
	default:
		return false
	}
	return true
}

// JumpToPoint applies an atomic point selection, skipping the intermediate
// navigation clicks.
func (d *Drill) JumpToPoint(point Point) {
	algorithm := point.Algorithm
	category := point.Category
	subcategory := point.Subcategory
	d.algorithm = &algorithm
	d.category = &category
	d.subcategory = &subcategory
	d.level = Level4
}

// Reset returns to Level1 with all fields clear.
func (d *Drill) Reset() {
	*d = Drill{level: Level1}
}

// ResetBelowAlgorithm drops any navigation deeper than Level2. Used when a
// stale category/subcategory must be shed while an algorithm selection is
// still active.
func (d *Drill) ResetBelowAlgorithm() {
	if d.level <= Level2 {
		return
	}
	d.category = nil
	d.subcategory = nil
	d.level = Level2
}
