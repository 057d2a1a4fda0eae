/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selection is the single source of truth for "what is currently
// drilled into", shared across visualizations that do not otherwise know
// about each other. All changes fan out over the session event bus.
package selection

import (
	"errors"
	"sync"

	"github.com/tactilesound/ratingexplorer/internal/events"
	"github.com/tactilesound/ratingexplorer/internal/models"
)

// Origin identifies the visualization a selection change came from.
type Origin string

const (
	OriginSunburst  Origin = "sunburst"
	OriginRadial    Origin = "radial"
	OriginLineChart Origin = "linechart"
	OriginContour   Origin = "contour"
	OriginCatalog   Origin = "catalog"
	// OriginSystem marks internal mutations (cascade clears); these bypass
	// conflict gating because they are not click-driven.
	OriginSystem Origin = "system"
)

// Point is an atomic, fully-specified selection originating from a single
// line-chart data point.
type Point struct {
	Algorithm   models.Design `json:"algorithm"`
	Class       string        `json:"class"`
	Category    string        `json:"category"`
	Subcategory string        `json:"subcategory"`
}

// State is the current selection. Nil means cleared.
type State struct {
	Algorithm   *models.Design    `json:"selectedAlgorithm"`
	Category    *string           `json:"selectedCategory"`
	Subcategory *string           `json:"selectedSubcategory"`
	Point       *Point            `json:"selectedPoint"`
	Sound       *models.SoundCard `json:"selectedSound"`
}

// ErrConflict is returned when a click-driven drill change is refused
// because an independent visualization's point selection is active. The
// caller must surface the two resolutions to the user; nothing is resolved
// silently and the refused click is never replayed automatically.
var ErrConflict = errors.New("selection conflict: point selection active")

// ConflictError carries the context of a refused selection change.
type ConflictError struct {
	Attempted   events.EventType
	Origin      Origin
	PointOrigin Origin
}

func (e *ConflictError) Error() string {
	return "selection conflict: " + string(e.Attempted) + " from " + string(e.Origin) +
		" refused while a point selection from " + string(e.PointOrigin) + " is active"
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Coordinator owns the selection state for one dashboard session.
type Coordinator struct {
	mu          sync.Mutex
	state       State
	pointOrigin Origin
	bus         *events.Bus
}

// NewCoordinator creates a coordinator publishing on bus (may be nil in
// tests).
func NewCoordinator(bus *events.Bus) *Coordinator {
	return &Coordinator{bus: bus}
}

// State returns a snapshot of the current selection.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() State {
	snapshot := c.state
	if c.state.Algorithm != nil {
		v := *c.state.Algorithm
		snapshot.Algorithm = &v
	}
	if c.state.Category != nil {
		v := *c.state.Category
		snapshot.Category = &v
	}
	if c.state.Subcategory != nil {
		v := *c.state.Subcategory
		snapshot.Subcategory = &v
	}
	if c.state.Point != nil {
		v := *c.state.Point
		snapshot.Point = &v
	}
	return snapshot
}

// SelectAlgorithm sets (or toggles off) the active algorithm. Selecting the
// value already active clears it; clearing cascades a reset notification so
// consumers keyed off the algorithm drop back to their top level.
func (c *Coordinator) SelectAlgorithm(origin Origin, design *models.Design) error {
	c.mu.Lock()
	if err := c.gateLocked(origin, events.EventAlgorithmSelected); err != nil {
		c.mu.Unlock()
		c.publishConflict(err)
		return err
	}

	if design != nil && c.state.Algorithm != nil && *design == *c.state.Algorithm {
		design = nil // toggle
	}
	c.state.Algorithm = design
	cleared := design == nil
	c.mu.Unlock()

	c.publish(events.EventAlgorithmSelected, events.Payload{
		"origin":  origin,
		"value":   designValue(design),
		"cleared": cleared,
	})
	return nil
}

// SelectCategory sets (or toggles off) the active category group. Setting a
// category while a subcategory is active clears the subcategory: the more
// specific level wins until explicitly cleared upward.
func (c *Coordinator) SelectCategory(origin Origin, group *string) error {
	c.mu.Lock()
	if err := c.gateLocked(origin, events.EventCategorySelected); err != nil {
		c.mu.Unlock()
		c.publishConflict(err)
		return err
	}

	if group != nil && c.state.Category != nil && *group == *c.state.Category {
		group = nil
	}
	c.state.Category = group
	if group != nil {
		c.state.Subcategory = nil
	}
	c.mu.Unlock()

	c.publish(events.EventCategorySelected, events.Payload{
		"origin":  origin,
		"value":   stringValue(group),
		"cleared": group == nil,
	})
	return nil
}

// SelectSubcategory sets (or toggles off) the active leaf category. A prior
// category selection is not required; a consumer may jump straight to
// subcategory-level display.
func (c *Coordinator) SelectSubcategory(origin Origin, leaf *string) error {
	c.mu.Lock()
	if err := c.gateLocked(origin, events.EventSubcategorySelected); err != nil {
		c.mu.Unlock()
		c.publishConflict(err)
		return err
	}

	if leaf != nil && c.state.Subcategory != nil && *leaf == *c.state.Subcategory {
		leaf = nil
	}
	c.state.Subcategory = leaf
	c.mu.Unlock()

	c.publish(events.EventSubcategorySelected, events.Payload{
		"origin":  origin,
		"value":   stringValue(leaf),
		"cleared": leaf == nil,
	})
	return nil
}

// SelectPoint records an atomic point selection, forcing dependent
// visualizations directly to their deepest drill level. Selecting the same
// point toggles it off. Point selection is never conflict-gated: it is the
// selection the gate protects.
func (c *Coordinator) SelectPoint(origin Origin, point *Point) {
	c.mu.Lock()
	if point != nil && c.state.Point != nil && *point == *c.state.Point {
		point = nil
	}
	c.state.Point = point
	if point != nil {
		c.pointOrigin = origin
	} else {
		c.pointOrigin = ""
	}
	c.mu.Unlock()

	payload := events.Payload{"origin": origin, "cleared": point == nil}
	if point != nil {
		payload["value"] = *point
	}
	c.publish(events.EventPointSelected, payload)
}

// SelectSound records (or toggles off) the active individual sound.
func (c *Coordinator) SelectSound(origin Origin, sound *models.SoundCard) {
	c.mu.Lock()
	if sound != nil && c.state.Sound != nil && sound.ID == c.state.Sound.ID {
		sound = nil
	}
	c.state.Sound = sound
	c.mu.Unlock()

	payload := events.Payload{"origin": origin, "cleared": sound == nil}
	if sound != nil {
		payload["value"] = *sound
	}
	c.publish(events.EventSoundSelected, payload)
}

// ClearPoint drops the active point selection. This is the "clear the
// conflicting selection" resolution of a conflict notice; the refused click
// is not replayed.
func (c *Coordinator) ClearPoint() {
	c.SelectPoint(OriginSystem, nil)
}

// ClearForFilters implements filter.SelectionClearer: a full filter reset
// deselects everything so the two views of overlapping state cannot
// diverge.
func (c *Coordinator) ClearForFilters() {
	c.mu.Lock()
	c.state = State{}
	c.pointOrigin = ""
	c.mu.Unlock()

	cleared := events.Payload{"origin": OriginSystem, "cleared": true}
	c.publish(events.EventAlgorithmSelected, cleared)
	c.publish(events.EventCategorySelected, cleared)
	c.publish(events.EventSubcategorySelected, cleared)
	c.publish(events.EventPointSelected, cleared)
	c.publish(events.EventSoundSelected, cleared)
}

func (c *Coordinator) gateLocked(origin Origin, attempted events.EventType) error {
	if origin == OriginSystem {
		return nil
	}
	if c.state.Point != nil && origin != c.pointOrigin {
		return &ConflictError{Attempted: attempted, Origin: origin, PointOrigin: c.pointOrigin}
	}
	return nil
}

func (c *Coordinator) publish(eventType events.EventType, payload events.Payload) {
	if c.bus != nil {
		c.bus.Publish(eventType, payload)
	}
}

func (c *Coordinator) publishConflict(err error) {
	var conflict *ConflictError
	if c.bus != nil && errors.As(err, &conflict) {
		c.bus.Publish(events.EventSelectionConflict, events.Payload{
			"attempted":    conflict.Attempted,
			"origin":       conflict.Origin,
			"point_origin": conflict.PointOrigin,
		})
	}
}

func designValue(d *models.Design) any {
	if d == nil {
		return nil
	}
	return *d
}

func stringValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
