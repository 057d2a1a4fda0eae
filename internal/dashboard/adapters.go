/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dashboard

import (
	"sync"

	"github.com/tactilesound/ratingexplorer/internal/events"
	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/selection"
)

// ChartInputs is what every chart consumes: the relevant record slice
// (already filtered upstream where applicable) and the selection fields it
// cares about, as plain values. No chart owns selection state itself.
type ChartInputs struct {
	Records   []models.RatingRecord `json:"records"`
	Selection selection.State       `json:"selection"`
}

// DrillAdapter is the boundary contract for a navigation-capable,
// hierarchical visualization (the sunburst). Click methods are the events
// the chart emits; HandleEvent keeps its drill level consistent with
// selection changes that originate elsewhere.
type DrillAdapter struct {
	origin selection.Origin
	coord  *selection.Coordinator

	mu    sync.Mutex
	drill *selection.Drill
}

// NewSunburstAdapter creates the drill adapter for the sunburst chart.
func NewSunburstAdapter(coord *selection.Coordinator) *DrillAdapter {
	return &DrillAdapter{origin: selection.OriginSunburst, coord: coord, drill: selection.NewDrill()}
}

// Level exposes the current drill depth.
func (a *DrillAdapter) Level() selection.Level {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drill.Level()
}

// ClickAlgorithm handles a Level1 wedge click. Clicking the already-active
// algorithm toggles it off and the chart returns to the top level.
func (a *DrillAdapter) ClickAlgorithm(design models.Design) error {
	if err := a.coord.SelectAlgorithm(a.origin, &design); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.coord.State().Algorithm == nil {
		a.drill.Reset()
		return nil
	}
	if a.drill.Level() != selection.Level1 {
		a.drill.Reset()
	}
	a.drill.DescendAlgorithm(design)
	return nil
}

// ClickCategory handles a Level2 wedge click.
func (a *DrillAdapter) ClickCategory(group string) error {
	if err := a.coord.SelectCategory(a.origin, &group); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.coord.State().Category == nil {
		// Toggled off: fall back to the algorithm level.
		a.drill.ResetBelowAlgorithm()
		return nil
	}
	if a.drill.Level() > selection.Level2 {
		a.drill.ResetBelowAlgorithm()
	}
	if a.drill.Level() == selection.Level1 {
		// The algorithm was picked in another chart; catch the drill up.
		if algo := a.coord.State().Algorithm; algo != nil {
			a.drill.DescendAlgorithm(*algo)
		}
	}
	a.drill.DescendCategory(group)
	return nil
}

// ClickSubcategory handles a Level3 wedge click.
func (a *DrillAdapter) ClickSubcategory(leaf string) error {
	if err := a.coord.SelectSubcategory(a.origin, &leaf); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.coord.State().Subcategory == nil {
		if a.drill.Level() == selection.Level4 {
			a.drill.Back()
		}
		return nil
	}
	if a.drill.Level() == selection.Level4 {
		// Switching leaves while already at the deepest level.
		a.drill.Back()
	}
	a.drill.DescendSubcategory(leaf)
	return nil
}

// ClickSound is the Level4 leaf action: it emits sound-selected and does
// not transition further.
func (a *DrillAdapter) ClickSound(card *models.SoundCard) {
	a.coord.SelectSound(a.origin, card)
}

// ClickCenter retreats exactly one level and clears the selection field
// that was only meaningful at the deeper level. Still-valid shallower
// fields are re-asserted, not dropped.
func (a *DrillAdapter) ClickCenter() error {
	// Retreat before publishing: the system-origin clear event echoes back
	// through the pump, and the reset helpers are idempotent against an
	// already-retreated drill.
	a.mu.Lock()
	level := a.drill.Level()
	a.drill.Back()
	a.mu.Unlock()

	switch level {
	case selection.Level4:
		return a.coord.SelectSubcategory(selection.OriginSystem, nil)
	case selection.Level3:
		return a.coord.SelectCategory(selection.OriginSystem, nil)
	case selection.Level2:
		return a.coord.SelectAlgorithm(selection.OriginSystem, nil)
	default:
		return nil
	}
}

// HandleEvent applies a selection change that originated in another
// visualization (or a cascade clear) to this chart's drill state.
func (a *DrillAdapter) HandleEvent(eventType events.EventType, payload events.Payload) {
	a.mu.Lock()
	defer a.mu.Unlock()

	origin, _ := payload["origin"].(selection.Origin)
	if origin == a.origin {
		return // own interaction, drill already updated
	}
	cleared, _ := payload["cleared"].(bool)

	switch eventType {
	case events.EventAlgorithmSelected:
		if cleared {
			// Clearing the algorithm resets any navigation keyed off it.
			a.drill.Reset()
		}
	case events.EventCategorySelected:
		if cleared {
			a.drill.ResetBelowAlgorithm()
		}
	case events.EventPointSelected:
		if cleared {
			if a.coord.State().Algorithm != nil {
				a.drill.ResetBelowAlgorithm()
			} else {
				a.drill.Reset()
			}
			return
		}
		if point, ok := payload["value"].(selection.Point); ok {
			// An atomic point selection forces this chart straight to its
			// deepest level.
			a.drill.JumpToPoint(point)
		}
	}
}

// PointAdapter is the boundary contract for the line chart, which emits
// atomic point selections.
type PointAdapter struct {
	origin selection.Origin
	coord  *selection.Coordinator
}

// NewLineChartAdapter creates the point adapter for the line chart.
func NewLineChartAdapter(coord *selection.Coordinator) *PointAdapter {
	return &PointAdapter{origin: selection.OriginLineChart, coord: coord}
}

// ClickPoint selects a data point; clicking the same point again clears it.
func (a *PointAdapter) ClickPoint(point selection.Point) {
	a.coord.SelectPoint(a.origin, &point)
}

// ToggleAdapter is the boundary contract for flat, non-hierarchical charts
// (radial bars, contour) which only toggle the active algorithm.
type ToggleAdapter struct {
	origin selection.Origin
	coord  *selection.Coordinator
}

// NewRadialAdapter creates the toggle adapter for the radial bar chart.
func NewRadialAdapter(coord *selection.Coordinator) *ToggleAdapter {
	return &ToggleAdapter{origin: selection.OriginRadial, coord: coord}
}

// ClickAlgorithm toggles the active algorithm.
func (a *ToggleAdapter) ClickAlgorithm(design models.Design) error {
	return a.coord.SelectAlgorithm(a.origin, &design)
}
