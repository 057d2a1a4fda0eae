/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package filter

import (
	"sync"
	"time"

	"github.com/tactilesound/ratingexplorer/internal/events"
	"github.com/tactilesound/ratingexplorer/internal/models"
)

// DefaultDebounce is the propagation delay applied to filter mutations so
// one keystroke does not trigger a catalog rebuild per character.
const DefaultDebounce = 300 * time.Millisecond

// SelectionClearer is the hook into the selection coordinator used by
// ClearAllFilters: filters and selection are two views of overlapping
// state and must not diverge.
type SelectionClearer interface {
	ClearForFilters()
}

// Consumer receives debounced state snapshots.
type Consumer func(State)

// Container holds the canonical State and debounces propagation. One
// container per dashboard session.
type Container struct {
	mu        sync.Mutex
	state     State
	defaults  State
	taxonomy  *models.Taxonomy
	debounce  time.Duration
	consumers []Consumer
	bus       *events.Bus
	selection SelectionClearer

	timer      *time.Timer
	generation uint64
}

// NewContainer creates a container with the given defaults. bus may be nil
// (tests); the selection clearer is attached later because the coordinator
// is constructed after the container.
func NewContainer(defaults State, taxonomy *models.Taxonomy, debounce time.Duration, bus *events.Bus) *Container {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Container{
		state:    defaults.Clone(),
		defaults: defaults.Clone(),
		taxonomy: taxonomy,
		debounce: debounce,
		bus:      bus,
	}
}

// SetSelectionClearer attaches the coordinator hook for cascade clears.
func (c *Container) SetSelectionClearer(clearer SelectionClearer) {
	c.mu.Lock()
	c.selection = clearer
	c.mu.Unlock()
}

// Subscribe registers a consumer for debounced state snapshots.
func (c *Container) Subscribe(consumer Consumer) {
	c.mu.Lock()
	c.consumers = append(c.consumers, consumer)
	c.mu.Unlock()
}

// State returns a snapshot of the current (possibly not yet propagated)
// state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// UpdateFilter shallow-merges the partial update and restarts the debounce
// timer. A pending propagation for a superseded state never fires.
func (c *Container) UpdateFilter(update Update) {
	c.mu.Lock()
	c.state.merge(update)
	c.scheduleLocked()
	c.mu.Unlock()
}

// ToggleCategory flips a leaf category or a whole group in the categories
// set. Selecting a group expands to its leaves (the group label itself is
// never stored); deselecting removes exactly its leaves, even those added
// individually beforehand. Toggling a leaf never touches its siblings.
func (c *Container) ToggleCategory(name string) {
	c.mu.Lock()
	defer func() {
		c.scheduleLocked()
		c.mu.Unlock()
	}()

	if c.taxonomy != nil && c.taxonomy.IsGroup(name) {
		leaves := c.taxonomy.Leaves(name)
		if c.groupStateLocked(name) == GroupSelected {
			c.state.Categories = removeAll(c.state.Categories, leaves)
		} else {
			c.state.Categories = addMissing(c.state.Categories, leaves)
		}
		return
	}

	if c.state.HasCategory(name) {
		c.state.Categories = removeAll(c.state.Categories, []string{name})
	} else {
		c.state.Categories = append(c.state.Categories, name)
	}
}

// GroupState reports the tri-state selection of a category group: selected
// iff all leaves are present, partial iff some but not all are.
func (c *Container) GroupState(group string) GroupState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupStateLocked(group)
}

func (c *Container) groupStateLocked(group string) GroupState {
	if c.taxonomy == nil {
		return GroupUnselected
	}
	leaves := c.taxonomy.Leaves(group)
	if len(leaves) == 0 {
		return GroupUnselected
	}
	present := 0
	for _, leaf := range leaves {
		if c.state.HasCategory(leaf) {
			present++
		}
	}
	switch present {
	case 0:
		return GroupUnselected
	case len(leaves):
		return GroupSelected
	default:
		return GroupPartial
	}
}

// ClearAllFilters resets to defaults, cancels any pending propagation, and
// cascade-clears the filter-driving selection fields. The reset state is
// pushed immediately, not debounced; a clear is a deliberate action, not a
// keystroke.
func (c *Container) ClearAllFilters() {
	c.mu.Lock()
	c.state = c.defaults.Clone()
	c.generation++ // invalidate pending timer
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	snapshot := c.state.Clone()
	consumers := append([]Consumer(nil), c.consumers...)
	clearer := c.selection
	bus := c.bus
	c.mu.Unlock()

	if clearer != nil {
		clearer.ClearForFilters()
	}
	for _, consumer := range consumers {
		consumer(snapshot)
	}
	if bus != nil {
		bus.Publish(events.EventFilterCleared, events.Payload{"state": snapshot})
	}
}

// Flush propagates the current state immediately, cancelling any pending
// debounce. Used at session start and by tests.
func (c *Container) Flush() {
	c.mu.Lock()
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.propagate()
}

// Close cancels any pending propagation without firing it.
func (c *Container) Close() {
	c.mu.Lock()
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

func (c *Container) scheduleLocked() {
	c.generation++
	generation := c.generation
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		stale := c.generation != generation
		c.mu.Unlock()
		if stale {
			return
		}
		c.propagate()
	})
}

func (c *Container) propagate() {
	c.mu.Lock()
	snapshot := c.state.Clone()
	consumers := append([]Consumer(nil), c.consumers...)
	bus := c.bus
	c.mu.Unlock()

	for _, consumer := range consumers {
		consumer(snapshot)
	}
	if bus != nil {
		bus.Publish(events.EventFilterChanged, events.Payload{"state": snapshot})
	}
}

func removeAll(from []string, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	kept := from[:0]
	for _, v := range from {
		if !drop[v] {
			kept = append(kept, v)
		}
	}
	return kept
}

func addMissing(to []string, add []string) []string {
	present := make(map[string]bool, len(to))
	for _, v := range to {
		present[v] = true
	}
	for _, v := range add {
		if !present[v] {
			to = append(to, v)
		}
	}
	return to
}
