/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tactilesound/ratingexplorer/internal/events"
	"github.com/tactilesound/ratingexplorer/internal/filter"
	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/telemetry"
)

// Two-speed batching defaults: a small first page for perceived
// responsiveness, larger background batches for eventual completeness.
const (
	DefaultInitialBatch    = 12
	DefaultBackgroundBatch = 48
	DefaultBatchDelay      = 2 * time.Second

	// MaxRetries bounds user-initiated rebuild retries after a failure;
	// past it the catalog is terminal until a full reload.
	MaxRetries = 3
)

// ErrRetriesExhausted is returned by Retry once the bound is hit.
var ErrRetriesExhausted = errors.New("catalog: retry limit reached, reload required")

// Snapshot is the externally visible catalog state.
type Snapshot struct {
	Cards    []models.SoundCard `json:"cards"`
	Total    int                `json:"total"`
	Visible  int                `json:"visible"`
	Ready    int                `json:"ready"`
	Error    string             `json:"error,omitempty"`
	Retries  int                `json:"retries"`
	Terminal bool               `json:"terminal"`
}

// View owns the filtered/sorted card list for one session and its
// two-speed pagination. Rebuilds are triggered by record loads and by
// debounced filter propagation; background batch loading runs as a chain
// of delayed tasks, each scheduled only after the previous completed, and
// is cancelled by any rebuild or Close.
type View struct {
	builder *Builder
	bus     *events.Bus
	logger  zerolog.Logger

	initialBatch    int
	backgroundBatch int
	batchDelay      time.Duration

	mu         sync.Mutex
	records    []models.RatingRecord
	state      filter.State
	cards      []models.SoundCard
	visible    int
	ready      int
	generation uint64
	timer      *time.Timer
	retries    int
	buildErr   error
}

// Option tweaks batching for tests and configuration.
type Option func(*View)

// WithBatching overrides batch sizes and the background delay.
func WithBatching(initial, background int, delay time.Duration) Option {
	return func(v *View) {
		if initial > 0 {
			v.initialBatch = initial
		}
		if background > 0 {
			v.backgroundBatch = background
		}
		if delay > 0 {
			v.batchDelay = delay
		}
	}
}

// NewView creates a catalog view. bus may be nil in tests.
func NewView(builder *Builder, state filter.State, bus *events.Bus, logger zerolog.Logger, opts ...Option) *View {
	v := &View{
		builder:         builder,
		bus:             bus,
		logger:          logger.With().Str("component", "catalog_view").Logger(),
		state:           state.Clone(),
		initialBatch:    DefaultInitialBatch,
		backgroundBatch: DefaultBackgroundBatch,
		batchDelay:      DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetRecords replaces the underlying record set and rebuilds.
func (v *View) SetRecords(records []models.RatingRecord) {
	v.mu.Lock()
	v.records = records
	v.rebuildLocked()
	v.mu.Unlock()
}

// OnFilter is the filter-container consumer: every debounced state change
// re-derives the catalog.
func (v *View) OnFilter(state filter.State) {
	v.mu.Lock()
	v.state = state.Clone()
	v.rebuildLocked()
	v.mu.Unlock()
}

// LoadMore exposes the next batch. Already background-loaded cards are
// consumed first; only when the ready window is exhausted does it force an
// immediate load instead of waiting for the next scheduled batch.
func (v *View) LoadMore() Snapshot {
	v.mu.Lock()
	if v.buildErr == nil {
		if v.visible >= v.ready && v.ready < len(v.cards) {
			v.ready = min(v.ready+v.backgroundBatch, len(v.cards))
		}
		v.visible = min(v.visible+v.backgroundBatch, v.ready)
	}
	snap := v.snapshotLocked()
	v.mu.Unlock()
	return snap
}

// Retry re-runs a failed build. The retry count is bounded; exceeding it
// returns ErrRetriesExhausted so the caller can direct the user to a full
// reload instead of looping.
func (v *View) Retry() (Snapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.buildErr == nil {
		return v.snapshotLocked(), nil
	}
	if v.retries >= MaxRetries {
		return v.snapshotLocked(), ErrRetriesExhausted
	}
	v.retries++
	v.rebuildLocked()
	return v.snapshotLocked(), nil
}

// Snapshot returns the current visible window and status.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Close cancels any pending background batch task.
func (v *View) Close() {
	v.mu.Lock()
	v.generation++
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.mu.Unlock()
}

func (v *View) snapshotLocked() Snapshot {
	snap := Snapshot{
		Total:   len(v.cards),
		Visible: v.visible,
		Ready:   v.ready,
		Retries: v.retries,
	}
	if v.buildErr != nil {
		snap.Error = v.buildErr.Error()
		snap.Terminal = v.retries >= MaxRetries
		return snap
	}
	snap.Cards = append([]models.SoundCard(nil), v.cards[:v.visible]...)
	return snap
}

func (v *View) rebuildLocked() {
	// Any rebuild supersedes the running background chain.
	v.generation++
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}

	cards, err := v.buildSafely()
	if err != nil {
		telemetry.CatalogBuildFailuresTotal.Inc()
		v.buildErr = err
		v.cards = nil
		v.visible = 0
		v.ready = 0
		v.logger.Error().Err(err).Int("retries", v.retries).Msg("catalog build failed")
		if v.bus != nil {
			v.bus.Publish(events.EventCatalogFailed, events.Payload{
				"error":   err.Error(),
				"retries": v.retries,
			})
		}
		return
	}

	telemetry.CatalogRebuildsTotal.Inc()
	v.buildErr = nil
	v.retries = 0
	v.cards = cards
	v.visible = min(v.initialBatch, len(cards))
	v.ready = v.visible
	if v.bus != nil {
		v.bus.Publish(events.EventCatalogRebuilt, events.Payload{
			"total":   len(cards),
			"visible": v.visible,
		})
	}
	v.scheduleBackgroundLocked(v.generation)
}

// buildSafely wraps the pipeline so an unexpected record shape surfaces as
// a retryable error instead of taking the session down.
func (v *View) buildSafely() (cards []models.SoundCard, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("catalog build: %v", r)
		}
	}()
	cards = v.builder.Apply(v.builder.BuildCards(v.records), v.state)
	return cards, nil
}

// scheduleBackgroundLocked chains background batches strictly sequentially:
// the next task is armed only after the previous one finished, and a stale
// generation stops the chain without touching state.
func (v *View) scheduleBackgroundLocked(generation uint64) {
	if v.ready >= len(v.cards) {
		return
	}
	v.timer = time.AfterFunc(v.batchDelay, func() {
		v.mu.Lock()
		if v.generation != generation {
			v.mu.Unlock()
			return
		}
		v.ready = min(v.ready+v.backgroundBatch, len(v.cards))
		ready := v.ready
		total := len(v.cards)
		v.scheduleBackgroundLocked(generation)
		bus := v.bus
		v.mu.Unlock()

		if bus != nil {
			bus.Publish(events.EventCatalogBatchReady, events.Payload{
				"ready": ready,
				"total": total,
			})
		}
	})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
