/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tactilesound/ratingexplorer/internal/catalog"
	"github.com/tactilesound/ratingexplorer/internal/dataset"
	"github.com/tactilesound/ratingexplorer/internal/events"
	"github.com/tactilesound/ratingexplorer/internal/filter"
	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/selection"
	"github.com/tactilesound/ratingexplorer/internal/stats"
)

// Options tunes per-session behavior. Zero durations and batch sizes fall
// back to the package defaults; RatingFloor is taken literally (the config
// layer supplies the shipped default).
type Options struct {
	Debounce        time.Duration
	RatingFloor     float64
	InitialBatch    int
	BackgroundBatch int
	BatchDelay      time.Duration
	IdleTimeout     time.Duration
}

// DefaultIdleTimeout is how long a session may sit untouched before the
// manager sweeps it.
const DefaultIdleTimeout = 30 * time.Minute

// Session owns one viewer's interactive state: filters, selection,
// catalog view and the chart adapters, all sharing one event bus.
// Dataset records are shared and read-only across sessions.
type Session struct {
	ID string

	Bus       *events.Bus
	Filters   *filter.Container
	Selection *selection.Coordinator
	Catalog   *catalog.View

	Sunburst  *DrillAdapter
	LineChart *PointAdapter
	Radial    *ToggleAdapter

	store  *dataset.Store
	logger zerolog.Logger

	mu       sync.Mutex
	lastSeen time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(store *dataset.Store, taxonomy *models.Taxonomy, opts Options, logger zerolog.Logger) *Session {
	id := uuid.NewString()
	logger = logger.With().Str("session_id", id).Logger()

	bus := events.NewBus()
	coord := selection.NewCoordinator(bus)

	defaults := filter.DefaultState(opts.RatingFloor)
	container := filter.NewContainer(defaults, taxonomy, opts.Debounce, bus)
	container.SetSelectionClearer(coord)

	builder := catalog.NewBuilder(taxonomy, logger)
	view := catalog.NewView(builder, defaults, bus, logger,
		catalog.WithBatching(opts.InitialBatch, opts.BackgroundBatch, opts.BatchDelay))
	view.SetRecords(store.Records())
	container.Subscribe(view.OnFilter)

	s := &Session{
		ID:        id,
		Bus:       bus,
		Filters:   container,
		Selection: coord,
		Catalog:   view,
		store:     store,
		logger:    logger,
		lastSeen:  time.Now(),
		done:      make(chan struct{}),
	}
	s.Sunburst = NewSunburstAdapter(coord)
	s.LineChart = NewLineChartAdapter(coord)
	s.Radial = NewRadialAdapter(coord)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.pump(ctx)
	return s
}

// pump forwards selection events to the adapters that mirror them. It is
// the only goroutine touching adapters from the bus side.
func (s *Session) pump(ctx context.Context) {
	defer close(s.done)

	algo := s.Bus.Subscribe(events.EventAlgorithmSelected)
	cat := s.Bus.Subscribe(events.EventCategorySelected)
	point := s.Bus.Subscribe(events.EventPointSelected)
	defer func() {
		s.Bus.Unsubscribe(events.EventAlgorithmSelected, algo)
		s.Bus.Unsubscribe(events.EventCategorySelected, cat)
		s.Bus.Unsubscribe(events.EventPointSelected, point)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-algo:
			if !ok {
				return
			}
			s.Sunburst.HandleEvent(events.EventAlgorithmSelected, p)
		case p, ok := <-cat:
			if !ok {
				return
			}
			s.Sunburst.HandleEvent(events.EventCategorySelected, p)
		case p, ok := <-point:
			if !ok {
				return
			}
			s.Sunburst.HandleEvent(events.EventPointSelected, p)
		}
	}
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Records returns the session's dataset records.
func (s *Session) Records() []models.RatingRecord {
	return s.store.Records()
}

// ChartInputs snapshots what any chart needs to render: the visible card
// set's source records and the current selection.
func (s *Session) ChartInputs() ChartInputs {
	return ChartInputs{
		Records:   s.store.Records(),
		Selection: s.Selection.State(),
	}
}

// CategoryStats aggregates per-category statistics over the full dataset.
func (s *Session) CategoryStats() []stats.CategoryStats {
	records := s.store.Records()
	out := make([]stats.CategoryStats, 0)
	for _, c := range stats.UniqueCategories(records) {
		out = append(out, stats.ForCategory(records, c))
	}
	return out
}

// ClassStats aggregates per-class statistics over the full dataset.
func (s *Session) ClassStats() []stats.ClassStats {
	records := s.store.Records()
	out := make([]stats.ClassStats, 0)
	for _, c := range stats.UniqueClasses(records) {
		out = append(out, stats.ForClass(records, c))
	}
	return out
}

// DesignStats aggregates per-design statistics over the full dataset.
func (s *Session) DesignStats() []stats.DesignStats {
	records := s.store.Records()
	out := make([]stats.DesignStats, 0, len(models.Designs))
	for _, d := range models.Designs {
		out = append(out, stats.ForDesign(records, d))
	}
	return out
}

// Close tears down the session's timers and goroutines.
func (s *Session) Close() {
	s.cancel()
	s.Filters.Close()
	s.Catalog.Close()
	<-s.done
}

// Manager owns the live session set and sweeps idle sessions.
type Manager struct {
	store    *dataset.Store
	taxonomy *models.Taxonomy
	opts     Options
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	sweepCancel context.CancelFunc
}

// NewManager creates a session manager and starts its idle sweeper.
func NewManager(store *dataset.Store, taxonomy *models.Taxonomy, opts Options, logger zerolog.Logger) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	m := &Manager{
		store:    store,
		taxonomy: taxonomy,
		opts:     opts,
		logger:   logger.With().Str("component", "dashboard").Logger(),
		sessions: make(map[string]*Session),
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.sweepCancel = cancel
	go m.sweep(ctx)
	return m
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := newSession(m.store, m.taxonomy, m.opts, m.logger)
	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.logger.Info().Str("session_id", s.ID).Int("active", n).Msg("session created")
	return s
}

// Get returns the session with the given ID and refreshes its idle clock.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	m.logger.Info().Str("session_id", id).Msg("session closed")
	return true
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) sweep(ctx context.Context) {
	interval := m.opts.IdleTimeout / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.opts.IdleTimeout)
			var expired []*Session
			m.mu.Lock()
			for id, s := range m.sessions {
				if s.idleSince().Before(cutoff) {
					delete(m.sessions, id)
					expired = append(expired, s)
				}
			}
			m.mu.Unlock()
			for _, s := range expired {
				s.Close()
				m.logger.Info().Str("session_id", s.ID).Msg("idle session swept")
			}
		}
	}
}

// Close tears down the manager and every live session.
func (m *Manager) Close() {
	m.sweepCancel()
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
