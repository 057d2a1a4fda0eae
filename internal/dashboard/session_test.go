/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tactilesound/ratingexplorer/internal/dataset"
	"github.com/tactilesound/ratingexplorer/internal/events"
	"github.com/tactilesound/ratingexplorer/internal/filter"
	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/selection"
)

func testStore() *dataset.Store {
	return dataset.New([]models.RatingRecord{
		{ID: "1-100032-A-0.wav:freqshift", AudioFile: "1-100032-A-0.wav", Design: models.DesignFreqShift, Rating: 80, Category: "dog", Class: "0"},
		{ID: "1-100032-A-0.wav:hapticgen", AudioFile: "1-100032-A-0.wav", Design: models.DesignHapticGen, Rating: 60, Category: "dog", Class: "0"},
		{ID: "1-26806-A-1.wav:freqshift", AudioFile: "1-26806-A-1.wav", Design: models.DesignFreqShift, Rating: 70, Category: "rooster", Class: "1"},
	})
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(testStore(), models.DefaultTaxonomy(), Options{
		Debounce:   5 * time.Millisecond,
		BatchDelay: 5 * time.Millisecond,
	}, zerolog.Nop())
	t.Cleanup(m.Close)
	return m
}

func TestManagerSessionLifecycle(t *testing.T) {
	m := testManager(t)

	s := m.Create()
	if s.ID == "" {
		t.Fatal("expected non-empty session ID")
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Count())
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Fatal("expected to retrieve the created session")
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected miss for unknown session ID")
	}

	if !m.Delete(s.ID) {
		t.Fatal("expected delete to succeed")
	}
	if m.Count() != 0 {
		t.Fatalf("expected 0 sessions, got %d", m.Count())
	}
	if m.Delete(s.ID) {
		t.Fatal("expected second delete to report missing")
	}
}

func TestSessionCatalogFollowsFilters(t *testing.T) {
	m := testManager(t)
	s := m.Create()

	snap := s.Catalog.Snapshot()
	if snap.Total != 2 {
		t.Fatalf("expected 2 cards for 2 audio files, got %d", snap.Total)
	}

	search := "rooster"
	s.Filters.UpdateFilter(filter.Update{Search: &search})
	s.Filters.Flush()

	snap = s.Catalog.Snapshot()
	if snap.Total != 1 {
		t.Fatalf("expected 1 card after search filter, got %d", snap.Total)
	}
	if snap.Cards[0].Category != "rooster" {
		t.Fatalf("expected rooster card, got %q", snap.Cards[0].Category)
	}
}

func TestSunburstDrillDescent(t *testing.T) {
	m := testManager(t)
	s := m.Create()

	design := models.DesignFreqShift
	if err := s.Sunburst.ClickAlgorithm(design); err != nil {
		t.Fatalf("ClickAlgorithm: %v", err)
	}
	if s.Sunburst.Level() != selection.Level2 {
		t.Fatalf("expected Level2, got %d", s.Sunburst.Level())
	}
	if got := s.Selection.State().Algorithm; got == nil || *got != design {
		t.Fatalf("expected algorithm %q selected, got %v", design, got)
	}

	if err := s.Sunburst.ClickCategory(models.GroupAnimals); err != nil {
		t.Fatalf("ClickCategory: %v", err)
	}
	if s.Sunburst.Level() != selection.Level3 {
		t.Fatalf("expected Level3, got %d", s.Sunburst.Level())
	}

	if err := s.Sunburst.ClickSubcategory("dog"); err != nil {
		t.Fatalf("ClickSubcategory: %v", err)
	}
	if s.Sunburst.Level() != selection.Level4 {
		t.Fatalf("expected Level4, got %d", s.Sunburst.Level())
	}

	// Backing out one level clears only the subcategory.
	if err := s.Sunburst.ClickCenter(); err != nil {
		t.Fatalf("ClickCenter: %v", err)
	}
	if s.Sunburst.Level() != selection.Level3 {
		t.Fatalf("expected Level3 after back, got %d", s.Sunburst.Level())
	}
	st := s.Selection.State()
	if st.Subcategory != nil {
		t.Fatal("expected subcategory cleared after back")
	}
	if st.Category == nil || st.Algorithm == nil {
		t.Fatal("expected category and algorithm retained after back")
	}
}

func TestSunburstToggleOffResets(t *testing.T) {
	m := testManager(t)
	s := m.Create()

	design := models.DesignPercept
	if err := s.Sunburst.ClickAlgorithm(design); err != nil {
		t.Fatalf("ClickAlgorithm: %v", err)
	}
	// Same wedge again: toggles off, chart returns to the top level.
	if err := s.Sunburst.ClickAlgorithm(design); err != nil {
		t.Fatalf("ClickAlgorithm toggle: %v", err)
	}
	if s.Sunburst.Level() != selection.Level1 {
		t.Fatalf("expected Level1 after toggle off, got %d", s.Sunburst.Level())
	}
	if s.Selection.State().Algorithm != nil {
		t.Fatal("expected algorithm cleared after toggle off")
	}
}

func TestPointSelectionGatesSunburst(t *testing.T) {
	m := testManager(t)
	s := m.Create()

	s.LineChart.ClickPoint(selection.Point{Algorithm: models.DesignHapticGen, Class: "0"})

	err := s.Sunburst.ClickAlgorithm(models.DesignFreqShift)
	if !errors.Is(err, selection.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if s.Sunburst.Level() != selection.Level1 {
		t.Fatal("refused click must not move the drill")
	}
	if s.Selection.State().Point == nil {
		t.Fatal("refused click must not clear the point")
	}

	// Resolving by clearing the point does not replay the refused click.
	s.Selection.ClearPoint()
	if s.Selection.State().Algorithm != nil {
		t.Fatal("resolution must not replay the refused selection")
	}
	if err := s.Sunburst.ClickAlgorithm(models.DesignFreqShift); err != nil {
		t.Fatalf("expected click to proceed after resolution, got %v", err)
	}
}

func TestRadialAdapterToggles(t *testing.T) {
	m := testManager(t)
	s := m.Create()

	d := models.DesignPitchMatch
	if err := s.Radial.ClickAlgorithm(d); err != nil {
		t.Fatalf("ClickAlgorithm: %v", err)
	}
	if got := s.Selection.State().Algorithm; got == nil || *got != d {
		t.Fatalf("expected %q selected, got %v", d, got)
	}
	if err := s.Radial.ClickAlgorithm(d); err != nil {
		t.Fatalf("ClickAlgorithm toggle: %v", err)
	}
	if s.Selection.State().Algorithm != nil {
		t.Fatal("expected algorithm cleared on second click")
	}
}

func TestPointSelectionJumpsSunburst(t *testing.T) {
	m := testManager(t)
	s := m.Create()

	sub := s.Bus.Subscribe(events.EventPointSelected)
	defer s.Bus.Unsubscribe(events.EventPointSelected, sub)

	s.LineChart.ClickPoint(selection.Point{
		Algorithm:   models.DesignFreqShift,
		Category:    models.GroupAnimals,
		Subcategory: "dog",
	})

	// The pump applies the event asynchronously.
	deadline := time.After(time.Second)
	for s.Sunburst.Level() != selection.Level4 {
		select {
		case <-deadline:
			t.Fatalf("sunburst never reached Level4, at %d", s.Sunburst.Level())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSessionStats(t *testing.T) {
	m := testManager(t)
	s := m.Create()

	cats := s.CategoryStats()
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	designs := s.DesignStats()
	if len(designs) != len(models.Designs) {
		t.Fatalf("expected %d design rows, got %d", len(models.Designs), len(designs))
	}
	classes := s.ClassStats()
	if len(classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(classes))
	}
}
