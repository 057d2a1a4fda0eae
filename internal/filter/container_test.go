package filter

import (
	"sync"
	"testing"
	"time"

	"github.com/tactilesound/ratingexplorer/internal/models"
)

type recordingClearer struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingClearer) ClearForFilters() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *recordingClearer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestContainer(debounce time.Duration) *Container {
	return NewContainer(DefaultState(35), models.DefaultTaxonomy(), debounce, nil)
}

func TestUpdateFilterShallowMerge(t *testing.T) {
	c := newTestContainer(time.Hour) // never fires on its own here

	search := "dog"
	c.UpdateFilter(Update{Search: &search})

	state := c.State()
	if state.Search != "dog" {
		t.Fatalf("search = %q, want dog", state.Search)
	}
	if state.RatingRange.Min != 35 || state.RatingRange.Max != 100 {
		t.Fatalf("unrelated fields changed: %+v", state.RatingRange)
	}
	if state.SortBy != SortAverage || state.SortOrder != SortDesc {
		t.Fatalf("sort defaults changed: %v %v", state.SortBy, state.SortOrder)
	}
}

func TestDebounceCancelsSupersededPropagation(t *testing.T) {
	c := newTestContainer(20 * time.Millisecond)

	var mu sync.Mutex
	var got []string
	c.Subscribe(func(s State) {
		mu.Lock()
		got = append(got, s.Search)
		mu.Unlock()
	})

	for _, term := range []string{"d", "do", "dog"} {
		term := term
		c.UpdateFilter(Update{Search: &term})
		time.Sleep(5 * time.Millisecond) // well inside the debounce window
	}

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected exactly one propagation, got %d (%v)", len(got), got)
	}
	if got[0] != "dog" {
		t.Fatalf("propagated stale state %q", got[0])
	}
}

func TestToggleGroupExpandsToLeaves(t *testing.T) {
	c := newTestContainer(time.Hour)
	taxonomy := models.DefaultTaxonomy()

	c.ToggleCategory(models.GroupAnimals)
	state := c.State()
	for _, leaf := range taxonomy.Leaves(models.GroupAnimals) {
		if !state.HasCategory(leaf) {
			t.Fatalf("leaf %q missing after group toggle", leaf)
		}
	}
	if state.HasCategory(models.GroupAnimals) {
		t.Fatal("group label must never be stored in the categories set")
	}
	if c.GroupState(models.GroupAnimals) != GroupSelected {
		t.Fatalf("group state = %v, want selected", c.GroupState(models.GroupAnimals))
	}
}

func TestToggleGroupOffRemovesExactlyItsLeaves(t *testing.T) {
	c := newTestContainer(time.Hour)

	c.ToggleCategory("rain") // independently added leaf from another group
	c.ToggleCategory(models.GroupAnimals)
	c.ToggleCategory(models.GroupAnimals) // off again

	state := c.State()
	if len(state.Categories) != 1 || state.Categories[0] != "rain" {
		t.Fatalf("expected only rain to survive, got %v", state.Categories)
	}
}

func TestGroupTriState(t *testing.T) {
	c := newTestContainer(time.Hour)

	if c.GroupState(models.GroupAnimals) != GroupUnselected {
		t.Fatal("empty set should be unselected")
	}

	c.ToggleCategory("dog")
	if c.GroupState(models.GroupAnimals) != GroupPartial {
		t.Fatalf("one-of-ten leaves should be partial, got %v", c.GroupState(models.GroupAnimals))
	}

	c.ToggleCategory(models.GroupAnimals)
	if c.GroupState(models.GroupAnimals) != GroupSelected {
		t.Fatal("all leaves present should be selected")
	}
}

func TestToggleLeafNeverAddsSiblings(t *testing.T) {
	c := newTestContainer(time.Hour)
	c.ToggleCategory("dog")
	state := c.State()
	if len(state.Categories) != 1 {
		t.Fatalf("toggling a leaf added siblings: %v", state.Categories)
	}
}

func TestClearAllFiltersResetsAndCascades(t *testing.T) {
	c := newTestContainer(time.Hour)
	clearer := &recordingClearer{}
	c.SetSelectionClearer(clearer)

	search := "siren"
	c.UpdateFilter(Update{Search: &search})
	c.ToggleCategory(models.GroupAnimals)

	c.ClearAllFilters()

	state := c.State()
	if state.Search != "" || len(state.Categories) != 0 {
		t.Fatalf("state not reset: %+v", state)
	}
	if state.RatingRange.Min != 35 {
		t.Fatalf("defaults lost on clear: %+v", state.RatingRange)
	}
	if clearer.count() != 1 {
		t.Fatalf("selection cascade-clear called %d times, want 1", clearer.count())
	}
}

func TestClearCancelsPendingPropagation(t *testing.T) {
	c := newTestContainer(20 * time.Millisecond)

	var mu sync.Mutex
	var searches []string
	c.Subscribe(func(s State) {
		mu.Lock()
		searches = append(searches, s.Search)
		mu.Unlock()
	})

	search := "dog"
	c.UpdateFilter(Update{Search: &search})
	c.ClearAllFilters()

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// Only the clear itself may have propagated; the debounced "dog" state
	// was superseded and must not fire afterwards.
	for _, s := range searches {
		if s == "dog" {
			t.Fatal("superseded pending propagation fired after clear")
		}
	}
}
