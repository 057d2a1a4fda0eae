package catalog

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tactilesound/ratingexplorer/internal/filter"
	"github.com/tactilesound/ratingexplorer/internal/models"
	"github.com/tactilesound/ratingexplorer/internal/telemetry"
)

func manyRecords(n int) []models.RatingRecord {
	var records []models.RatingRecord
	for i := 0; i < n; i++ {
		file := fmt.Sprintf("1-%03d-A-0.wav", i)
		records = append(records, recordsFor(file, "dog", "0", fullRatings(80, 60, 70, 40))...)
	}
	return records
}

func TestViewInitialBatchThenBackground(t *testing.T) {
	view := NewView(testBuilder(), filter.DefaultState(0), nil, zerolog.Nop(),
		WithBatching(3, 5, 10*time.Millisecond))
	defer view.Close()

	view.SetRecords(manyRecords(10))

	snap := view.Snapshot()
	if snap.Total != 10 {
		t.Fatalf("total = %d, want 10", snap.Total)
	}
	if snap.Visible != 3 || len(snap.Cards) != 3 {
		t.Fatalf("initial batch = %d, want 3", snap.Visible)
	}

	// Background chain: 3 -> 8 -> 10 ready, strictly sequential.
	time.Sleep(15 * time.Millisecond)
	if ready := view.Snapshot().Ready; ready != 8 {
		t.Fatalf("ready after first background batch = %d, want 8", ready)
	}
	time.Sleep(15 * time.Millisecond)
	if ready := view.Snapshot().Ready; ready != 10 {
		t.Fatalf("ready after second background batch = %d, want 10", ready)
	}
	// Background loading never advances the visible window by itself.
	if visible := view.Snapshot().Visible; visible != 3 {
		t.Fatalf("visible = %d, want 3", visible)
	}
}

func TestViewLoadMoreConsumesPreloadedFirst(t *testing.T) {
	view := NewView(testBuilder(), filter.DefaultState(0), nil, zerolog.Nop(),
		WithBatching(2, 4, time.Hour)) // background never fires on its own
	defer view.Close()

	view.SetRecords(manyRecords(10))

	snap := view.LoadMore()
	// Nothing preloaded yet, so LoadMore forces one batch and consumes it.
	if snap.Visible != 6 || snap.Ready != 6 {
		t.Fatalf("visible/ready = %d/%d, want 6/6", snap.Visible, snap.Ready)
	}

	snap = view.LoadMore()
	if snap.Visible != 10 {
		t.Fatalf("visible = %d, want 10", snap.Visible)
	}
}

func TestViewRebuildCancelsBackgroundChain(t *testing.T) {
	view := NewView(testBuilder(), filter.DefaultState(0), nil, zerolog.Nop(),
		WithBatching(2, 3, 10*time.Millisecond))
	defer view.Close()

	view.SetRecords(manyRecords(10))

	// Immediately re-filter: the old chain's timers must not keep mutating
	// the rebuilt state.
	state := filter.DefaultState(0)
	state.Search = "dog"
	view.OnFilter(state)

	time.Sleep(15 * time.Millisecond)
	snap := view.Snapshot()
	if snap.Ready > 5 {
		t.Fatalf("stale background chain advanced ready to %d", snap.Ready)
	}
}

func TestViewCloseStopsScheduling(t *testing.T) {
	view := NewView(testBuilder(), filter.DefaultState(0), nil, zerolog.Nop(),
		WithBatching(2, 3, 10*time.Millisecond))
	view.SetRecords(manyRecords(10))
	view.Close()

	before := view.Snapshot().Ready
	time.Sleep(30 * time.Millisecond)
	if after := view.Snapshot().Ready; after != before {
		t.Fatalf("background batches fired after Close: %d -> %d", before, after)
	}
}

func TestViewRetryBound(t *testing.T) {
	// A nil ratings map inside Apply can't happen through BuildCards, so
	// force failures with a builder over a nil taxonomy, which panics in
	// expandCategories once a category filter is present.
	view := NewView(NewBuilder(nil, zerolog.Nop()), filter.State{
		Categories:  []string{"dog"},
		RatingRange: filter.RatingRange{Min: 0, Max: 100},
	}, nil, zerolog.Nop())
	defer view.Close()

	view.SetRecords(manyRecords(2))

	snap := view.Snapshot()
	if snap.Error == "" {
		t.Fatal("expected build error to be surfaced")
	}
	if snap.Terminal {
		t.Fatal("should not be terminal before retries")
	}

	for i := 0; i < MaxRetries; i++ {
		if _, err := view.Retry(); err != nil {
			t.Fatalf("retry %d: %v", i+1, err)
		}
	}

	if _, err := view.Retry(); !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if !view.Snapshot().Terminal {
		t.Fatal("expected terminal state after exhausting retries")
	}
}

func TestViewRecoversAfterSuccessfulRebuild(t *testing.T) {
	view := NewView(testBuilder(), filter.DefaultState(0), nil, zerolog.Nop(),
		WithBatching(5, 5, time.Hour))
	defer view.Close()

	view.SetRecords(manyRecords(3))
	snap := view.Snapshot()
	if snap.Error != "" {
		t.Fatalf("unexpected error: %s", snap.Error)
	}
	if snap.Retries != 0 {
		t.Fatalf("retries = %d, want 0 after a clean build", snap.Retries)
	}
}

func TestViewBuildMovesCounters(t *testing.T) {
	failuresBefore := testutil.ToFloat64(telemetry.CatalogBuildFailuresTotal)
	rebuildsBefore := testutil.ToFloat64(telemetry.CatalogRebuildsTotal)

	broken := NewView(NewBuilder(nil, zerolog.Nop()), filter.State{
		Categories:  []string{"dog"},
		RatingRange: filter.RatingRange{Min: 0, Max: 100},
	}, nil, zerolog.Nop())
	defer broken.Close()
	broken.SetRecords(manyRecords(1))

	if got := testutil.ToFloat64(telemetry.CatalogBuildFailuresTotal); got != failuresBefore+1 {
		t.Fatalf("failure counter = %v, want %v", got, failuresBefore+1)
	}

	view := NewView(testBuilder(), filter.DefaultState(0), nil, zerolog.Nop(),
		WithBatching(5, 5, time.Hour))
	defer view.Close()
	view.SetRecords(manyRecords(1))

	if got := testutil.ToFloat64(telemetry.CatalogRebuildsTotal); got < rebuildsBefore+1 {
		t.Fatalf("rebuild counter = %v, want at least %v", got, rebuildsBefore+1)
	}
}
