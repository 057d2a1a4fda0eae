package stats

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/tactilesound/ratingexplorer/internal/models"
)

func sampleRecords() []models.RatingRecord {
	return []models.RatingRecord{
		{ID: "1", AudioFile: "1-100038-A-0.wav", Category: "dog", Class: "0", Design: models.DesignFreqShift, Rating: 80},
		{ID: "2", AudioFile: "1-100038-A-0.wav", Category: "dog", Class: "0", Design: models.DesignHapticGen, Rating: 60},
		{ID: "3", AudioFile: "1-100038-A-0.wav", Category: "dog", Class: "0", Design: models.DesignPercept, Rating: 80},
		{ID: "4", AudioFile: "1-100038-A-0.wav", Category: "dog", Class: "0", Design: models.DesignPitchMatch, Rating: 40},
		{ID: "5", AudioFile: "1-101296-A-10.wav", Category: "rain", Class: "10", Design: models.DesignFreqShift, Rating: 20},
		{ID: "6", AudioFile: "1-101296-A-10.wav", Category: "rain", Class: "10", Design: models.DesignHapticGen, Rating: 90},
		{ID: "7", AudioFile: "1-101296-A-10.wav", Category: "rain", Class: "10", Design: models.DesignPercept, Rating: 50},
		{ID: "8", AudioFile: "1-101296-A-10.wav", Category: "rain", Class: "10", Design: models.DesignPitchMatch, Rating: 70},
	}
}

func TestUniqueCategoriesSorted(t *testing.T) {
	got := UniqueCategories(sampleRecords())
	want := []string{"dog", "rain"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestForDesignComputesMeanMinMax(t *testing.T) {
	got := ForDesign(sampleRecords(), models.DesignFreqShift)
	if got.Count != 2 {
		t.Fatalf("count = %d, want 2", got.Count)
	}
	if got.AverageRating != 50 {
		t.Fatalf("average = %v, want 50", got.AverageRating)
	}
	if got.MinRating != 20 || got.MaxRating != 80 {
		t.Fatalf("min/max = %v/%v, want 20/80", got.MinRating, got.MaxRating)
	}
}

func TestForDesignEmptyYieldsNaN(t *testing.T) {
	got := ForDesign(nil, models.DesignPercept)
	if got.Count != 0 {
		t.Fatalf("count = %d, want 0", got.Count)
	}
	if !math.IsNaN(got.AverageRating) || !math.IsNaN(got.MinRating) || !math.IsNaN(got.MaxRating) {
		t.Fatalf("expected NaN stats, got %+v", got)
	}
}

func TestForCategoryCountsSounds(t *testing.T) {
	got := ForCategory(sampleRecords(), "dog")
	if got.TotalCount != 1 {
		t.Fatalf("totalCount = %d, want 1", got.TotalCount)
	}
	if len(got.Designs) != len(models.Designs) {
		t.Fatalf("expected stats for all %d designs, got %d", len(models.Designs), len(got.Designs))
	}
	for i, design := range models.Designs {
		if got.Designs[i].Design != design {
			t.Fatalf("designs out of enumeration order: %v", got.Designs)
		}
	}
}

func TestForClassInfersCategory(t *testing.T) {
	got := ForClass(sampleRecords(), "10")
	if got.Category != "rain" {
		t.Fatalf("category = %q, want rain", got.Category)
	}
	if got.TotalCount != 1 {
		t.Fatalf("totalCount = %d, want 1", got.TotalCount)
	}

	empty := ForClass(sampleRecords(), "42")
	if empty.Category != "" {
		t.Fatalf("expected empty category for unknown class, got %q", empty.Category)
	}
	if !math.IsNaN(empty.Designs[0].AverageRating) {
		t.Fatal("expected NaN average for unknown class")
	}
}

func TestDeterminismAcrossInputOrder(t *testing.T) {
	records := sampleRecords()
	reversed := make([]models.RatingRecord, len(records))
	for i, record := range records {
		reversed[len(records)-1-i] = record
	}

	a := ForCategory(records, "dog")
	b := ForCategory(reversed, "dog")
	if a.TotalCount != b.TotalCount {
		t.Fatalf("totalCount differs by order: %d vs %d", a.TotalCount, b.TotalCount)
	}
	for i := range a.Designs {
		if a.Designs[i].AverageRating != b.Designs[i].AverageRating {
			t.Fatalf("average differs by order for %s", a.Designs[i].Design)
		}
	}
}

func TestDesignStatsNaNMarshalsAsNull(t *testing.T) {
	empty := ForDesign(nil, models.DesignFreqShift)
	data, err := json.Marshal(empty)
	if err != nil {
		t.Fatalf("marshal empty stats: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if wire["averageRating"] != nil || wire["minRating"] != nil || wire["maxRating"] != nil {
		t.Fatalf("expected null numeric fields, got %v", wire)
	}

	var back DesignStats
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if !math.IsNaN(back.AverageRating) || !math.IsNaN(back.MinRating) || !math.IsNaN(back.MaxRating) {
		t.Fatalf("expected NaN after round trip, got %+v", back)
	}
}
