/*
Copyright (C) 2026 Tactile Sound Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog converts flat rating records into the filtered, sorted,
// paginated sound-card view behind the dashboard grid.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tactilesound/ratingexplorer/internal/filter"
	"github.com/tactilesound/ratingexplorer/internal/models"
)

// Builder groups rating records into sound cards and applies filter state.
// It is stateless; all methods are safe for concurrent use.
type Builder struct {
	taxonomy *models.Taxonomy
	logger   zerolog.Logger
}

// NewBuilder creates a builder over the given taxonomy.
func NewBuilder(taxonomy *models.Taxonomy, logger zerolog.Logger) *Builder {
	return &Builder{taxonomy: taxonomy, logger: logger.With().Str("component", "catalog").Logger()}
}

// BuildCards groups records by audio file into one SoundCard each. Every
// tracked design is present in Ratings, defaulted to 0 and flagged in
// MissingDesigns when no record exists. Sound names are numbered per
// category after a filename sort, so the numbering does not depend on the
// order records arrived in.
func (b *Builder) BuildCards(records []models.RatingRecord) []models.SoundCard {
	byFile := make(map[string]*models.SoundCard)
	present := make(map[string]map[models.Design]bool)
	var order []string

	for _, record := range records {
		card, ok := byFile[record.AudioFile]
		if !ok {
			card = &models.SoundCard{
				ID:        record.AudioFile,
				Filename:  record.AudioFile,
				AudioFile: record.AudioFile,
				Category:  record.Category,
				Class:     record.Class,
				Ratings:   make(map[models.Design]float64, len(models.Designs)),
			}
			for _, design := range models.Designs {
				card.Ratings[design] = 0
			}
			byFile[record.AudioFile] = card
			present[record.AudioFile] = make(map[models.Design]bool, len(models.Designs))
			order = append(order, record.AudioFile)
		}
		if card.Category != record.Category || card.Class != record.Class {
			// Records for one audio file should agree on category/class;
			// first record wins when they do not.
			b.logger.Warn().
				Str("audio_file", record.AudioFile).
				Str("kept", card.Category+"/"+card.Class).
				Str("dropped", record.Category+"/"+record.Class).
				Msg("conflicting category/class for audio file")
		}
		if record.Design.Valid() {
			card.Ratings[record.Design] = record.Rating
			present[record.AudioFile][record.Design] = true
		}
	}

	cards := make([]models.SoundCard, 0, len(order))
	for _, file := range order {
		card := byFile[file]
		finishCard(card, present[file])
		cards = append(cards, *card)
	}

	assignSoundNames(cards)
	return cards
}

// finishCard derives maxRating, bestAlgorithm, and the zero/missing flags.
// Ties for the maximum resolve to the first design in enumeration order,
// the one canonical tie-break used everywhere. A missing record defaults to
// a 0 rating but is flagged in MissingDesigns rather than HasZeroRatings:
// an explicit 0 is a valid (if notable) score, absence is not.
func finishCard(card *models.SoundCard, present map[models.Design]bool) {
	first := true
	for _, design := range models.Designs {
		rating := card.Ratings[design]
		if present[design] && rating == 0 {
			card.HasZeroRatings = true
		}
		if !present[design] {
			card.MissingDesigns = append(card.MissingDesigns, design)
		}
		if first || rating > card.MaxRating {
			card.MaxRating = rating
			card.BestAlgorithm = design
			first = false
		}
	}
}

// assignSoundNames numbers sounds within each category, sorted by filename
// first so the numbering is stable regardless of input order. Other
// components rely on these labels being reproducible.
func assignSoundNames(cards []models.SoundCard) {
	byCategory := make(map[string][]int)
	for i, card := range cards {
		byCategory[card.Category] = append(byCategory[card.Category], i)
	}
	for category, indices := range byCategory {
		sort.Slice(indices, func(a, b int) bool {
			return cards[indices[a]].Filename < cards[indices[b]].Filename
		})
		label := capitalize(category)
		for n, idx := range indices {
			cards[idx].SoundName = fmt.Sprintf("%s_%d", label, n+1)
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Apply filters and sorts cards per the state. Predicates narrow in a fixed
// order: search, categories (with group expansion), classes, designs,
// best-algorithm, rating range. The input slice is not modified.
func (b *Builder) Apply(cards []models.SoundCard, state filter.State) []models.SoundCard {
	selected := expandCategories(state.Categories, b.taxonomy)
	classes := toSet(state.Classes)
	designs := designSet(state.Designs)
	algorithms := designSet(state.Algorithms)
	search := strings.ToLower(strings.TrimSpace(state.Search))

	kept := make([]models.SoundCard, 0, len(cards))
	for _, card := range cards {
		if search != "" && !b.matchesSearch(card, search) {
			continue
		}
		if len(selected) > 0 && !selected[card.Category] {
			continue
		}
		if len(classes) > 0 && !classes[card.Class] {
			continue
		}
		if len(designs) > 0 && !hasAnyDesign(card, designs) {
			continue
		}
		// Best-algorithm filtering: the sound's winner must be among the
		// selected algorithms, not merely rated by one of them.
		if len(algorithms) > 0 && !algorithms[card.BestAlgorithm] {
			continue
		}
		if !state.RatingRange.Contains(card.MaxRating) {
			continue
		}
		kept = append(kept, card)
	}

	b.sortCards(kept, state.SortBy, state.SortOrder)
	return kept
}

// matchesSearch checks the card's display fields for a case-insensitive
// substring match, including the group name and a "class N" alias.
func (b *Builder) matchesSearch(card models.SoundCard, search string) bool {
	haystacks := []string{
		card.SoundName,
		card.Filename,
		card.Category,
		card.Class,
		"class " + card.Class,
	}
	if group, ok := b.taxonomy.GroupOf(card.Category); ok {
		haystacks = append(haystacks, group)
	}
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), search) {
			return true
		}
	}
	return false
}

// expandCategories resolves the selected set to leaf categories: a selected
// group is equivalent to all of its leaves being selected.
func expandCategories(selected []string, taxonomy *models.Taxonomy) map[string]bool {
	leaves := make(map[string]bool, len(selected))
	for _, name := range selected {
		if taxonomy.IsGroup(name) {
			for _, leaf := range taxonomy.Leaves(name) {
				leaves[leaf] = true
			}
			continue
		}
		leaves[name] = true
	}
	return leaves
}

// sortCards orders cards by the requested key. The comparator produces the
// descending order; ascending is the same comparison negated, so the two
// directions cannot drift apart.
func (b *Builder) sortCards(cards []models.SoundCard, key filter.SortKey, order filter.SortOrder) {
	compare := func(a, bc models.SoundCard) int {
		var c int
		switch key {
		case filter.SortVariance:
			c = compareFloatDesc(ratingVariance(a), ratingVariance(bc))
		case filter.SortFilename:
			c = strings.Compare(a.Filename, bc.Filename)
		default: // average
			c = compareFloatDesc(a.MaxRating, bc.MaxRating)
		}
		if c == 0 {
			c = strings.Compare(a.Filename, bc.Filename)
		}
		return c
	}

	sort.SliceStable(cards, func(i, j int) bool {
		c := compare(cards[i], cards[j])
		if order == filter.SortAsc {
			c = -c
		}
		return c < 0
	})
}

func compareFloatDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// ratingVariance is the population variance over all tracked designs.
func ratingVariance(card models.SoundCard) float64 {
	n := float64(len(models.Designs))
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, design := range models.Designs {
		mean += card.Ratings[design]
	}
	mean /= n

	sum := 0.0
	for _, design := range models.Designs {
		d := card.Ratings[design] - mean
		sum += d * d
	}
	return sum / n
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func designSet(values []models.Design) map[models.Design]bool {
	set := make(map[models.Design]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// hasAnyDesign reports whether the card has an actual record (not a
// defaulted zero) for any of the selected designs.
func hasAnyDesign(card models.SoundCard, designs map[models.Design]bool) bool {
	for design := range designs {
		if !designMissing(card, design) {
			return true
		}
	}
	return false
}

func designMissing(card models.SoundCard, design models.Design) bool {
	for _, missing := range card.MissingDesigns {
		if missing == design {
			return true
		}
	}
	return false
}
