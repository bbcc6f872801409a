// Package filter derives view subsets from the full record list. Every
// function returns a fresh slice built from its input; filters do not
// compose, each one starts again from the full list it is given.
package filter

import (
	"slices"
	"strings"

	"animedash/pkg/models"
)

// ByTitle keeps records whose title contains q, ignoring case.
// An empty q returns the full list.
func ByTitle(records []models.Record, q string) []models.Record {
	if q == "" {
		return Clear(records)
	}
	needle := strings.ToLower(q)
	return keep(records, func(r models.Record) bool {
		return strings.Contains(strings.ToLower(r.Title), needle)
	})
}

// ByGenre keeps records tagged with genre (exact match).
func ByGenre(records []models.Record, genre string) []models.Record {
	return keep(records, func(r models.Record) bool {
		return r.HasGenre(genre)
	})
}

// ByMinScore keeps records with score >= threshold.
func ByMinScore(records []models.Record, threshold float64) []models.Record {
	return keep(records, func(r models.Record) bool {
		return r.Score >= threshold
	})
}

// Clear returns the full list.
func Clear(records []models.Record) []models.Record {
	return slices.Clone(records)
}

// SortByRank returns a copy ordered by rank ascending. Filters make no
// ordering promise, so callers sort after every filter.
func SortByRank(records []models.Record) []models.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b models.Record) int {
		return a.Rank - b.Rank
	})
	return out
}

func keep(records []models.Record, pred func(models.Record) bool) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
