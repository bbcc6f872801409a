package stats

import (
	"math"

	"animedash/pkg/models"
)

// Demographic bucket labels, in chart order.
const (
	LabelShoujoJosei   = "Shoujo/Josei"
	LabelShounenSeinen = "Shounen/Seinen"
)

type demographicBucket struct {
	label   string
	aliases []string
}

// An entry counts toward a demographic bucket if any of its tags is one of
// the bucket's aliases.
var demographicBuckets = []demographicBucket{
	{label: LabelShoujoJosei, aliases: []string{"Shoujo", "Josei"}},
	{label: LabelShounenSeinen, aliases: []string{"Shounen", "Seinen"}},
}

// TrackedGenres are the category tags counted for the genre chart.
var TrackedGenres = []string{"Action", "Romance", "Drama", "Comedy"}

// Compute aggregates records in a single pass. An empty input yields zero
// counts and undefined means.
func Compute(records []models.Record) models.Statistics {
	var (
		scoreTotal   float64
		membersTotal float64
		demo         = make([]int, len(demographicBuckets))
		genres       = make([]int, len(TrackedGenres))
	)

	for _, r := range records {
		scoreTotal += r.Score
		membersTotal += float64(r.Members)
		for i, b := range demographicBuckets {
			if r.HasAnyDemographic(b.aliases...) {
				demo[i]++
			}
		}
		for i, g := range TrackedGenres {
			if r.HasGenre(g) {
				genres[i]++
			}
		}
	}

	s := models.Statistics{
		Count:        len(records),
		Demographics: make([]models.Bucket, len(demographicBuckets)),
		Genres:       make([]models.Bucket, len(TrackedGenres)),
	}
	for i, b := range demographicBuckets {
		s.Demographics[i] = models.Bucket{Label: b.label, Count: demo[i]}
	}
	for i, g := range TrackedGenres {
		s.Genres[i] = models.Bucket{Label: g, Count: genres[i]}
	}

	if n := len(records); n > 0 {
		s.AverageScore = models.Mean{Value: round2(scoreTotal / float64(n)), Valid: true}
		s.AveragePopularity = models.Mean{Value: round2(membersTotal / float64(n)), Valid: true}
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
