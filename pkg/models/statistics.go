package models

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// Placeholder is shown in place of an undefined average.
const Placeholder = "n/a"

// Mean is an average that may be undefined (mean of nothing).
type Mean struct {
	Value float64
	Valid bool
}

func (m Mean) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m *Mean) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Mean{}
		return nil
	}
	if err := json.Unmarshal(b, &m.Value); err != nil {
		return err
	}
	m.Valid = true
	return nil
}

// Bucket is a labelled count used by both charts.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Statistics is the aggregate snapshot of one full record list.
type Statistics struct {
	Count             int      `json:"count"`
	AverageScore      Mean     `json:"average_score"`
	AveragePopularity Mean     `json:"average_popularity"`
	Demographics      []Bucket `json:"demographics"`
	Genres            []Bucket `json:"genres"`
}

// AverageScoreDisplay formats the average score with two decimals.
func (s Statistics) AverageScoreDisplay() string {
	if !s.AverageScore.Valid {
		return Placeholder
	}
	return strconv.FormatFloat(s.AverageScore.Value, 'f', 2, 64)
}

// AveragePopularityDisplay rounds the average member count to an integer.
func (s Statistics) AveragePopularityDisplay() string {
	if !s.AveragePopularity.Valid {
		return Placeholder
	}
	return humanize.Comma(int64(math.Round(s.AveragePopularity.Value)))
}

// CountOf returns the bucket count for label, or 0 when absent.
func CountOf(buckets []Bucket, label string) int {
	for _, b := range buckets {
		if b.Label == label {
			return b.Count
		}
	}
	return 0
}
