package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"animedash/pkg/models"
)

// Kind names the filter a Criterion applies.
type Kind string

const (
	KindNone  Kind = ""
	KindTitle Kind = "title"
	KindGenre Kind = "genre"
	KindScore Kind = "score"
)

// Score bounds accepted for a threshold.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

var ErrInvalidCriterion = errors.New("invalid filter criterion")

// Criterion is the single active filter of a view. The zero value is the
// identity filter.
type Criterion struct {
	Kind     Kind    `json:"kind"`
	Text     string  `json:"text,omitempty"`
	Genre    string  `json:"genre,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// Apply runs the filter c describes over records.
func Apply(records []models.Record, c Criterion) []models.Record {
	switch c.Kind {
	case KindTitle:
		return ByTitle(records, c.Text)
	case KindGenre:
		return ByGenre(records, c.Genre)
	case KindScore:
		return ByMinScore(records, c.MinScore)
	default:
		return Clear(records)
	}
}

// ParseCriterion builds a Criterion from user input, e.g. a form field.
func ParseCriterion(kind, value string) (Criterion, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindNone, "clear":
		return Criterion{}, nil
	case KindTitle:
		return Criterion{Kind: KindTitle, Text: value}, nil
	case KindGenre:
		genre := strings.TrimSpace(value)
		if genre == "" {
			return Criterion{}, fmt.Errorf("%w: genre required", ErrInvalidCriterion)
		}
		return Criterion{Kind: KindGenre, Genre: genre}, nil
	case KindScore:
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return Criterion{}, fmt.Errorf("%w: score %q is not a number", ErrInvalidCriterion, value)
		}
		if v < MinScore || v > MaxScore {
			return Criterion{}, fmt.Errorf("%w: score must be between %.0f and %.0f", ErrInvalidCriterion, MinScore, MaxScore)
		}
		return Criterion{Kind: KindScore, MinScore: v}, nil
	default:
		return Criterion{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCriterion, kind)
	}
}

// String is a short human label, used in logs and the page header.
func (c Criterion) String() string {
	switch c.Kind {
	case KindTitle:
		return fmt.Sprintf("title contains %q", c.Text)
	case KindGenre:
		return "genre " + c.Genre
	case KindScore:
		return "score >= " + strconv.FormatFloat(c.MinScore, 'f', -1, 64)
	default:
		return "none"
	}
}
