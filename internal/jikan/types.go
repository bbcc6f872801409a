package jikan

import "animedash/pkg/models"

// topResponse is the body of GET /top/anime.
type topResponse struct {
	Data []RawAnime `json:"data"`
}

// detailResponse is the body of GET /anime/{id}.
type detailResponse struct {
	Data *RawAnime `json:"data"`
}

// RawAnime is one entry as the ranking API sends it. Nullable numbers are
// pointers so a missing rank can be told apart from rank 0.
type RawAnime struct {
	MalID    int      `json:"mal_id"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Type     string   `json:"type"`
	Episodes *int     `json:"episodes"`
	Score    *float64 `json:"score"`
	Rank     *int     `json:"rank"`
	Members  int      `json:"members"`
	Status   string   `json:"status"`
	Synopsis string   `json:"synopsis"`
	Year     *int     `json:"year"`
	Images   struct {
		JPG struct {
			ImageURL string `json:"image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Genres       []Resource `json:"genres"`
	Demographics []Resource `json:"demographics"`
}

// Resource is a named reference such as a genre or demographic.
type Resource struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
}

func names(rs []Resource) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Name != "" {
			out = append(out, r.Name)
		}
	}
	return out
}

// toRecord maps a raw entry without validating it.
func (a RawAnime) toRecord() models.Record {
	r := models.Record{
		ID:           a.MalID,
		Title:        a.Title,
		Kind:         a.Type,
		Episodes:     a.Episodes,
		Members:      a.Members,
		Genres:       names(a.Genres),
		Demographics: names(a.Demographics),
		ImageURL:     a.Images.JPG.ImageURL,
		URL:          a.URL,
	}
	if a.Rank != nil {
		r.Rank = *a.Rank
	}
	if a.Score != nil {
		r.Score = *a.Score
	}
	return r
}

func (a RawAnime) toDetail() models.Detail {
	d := models.Detail{
		Record:   a.toRecord(),
		Synopsis: a.Synopsis,
		Status:   a.Status,
	}
	if a.Year != nil {
		d.Year = *a.Year
	}
	return d
}

// Normalize turns the concatenated pages into Records, keeping page order.
// Entries without a rank or a score are dropped, as are repeats of an id
// already seen (pages can overlap when the ranking shifts between
// requests). dropped reports how many.
func Normalize(raw []RawAnime) (records []models.Record, dropped int) {
	records = make([]models.Record, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, a := range raw {
		if a.Rank == nil || a.Score == nil || a.MalID <= 0 {
			dropped++
			continue
		}
		if _, dup := seen[a.MalID]; dup {
			dropped++
			continue
		}
		seen[a.MalID] = struct{}{}
		records = append(records, a.toRecord())
	}
	return records, dropped
}
