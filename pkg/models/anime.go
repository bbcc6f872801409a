package models

// Record is one ranked entry of the top anime list, normalized from the
// ranking API. Only entries with a rank and a score become Records.
type Record struct {
	ID           int      `json:"id"`                 // MyAnimeList id
	Rank         int      `json:"rank"`               // 1-based, unique within a revision
	Title        string   `json:"title"`              // main title
	Kind         string   `json:"kind"`               // "TV", "Movie", "OVA", ...
	Episodes     *int     `json:"episodes"`           // nil while airing / unknown
	Score        float64  `json:"score"`              // 0-10
	Members      int      `json:"members"`            // popularity count
	Genres       []string `json:"genres"`             // category tags
	Demographics []string `json:"demographics"`       // audience tags
	ImageURL     string   `json:"image_url,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// HasGenre reports whether tag is one of the record's genres. Tags are a
// controlled vocabulary, so the match is exact.
func (r Record) HasGenre(tag string) bool {
	for _, g := range r.Genres {
		if g == tag {
			return true
		}
	}
	return false
}

// HasAnyDemographic reports whether any demographic tag is in aliases.
func (r Record) HasAnyDemographic(aliases ...string) bool {
	for _, d := range r.Demographics {
		for _, a := range aliases {
			if d == a {
				return true
			}
		}
	}
	return false
}

// Detail is a single entry as returned by the detail endpoint.
type Detail struct {
	Record
	Synopsis string `json:"synopsis"`
	Status   string `json:"status,omitempty"`
	Year     int    `json:"year,omitempty"`
}
