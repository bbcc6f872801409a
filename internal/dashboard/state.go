package dashboard

import (
	"time"

	"animedash/internal/filter"
	"animedash/internal/stats"
	"animedash/pkg/models"
)

// Status is the load state of the ranking list.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Dataset is one fetched revision of the full record list together with
// the statistics computed from it. It is never modified after publication.
type Dataset struct {
	Revision int64             `json:"revision"`
	LoadedAt time.Time         `json:"loaded_at"`
	Records  []models.Record   `json:"-"`
	Stats    models.Statistics `json:"stats"`
	Dropped  int               `json:"dropped"`
}

// LoadState is the tagged result of the latest pipeline run. Dataset is the
// last successfully loaded revision and may be set while loading or failed.
type LoadState struct {
	Status  Status    `json:"status"`
	Reason  string    `json:"reason,omitempty"`
	Since   time.Time `json:"since"`
	Dataset *Dataset  `json:"dataset,omitempty"`
}

func (ls LoadState) Revision() int64 {
	if ls.Dataset == nil {
		return 0
	}
	return ls.Dataset.Revision
}

func (ls LoadState) Records() []models.Record {
	if ls.Dataset == nil {
		return nil
	}
	return ls.Dataset.Records
}

// ViewState is everything one dashboard view shows, derived from a single
// dataset revision. It is replaced as a whole on every user action.
type ViewState struct {
	Revision int64             `json:"revision"`
	Status   Status            `json:"status"`
	Reason   string            `json:"reason,omitempty"`
	LoadedAt time.Time         `json:"loaded_at,omitempty"`
	Stats    models.Statistics `json:"stats"`
	Active   filter.Criterion  `json:"active"`
	View     []models.Record   `json:"view"`
	Total    int               `json:"total"`
}

// Derive builds the view for criterion c over the state's dataset. The view
// is ordered by rank.
func Derive(ls LoadState, c filter.Criterion) ViewState {
	vs := ViewState{
		Revision: ls.Revision(),
		Status:   ls.Status,
		Reason:   ls.Reason,
		Active:   c,
	}
	if ls.Dataset == nil {
		vs.Stats = stats.Compute(nil)
		vs.View = []models.Record{}
		return vs
	}

	vs.LoadedAt = ls.Dataset.LoadedAt
	vs.Stats = ls.Dataset.Stats
	vs.View = filter.SortByRank(filter.Apply(ls.Dataset.Records, c))
	vs.Total = len(ls.Dataset.Records)
	return vs
}

func (vs ViewState) stale(ls LoadState) bool {
	return vs.Revision != ls.Revision() || vs.Status != ls.Status || vs.Reason != ls.Reason
}
