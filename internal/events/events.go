package events

import (
	"time"

	"animedash/internal/dashboard"
)

const (
	TypeWelcome        = "welcome"
	TypeDatasetLoading = "dataset.loading"
	TypeDatasetReady   = "dataset.ready"
	TypeDatasetFailed  = "dataset.failed"
)

type DatasetEvent struct {
	Type     string    `json:"type"`
	Revision int64     `json:"revision,omitempty"`
	Count    int       `json:"count,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// FromState maps a load state transition to the event pushed to clients.
func FromState(ls dashboard.LoadState) DatasetEvent {
	ev := DatasetEvent{
		Revision: ls.Revision(),
		Count:    len(ls.Records()),
		Reason:   ls.Reason,
		At:       ls.Since,
	}
	switch ls.Status {
	case dashboard.StatusReady:
		ev.Type = TypeDatasetReady
	case dashboard.StatusFailed:
		ev.Type = TypeDatasetFailed
	default:
		ev.Type = TypeDatasetLoading
	}
	return ev
}
