package web

import "animedash/pkg/models"

// Chart is a labels/data pair in the shape Chart.js expects.
type Chart struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

type Charts struct {
	Demographics Chart `json:"demographics"` // pie
	Genres       Chart `json:"genres"`       // bar
}

// ChartsFor turns bucket counts into chart payloads, keeping bucket order.
func ChartsFor(s models.Statistics) Charts {
	return Charts{
		Demographics: chartOf(s.Demographics),
		Genres:       chartOf(s.Genres),
	}
}

func chartOf(buckets []models.Bucket) Chart {
	ch := Chart{
		Labels: make([]string, 0, len(buckets)),
		Data:   make([]int, 0, len(buckets)),
	}
	for _, b := range buckets {
		ch.Labels = append(ch.Labels, b.Label)
		ch.Data = append(ch.Data, b.Count)
	}
	return ch
}
