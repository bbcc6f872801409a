package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"animedash/internal/archive"
	"animedash/pkg/models"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func recordTable(records []models.Record) string {
	t := newTable("Rank", "Title", "Type", "Episodes", "Score", "Members", "ID")
	for _, r := range records {
		t.Row(
			strconv.Itoa(r.Rank),
			r.Title,
			r.Kind,
			episodes(r.Episodes),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			humanize.Comma(int64(r.Members)),
			strconv.Itoa(r.ID),
		)
	}
	return t.Render()
}

func revisionTable(revs []archive.Revision) string {
	t := newTable("Loaded", "Entries", "Dropped", "Avg score", "Avg members", "ID")
	for _, rev := range revs {
		t.Row(
			humanize.Time(rev.LoadedAt),
			strconv.Itoa(rev.RecordCount),
			strconv.Itoa(rev.Dropped),
			rev.Stats.AverageScoreDisplay(),
			rev.Stats.AveragePopularityDisplay(),
			rev.ID,
		)
	}
	return t.Render()
}

func printStats(w io.Writer, st models.Statistics, dropped int) {
	fmt.Fprintf(w, "Entries:          %d", st.Count)
	if dropped > 0 {
		fmt.Fprintf(w, " (%d unranked or unscored skipped)", dropped)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average rating:   %s\n", st.AverageScoreDisplay())
	fmt.Fprintf(w, "Average members:  %s\n", st.AveragePopularityDisplay())

	fmt.Fprintln(w, "\nDemographics")
	for _, b := range st.Demographics {
		fmt.Fprintf(w, "  %-16s %d\n", b.Label, b.Count)
	}
	fmt.Fprintln(w, "\nGenres")
	for _, b := range st.Genres {
		fmt.Fprintf(w, "  %-16s %d\n", b.Label, b.Count)
	}
}

func printDetail(w io.Writer, d *models.Detail) {
	fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Render(d.Title))
	if d.Rank > 0 {
		fmt.Fprintf(w, "Rank:      #%d\n", d.Rank)
	}
	fmt.Fprintf(w, "Type:      %s\n", d.Kind)
	fmt.Fprintf(w, "Episodes:  %s\n", episodes(d.Episodes))
	if d.Score > 0 {
		fmt.Fprintf(w, "Score:     %.2f\n", d.Score)
	} else {
		fmt.Fprintf(w, "Score:     %s\n", models.Placeholder)
	}
	fmt.Fprintf(w, "Members:   %s\n", humanize.Comma(int64(d.Members)))
	if d.Year > 0 {
		fmt.Fprintf(w, "Year:      %d\n", d.Year)
	}
	if len(d.Genres) > 0 {
		fmt.Fprintf(w, "Genres:    %s\n", strings.Join(d.Genres, ", "))
	}
	if d.URL != "" {
		fmt.Fprintf(w, "URL:       %s\n", d.URL)
	}
	if d.Synopsis != "" {
		fmt.Fprintf(w, "\n%s\n", d.Synopsis)
	}
}

func episodes(n *int) string {
	if n == nil {
		return "?"
	}
	return strconv.Itoa(*n)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
