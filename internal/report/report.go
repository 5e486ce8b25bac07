// Package report renders properties and runs as terminal tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/david/estate-finder/internal/models"
	"github.com/david/estate-finder/internal/scoring"
)

// Properties writes the top limit properties by total score. limit <= 0 means all.
func Properties(w io.Writer, props []models.PropertyRecord, limit int) {
	sorted := make([]models.PropertyRecord, len(props))
	copy(sorted, props)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Priority", "Match", "Price", "Land m²", "Location", "Type", "Title"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Match", Align: text.AlignRight},
		{Name: "Price", Align: text.AlignRight},
		{Name: "Land m²", Align: text.AlignRight},
		{Name: "Title", WidthMax: 48},
	})
	for _, p := range sorted {
		match := "-"
		if p.EvaluationResult != nil {
			match = fmt.Sprintf("%.1f%%", p.MatchPercentage)
		}
		t.AppendRow(table.Row{
			models.PriorityOf(p), match, "€" + scoring.Thousands(p.Price),
			scoring.Thousands(int64(p.LandArea)), p.Location, p.PropertyType, p.Title,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(props)})
	t.Render()
}

func score(p models.PropertyRecord) float64 {
	if p.EvaluationResult == nil {
		return -1
	}
	return p.TotalScore
}

// Runs writes one row per run, newest first as given.
func Runs(w io.Writer, runs []models.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Status", "Found", "Critical", "High", "Failed Sites", "Duration", "Started At"})

	for _, r := range runs {
		duration := "Running..."
		if r.EndTime != nil {
			duration = r.Duration().Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			r.RunID, r.Status, r.PropertiesFound, r.CriticalCount, r.HighCount,
			len(r.FailedSites), duration, r.StartTime.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}
