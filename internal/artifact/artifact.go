// Package artifact publishes each run's properties as a JSON document to a
// blob store: a "latest" slot overwritten every run and a timestamped
// history slot that is never overwritten.
package artifact

import (
	"time"

	"github.com/david/estate-finder/internal/models"
)

const (
	LatestKey     = "latest/properties.json"
	HistoryPrefix = "history/"
)

type Statistics struct {
	Critical int     `json:"critical"`
	High     int     `json:"high"`
	Medium   int     `json:"medium"`
	Low      int     `json:"low"`
	AvgPrice float64 `json:"avg_price"`
	AvgMatch float64 `json:"avg_match"`
}

type Document struct {
	ScrapeDate      time.Time               `json:"scrape_date"`
	RunID           string                  `json:"run_id"`
	TotalProperties int                     `json:"total_properties"`
	Properties      []models.PropertyRecord `json:"properties"`
	Statistics      Statistics              `json:"statistics"`
}

// HistoryKey names the history slot for a run written at t.
func HistoryKey(t time.Time) string {
	return HistoryPrefix + "properties_" + t.UTC().Format("2006-01-02_15-04-05") + ".json"
}

// Build assembles the artifact. Averages are 0 for an empty run.
func Build(run *models.RunSummary, props []models.PropertyRecord, at time.Time) Document {
	if props == nil {
		props = []models.PropertyRecord{}
	}
	doc := Document{
		ScrapeDate:      at.UTC(),
		RunID:           run.RunID,
		TotalProperties: len(props),
		Properties:      props,
	}

	var priceSum int64
	var matchSum float64
	for _, p := range props {
		priceSum += p.Price
		if p.EvaluationResult != nil {
			matchSum += p.MatchPercentage
		}
		switch models.PriorityOf(p) {
		case models.PriorityCritical:
			doc.Statistics.Critical++
		case models.PriorityHigh:
			doc.Statistics.High++
		case models.PriorityMedium:
			doc.Statistics.Medium++
		case models.PriorityLow:
			doc.Statistics.Low++
		}
	}
	if n := len(props); n > 0 {
		doc.Statistics.AvgPrice = float64(priceSum) / float64(n)
		doc.Statistics.AvgMatch = matchSum / float64(n)
	}
	return doc
}
