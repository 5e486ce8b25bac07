package ingest

import (
	"fmt"

	"github.com/david/estate-finder/internal/models"
)

// Dedupe drops records whose canonical URL has already been seen. The first
// occurrence wins and encounter order is preserved.
func Dedupe(records []models.PropertyRecord) []models.PropertyRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.PropertyRecord, 0, len(records))
	for _, r := range records {
		key := r.URL
		if key == "" {
			key = r.ID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Validate checks aggregate data quality and returns advisories. It never
// changes the records.
func Validate(records []models.PropertyRecord) []string {
	if len(records) == 0 {
		return []string{"CRITICAL: Zero properties scraped"}
	}

	var issues []string
	if len(records) < 10 {
		issues = append(issues, fmt.Sprintf("WARNING: Only %d properties (expected 50+)", len(records)))
	}

	missingPrice, missingLocation := 0, 0
	for _, r := range records {
		if r.Price == 0 {
			missingPrice++
		}
		if r.Location == "" {
			missingLocation++
		}
	}
	if missingPrice*2 > len(records) {
		issues = append(issues, fmt.Sprintf("ERROR: %d properties missing prices", missingPrice))
	}
	if missingLocation > 0 {
		issues = append(issues, fmt.Sprintf("ERROR: %d properties missing location", missingLocation))
	}
	return issues
}
