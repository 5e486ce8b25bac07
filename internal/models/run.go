package models

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// FailedSite records one (source, location) pair that could not be scraped.
type FailedSite struct {
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type RunSummary struct {
	RunID            string       `json:"run_id"`
	StartTime        time.Time    `json:"start_time"`
	EndTime          *time.Time   `json:"end_time,omitempty"`
	Status           RunStatus    `json:"status"`
	PropertiesFound  int          `json:"properties_found"`
	CriticalCount    int          `json:"critical_count"`
	HighCount        int          `json:"high_count"`
	SuccessfulSites  []string     `json:"successful_sites"`
	FailedSites      []FailedSite `json:"failed_sites"`
	LocationsScraped []string     `json:"locations_scraped"`
	Errors           []string     `json:"errors"`
}

// NewRunSummary starts a run at the given instant.
func NewRunSummary(start time.Time) *RunSummary {
	start = start.UTC()
	return &RunSummary{
		RunID:            RunIDFor(start),
		StartTime:        start,
		Status:           RunStarted,
		SuccessfulSites:  []string{},
		FailedSites:      []FailedSite{},
		LocationsScraped: []string{},
		Errors:           []string{},
	}
}

// RunIDFor formats a run identifier as run_YYYYMMDD_HHMMSS.
func RunIDFor(t time.Time) string {
	return fmt.Sprintf("run_%s", t.UTC().Format("20060102_150405"))
}

// Duration is the elapsed run time; zero until the run is finalized.
func (r *RunSummary) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
