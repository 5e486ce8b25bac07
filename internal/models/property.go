package models

import (
	"time"
)

type PropertyType string

const (
	TypeMasseria    PropertyType = "masseria"
	TypeTrulli      PropertyType = "trulli"
	TypeVilla       PropertyType = "villa"
	TypeCasale      PropertyType = "casale"
	TypeAgriturismo PropertyType = "agriturismo"
	TypeProperty    PropertyType = "property" // generic fallback
)

type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

const StatusActive = "active"

// PropertyRecord is one discovered listing. The evaluation fields are
// flattened into the same JSON object once the record has been scored.
type PropertyRecord struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Location           string       `json:"location"`
	Price              int64        `json:"price"`
	BuiltArea          int          `json:"built_area"`
	LandArea           int          `json:"land_area"`
	PropertyType       PropertyType `json:"property_type"`
	Description        string       `json:"description"`
	Source             string       `json:"source"`
	URL                string       `json:"url"`
	DiscoveredAt       time.Time    `json:"discovered_date"`
	SeaView            bool         `json:"sea_view"`
	Pool               bool         `json:"pool"`
	Historic           bool         `json:"historic"`
	Masseria           bool         `json:"masseria"`
	RenovationRequired bool         `json:"renovation_required"`
	Status             string       `json:"status"`

	*EvaluationResult
}

// Evaluated reports whether scores have been attached.
func (p PropertyRecord) Evaluated() bool {
	return p.EvaluationResult != nil
}

type EvaluationResult struct {
	GeographicScore     float64  `json:"geographic_score"`
	LandSpaceScore      float64  `json:"land_space_score"`
	ArchitecturalScore  float64  `json:"architectural_score"`
	InfrastructureScore float64  `json:"infrastructure_score"`
	RegulatoryScore     float64  `json:"regulatory_score"`
	FinancialScore      float64  `json:"financial_score"`
	TotalScore          float64  `json:"total_score"`
	MatchPercentage     float64  `json:"match_percentage"`
	Priority            Priority `json:"priority"`
	Recommendation      string   `json:"recommendation"`
	Strengths           []string `json:"strengths"`
	Concerns            []string `json:"concerns"`
}

// PriorityOf returns the tier of a record, or "" when it has not been scored.
func PriorityOf(p PropertyRecord) Priority {
	if p.EvaluationResult == nil {
		return ""
	}
	return p.Priority
}

// TotalOf returns the total score of a record, or 0 when it has not been scored.
func TotalOf(p PropertyRecord) float64 {
	if p.EvaluationResult == nil {
		return 0
	}
	return p.TotalScore
}
