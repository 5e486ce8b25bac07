package scoring

import (
	"math"

	"github.com/david/estate-finder/internal/models"
)

// Evaluate scores a record against the rubric. It reads only the record's
// base fields, so evaluating an already scored record gives the same result.
func Evaluate(rec models.PropertyRecord, r Rubric) models.EvaluationResult {
	geo := Geographic(rec, r)
	land := LandSpace(rec.LandArea, r)
	arch := Architectural(rec, r)
	infra := clamp(r.InfrastructureBase)
	reg := clamp(r.RegulatoryBase)
	fin := Financial(rec.Price, r)

	total := Total(r.Weights, geo, land, arch, infra, reg, fin)
	priority := PriorityFor(total, r.Tiers)

	return models.EvaluationResult{
		GeographicScore:     round1(geo),
		LandSpaceScore:      round1(land),
		ArchitecturalScore:  round1(arch),
		InfrastructureScore: round1(infra),
		RegulatoryScore:     round1(reg),
		FinancialScore:      round1(fin),
		TotalScore:          total,
		MatchPercentage:     total,
		Priority:            priority,
		Recommendation:      Recommendation(priority, rec.PropertyType),
		Strengths:           Strengths(rec, r),
		Concerns:            Concerns(rec, r),
	}
}

// Apply returns a copy of rec with its evaluation attached.
func Apply(rec models.PropertyRecord, r Rubric) models.PropertyRecord {
	res := Evaluate(rec, r)
	rec.EvaluationResult = &res
	return rec
}

// Total is the weighted sum of the six sub-scores, rounded to one decimal.
func Total(w Weights, geo, land, arch, infra, reg, fin float64) float64 {
	sum := geo*float64(w.Geographic) +
		land*float64(w.LandSpace) +
		arch*float64(w.Architectural) +
		infra*float64(w.Infrastructure) +
		reg*float64(w.Regulatory) +
		fin*float64(w.Financial)
	return round1(sum / 100)
}

func PriorityFor(total float64, t Thresholds) models.Priority {
	switch {
	case total >= t.Critical:
		return models.PriorityCritical
	case total >= t.High:
		return models.PriorityHigh
	case total >= t.Medium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// Geographic gives 50 for a preferred location (20 otherwise) and 50 for a
// sea view. A missing sea view costs the full component but is not a reject.
func Geographic(rec models.PropertyRecord, r Rubric) float64 {
	score := 20.0
	if r.isPreferred(rec.Location) {
		score = 50
	}
	if rec.SeaView {
		score += 50
	}
	return clamp(score)
}

func LandSpace(land int, r Rubric) float64 {
	switch {
	case land >= r.LandMin && land <= r.LandMax:
		return 100
	case land > r.LandMax && land <= r.LandUpperBand:
		return 85
	case land >= r.LandLowerBand && land < r.LandMin:
		return 60
	default:
		return 40
	}
}

func Architectural(rec models.PropertyRecord, r Rubric) float64 {
	score := r.ArchitecturalBase
	if rec.Historic {
		score += r.HistoricBonus
	}
	if rec.Masseria {
		score += r.MasseriaBonus
	}
	return clamp(score)
}

func Financial(price int64, r Rubric) float64 {
	switch {
	case price >= r.PriceMin && price <= r.PriceOptimal:
		return 100
	case price > r.PriceOptimal && price <= r.PriceMax:
		return 80
	case price < r.PriceMin:
		return 70
	default:
		return 50
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
