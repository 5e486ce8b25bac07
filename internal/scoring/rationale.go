package scoring

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/david/estate-finder/internal/models"
)

const (
	defaultStrength = "Property in target region"
	defaultConcern  = "Standard due diligence required"
)

func Recommendation(p models.Priority, t models.PropertyType) string {
	switch p {
	case models.PriorityCritical:
		return fmt.Sprintf("URGENT: Exceptional %s - schedule site visit within 48 hours", t)
	case models.PriorityHigh:
		return "HIGH PRIORITY: Strong candidate - request detailed info"
	case models.PriorityMedium:
		return "PROMISING: Good potential - gather more data"
	default:
		return "CONSIDER: Review for specific use cases"
	}
}

// Strengths always returns at least one entry.
func Strengths(rec models.PropertyRecord, r Rubric) []string {
	var out []string
	if rec.SeaView {
		out = append(out, "Sea view confirmed")
	}
	if rec.Masseria {
		out = append(out, fmt.Sprintf("Historic masseria %dm²", rec.BuiltArea))
	}
	if rec.Historic {
		out = append(out, "Historic structure")
	}
	if rec.Price >= r.PriceMin && rec.Price <= r.PriceMax {
		out = append(out, fmt.Sprintf("Price €%s within budget", Thousands(rec.Price)))
	}
	if rec.LandArea >= r.LandMin && rec.LandArea <= r.LandMax {
		out = append(out, fmt.Sprintf("Ideal land size %sm²", Thousands(int64(rec.LandArea))))
	}
	if rec.Pool {
		out = append(out, "Existing pool")
	}
	if len(out) == 0 {
		return []string{defaultStrength}
	}
	return out
}

// Concerns always returns at least one entry.
func Concerns(rec models.PropertyRecord, r Rubric) []string {
	var out []string
	if !rec.SeaView {
		out = append(out, "No sea view (critical requirement)")
	}
	if rec.RenovationRequired {
		out = append(out, "Renovation required")
	}
	if rec.Price > r.PriceMax {
		out = append(out, fmt.Sprintf("Over budget by €%s", Thousands(rec.Price-r.PriceMax)))
	}
	if rec.LandArea < r.LandMin {
		out = append(out, fmt.Sprintf("Land only %sm² (below minimum)", Thousands(int64(rec.LandArea))))
	}
	if rec.BuiltArea < r.MinBuiltArea {
		out = append(out, fmt.Sprintf("Small built area %dm²", rec.BuiltArea))
	}
	if len(out) == 0 {
		return []string{defaultConcern}
	}
	return out
}

var groupPrinter = message.NewPrinter(language.English)

// Thousands formats n with comma group separators, e.g. 1200000 -> "1,200,000".
func Thousands(n int64) string {
	return groupPrinter.Sprintf("%d", n)
}
