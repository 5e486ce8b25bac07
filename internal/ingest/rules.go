package ingest

import (
	"strings"

	"github.com/david/estate-finder/internal/models"
)

type Feature string

const (
	FeatureSeaView    Feature = "sea_view"
	FeaturePool       Feature = "pool"
	FeatureHistoric   Feature = "historic"
	FeatureMasseria   Feature = "masseria"
	FeatureRenovation Feature = "renovation_required"
)

// FeatureRule sets a feature flag when any keyword occurs in the listing text.
type FeatureRule struct {
	Feature  Feature
	Keywords []string
}

// TypeRule classifies a listing; rules are tried in order and the first hit wins.
type TypeRule struct {
	Type     models.PropertyType
	Keywords []string
}

var FeatureRules = []FeatureRule{
	{FeatureSeaView, []string{"vista mare", "sea view", "vista adriatico", "vista sul mare"}},
	{FeaturePool, []string{"piscina", "pool", "swimming"}},
	{FeatureHistoric, []string{"storica", "historic", "antico", "antica", "1700", "1800"}},
	{FeatureMasseria, []string{"masseria"}},
	{FeatureRenovation, []string{"ristruttur", "renovat", "da ristrutturare"}},
}

var TypeRules = []TypeRule{
	{models.TypeMasseria, []string{"masseria"}},
	{models.TypeTrulli, []string{"trulli", "trullo"}},
	{models.TypeVilla, []string{"villa"}},
	{models.TypeCasale, []string{"casale"}},
	{models.TypeAgriturismo, []string{"agriturismo"}},
}

// DetectFeatures matches rules case-insensitively against text.
func DetectFeatures(text string, rules []FeatureRule) map[Feature]bool {
	text = strings.ToLower(text)
	found := make(map[Feature]bool, len(rules))
	for _, r := range rules {
		if containsAny(text, r.Keywords) {
			found[r.Feature] = true
		}
	}
	return found
}

// ClassifyType returns the first matching type, or the generic "property".
func ClassifyType(text string, rules []TypeRule) models.PropertyType {
	text = strings.ToLower(text)
	for _, r := range rules {
		if containsAny(text, r.Keywords) {
			return r.Type
		}
	}
	return models.TypeProperty
}

func applyFeatures(rec *models.PropertyRecord, f map[Feature]bool) {
	rec.SeaView = f[FeatureSeaView]
	rec.Pool = f[FeaturePool]
	rec.Historic = f[FeatureHistoric]
	rec.Masseria = f[FeatureMasseria]
	rec.RenovationRequired = f[FeatureRenovation]
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
