package scoring

import (
	"math"

	"github.com/david/estate-finder/internal/models"
)

// VectorDims is the length of the vector returned by FeatureVector and the
// dimension of the properties.embedding column.
const VectorDims = 8

// FeatureVector maps a record onto a small normalized vector used for
// nearest-neighbour lookups of similar listings.
func FeatureVector(rec models.PropertyRecord) []float32 {
	return []float32{
		ratio(float64(rec.Price), 2_000_000),
		ratio(float64(rec.LandArea), 20_000),
		ratio(float64(rec.BuiltArea), 1_000),
		flag(rec.SeaView),
		flag(rec.Pool),
		flag(rec.Historic),
		flag(rec.Masseria),
		flag(rec.RenovationRequired),
	}
}

func ratio(v, limit float64) float32 {
	return float32(math.Max(0, math.Min(1, v/limit)))
}

func flag(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
