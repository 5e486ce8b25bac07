package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/estate-finder/internal/models"
)

func TestDefaultRubric_WeightsSumToOne(t *testing.T) {
	r := DefaultRubric()
	assert.Equal(t, 100, r.Weights.Sum())
}

func TestEvaluate_ExceptionalMasseria(t *testing.T) {
	rec := models.PropertyRecord{
		Title:        "Masseria Storica",
		Location:     "Monopoli",
		Price:        1_200_000,
		LandArea:     10_000,
		PropertyType: models.TypeMasseria,
		SeaView:      true,
		Pool:         true,
		Historic:     true,
		Masseria:     true,
	}

	res := Evaluate(rec, DefaultRubric())

	assert.Equal(t, 100.0, res.GeographicScore)
	assert.Equal(t, 100.0, res.LandSpaceScore)
	assert.Equal(t, 100.0, res.ArchitecturalScore)
	assert.Equal(t, 75.0, res.InfrastructureScore)
	assert.Equal(t, 65.0, res.RegulatoryScore)
	assert.Equal(t, 100.0, res.FinancialScore)
	assert.Equal(t, 92.8, res.TotalScore)
	assert.Equal(t, res.TotalScore, res.MatchPercentage)
	assert.Equal(t, models.PriorityCritical, res.Priority)
	assert.Equal(t, "URGENT: Exceptional masseria - schedule site visit within 48 hours", res.Recommendation)
	assert.Equal(t, []string{
		"Sea view confirmed",
		"Historic masseria 0m²",
		"Historic structure",
		"Price €1,200,000 within budget",
		"Ideal land size 10,000m²",
		"Existing pool",
	}, res.Strengths)
	assert.Equal(t, []string{"Small built area 0m²"}, res.Concerns)
}

func TestEvaluate_WeakListing(t *testing.T) {
	rec := models.PropertyRecord{
		Location:     "Alberobello",
		Price:        2_000_000,
		LandArea:     4_000,
		BuiltArea:    100,
		PropertyType: models.TypeProperty,
	}

	res := Evaluate(rec, DefaultRubric())

	assert.Equal(t, 20.0, res.GeographicScore)
	assert.Equal(t, 40.0, res.LandSpaceScore)
	assert.Equal(t, 70.0, res.ArchitecturalScore)
	assert.Equal(t, 50.0, res.FinancialScore)
	assert.Equal(t, 46.8, res.TotalScore)
	assert.Equal(t, models.PriorityLow, res.Priority)
	assert.Equal(t, "CONSIDER: Review for specific use cases", res.Recommendation)
	assert.Equal(t, []string{defaultStrength}, res.Strengths)
	assert.Equal(t, []string{
		"No sea view (critical requirement)",
		"Over budget by €500,000",
		"Land only 4,000m² (below minimum)",
		"Small built area 100m²",
	}, res.Concerns)
}

func TestEvaluate_NoSeaViewIsPenaltyNotReject(t *testing.T) {
	rec := models.PropertyRecord{
		Location:  "Monopoli",
		Price:     1_000_000,
		LandArea:  10_000,
		BuiltArea: 500,
	}

	res := Evaluate(rec, DefaultRubric())

	assert.Equal(t, 50.0, res.GeographicScore)
	assert.Equal(t, 73.3, res.TotalScore)
	assert.Equal(t, models.PriorityMedium, res.Priority)
	assert.Equal(t, []string{"No sea view (critical requirement)"}, res.Concerns)
}

func TestFinancialBoundaries(t *testing.T) {
	r := DefaultRubric()
	tests := []struct {
		price int64
		want  float64
	}{
		{799_999, 70},
		{800_000, 100},
		{1_250_000, 100},
		{1_250_001, 80},
		{1_500_000, 80},
		{1_500_001, 50},
		{0, 70},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Financial(tt.price, r), "price %d", tt.price)
	}
}

func TestLandSpaceBands(t *testing.T) {
	r := DefaultRubric()
	tests := []struct {
		land int
		want float64
	}{
		{5_999, 40},
		{6_000, 60},
		{7_999, 60},
		{8_000, 100},
		{12_000, 100},
		{12_001, 85},
		{20_000, 85},
		{20_001, 40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LandSpace(tt.land, r), "land %d", tt.land)
	}
}

func TestPriorityBoundaries(t *testing.T) {
	tiers := DefaultRubric().Tiers
	tests := []struct {
		total float64
		want  models.Priority
	}{
		{100, models.PriorityCritical},
		{85.0, models.PriorityCritical},
		{84.9, models.PriorityHigh},
		{75.0, models.PriorityHigh},
		{74.9, models.PriorityMedium},
		{65.0, models.PriorityMedium},
		{64.9, models.PriorityLow},
		{0, models.PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityFor(tt.total, tiers), "total %.1f", tt.total)
	}
}

func TestArchitecturalBonusesStackToCap(t *testing.T) {
	r := DefaultRubric()
	assert.Equal(t, 70.0, Architectural(models.PropertyRecord{}, r))
	assert.Equal(t, 85.0, Architectural(models.PropertyRecord{Historic: true}, r))
	assert.Equal(t, 100.0, Architectural(models.PropertyRecord{Historic: true, Masseria: true}, r))

	r.HistoricBonus = 40
	assert.Equal(t, 100.0, Architectural(models.PropertyRecord{Historic: true, Masseria: true}, r))
}

func TestEvaluate_ScoresStayInRange(t *testing.T) {
	r := DefaultRubric()
	locations := []string{"Monopoli", "Cisternino", ""}
	lands := []int{0, 5_000, 6_000, 9_000, 15_000, 50_000}
	prices := []int64{0, 500_000, 1_000_000, 1_400_000, 3_000_000}

	for _, loc := range locations {
		for _, land := range lands {
			for _, price := range prices {
				for mask := 0; mask < 32; mask++ {
					rec := models.PropertyRecord{
						Location:           loc,
						LandArea:           land,
						Price:              price,
						SeaView:            mask&1 != 0,
						Pool:               mask&2 != 0,
						Historic:           mask&4 != 0,
						Masseria:           mask&8 != 0,
						RenovationRequired: mask&16 != 0,
					}
					res := Evaluate(rec, r)
					for _, s := range []float64{
						res.GeographicScore, res.LandSpaceScore, res.ArchitecturalScore,
						res.InfrastructureScore, res.RegulatoryScore, res.FinancialScore, res.TotalScore,
					} {
						require.GreaterOrEqual(t, s, 0.0)
						require.LessOrEqual(t, s, 100.0)
					}
					require.NotEmpty(t, res.Strengths)
					require.NotEmpty(t, res.Concerns)
				}
			}
		}
	}
}

func TestApply_IsIdempotent(t *testing.T) {
	r := DefaultRubric()
	rec := models.PropertyRecord{
		Location:  "Ostuni",
		Price:     1_300_000,
		LandArea:  13_000,
		BuiltArea: 450,
		SeaView:   true,
		Historic:  true,
	}

	once := Apply(rec, r)
	twice := Apply(once, r)

	require.True(t, once.Evaluated())
	assert.Equal(t, *once.EvaluationResult, *twice.EvaluationResult)
	assert.False(t, rec.Evaluated(), "input record must not be mutated")
}

func TestTotal_IndependentOfSubScoreRounding(t *testing.T) {
	w := DefaultRubric().Weights
	raw := Total(w, 100, 85, 85, 75, 65, 80)
	rounded := Total(w, round1(100), round1(85), round1(85), round1(75), round1(65), round1(80))
	assert.Equal(t, raw, rounded)
}

func TestRubricVariant(t *testing.T) {
	r := DefaultRubric()
	r.Tiers.Critical = 95

	rec := models.PropertyRecord{
		Location: "Monopoli", Price: 1_200_000, LandArea: 10_000,
		SeaView: true, Historic: true, Masseria: true,
	}
	assert.Equal(t, models.PriorityHigh, Evaluate(rec, r).Priority)
	assert.Equal(t, models.PriorityCritical, Evaluate(rec, DefaultRubric()).Priority)
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "0", Thousands(0))
	assert.Equal(t, "999", Thousands(999))
	assert.Equal(t, "1,000", Thousands(1000))
	assert.Equal(t, "1,200,000", Thousands(1_200_000))
	assert.Equal(t, "-1,500", Thousands(-1500))
}

func TestFeatureVector(t *testing.T) {
	v := FeatureVector(models.PropertyRecord{Price: 1_000_000, LandArea: 40_000, SeaView: true})
	require.Len(t, v, VectorDims)
	assert.InDelta(t, 0.5, v[0], 1e-6)
	assert.Equal(t, float32(1), v[1])
	assert.Equal(t, float32(1), v[3])
	assert.Equal(t, float32(0), v[4])
}
