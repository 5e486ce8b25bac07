package scoring

// Weights are integer percentages; a valid rubric sums to exactly 100.
type Weights struct {
	Geographic     int `yaml:"geographic"`
	LandSpace      int `yaml:"land_space"`
	Architectural  int `yaml:"architectural"`
	Infrastructure int `yaml:"infrastructure"`
	Regulatory     int `yaml:"regulatory"`
	Financial      int `yaml:"financial"`
}

// Sum returns the total of all weights in percent.
func (w Weights) Sum() int {
	return w.Geographic + w.LandSpace + w.Architectural + w.Infrastructure + w.Regulatory + w.Financial
}

// Thresholds map a rounded total to a priority tier.
type Thresholds struct {
	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
}

// Rubric is the full set of rules the evaluator scores against.
// It is a plain value so variants can be built and compared in tests.
type Rubric struct {
	Weights            Weights    `yaml:"weights"`
	Tiers              Thresholds `yaml:"tiers"`
	PreferredLocations []string   `yaml:"preferred_locations"`

	// Land bands in m²
	LandMin       int `yaml:"land_min"`
	LandMax       int `yaml:"land_max"`
	LandUpperBand int `yaml:"land_upper_band"`
	LandLowerBand int `yaml:"land_lower_band"`
	MinBuiltArea  int `yaml:"min_built_area"`

	// Price bands in euro
	PriceMin     int64 `yaml:"price_min"`
	PriceOptimal int64 `yaml:"price_optimal"`
	PriceMax     int64 `yaml:"price_max"`

	ArchitecturalBase  float64 `yaml:"architectural_base"`
	HistoricBonus      float64 `yaml:"historic_bonus"`
	MasseriaBonus      float64 `yaml:"masseria_bonus"`
	InfrastructureBase float64 `yaml:"infrastructure_base"`
	RegulatoryBase     float64 `yaml:"regulatory_base"`
}

func DefaultRubric() Rubric {
	return Rubric{
		Weights: Weights{
			Geographic:     30,
			LandSpace:      25,
			Architectural:  15,
			Infrastructure: 15,
			Regulatory:     10,
			Financial:      5,
		},
		Tiers: Thresholds{Critical: 85, High: 75, Medium: 65},
		PreferredLocations: []string{
			"Monopoli", "Polignano a Mare", "Fasano", "Ostuni",
		},
		LandMin:            8000,
		LandMax:            12000,
		LandUpperBand:      20000,
		LandLowerBand:      6000,
		MinBuiltArea:       400,
		PriceMin:           800000,
		PriceOptimal:       1250000,
		PriceMax:           1500000,
		ArchitecturalBase:  70,
		HistoricBonus:      15,
		MasseriaBonus:      15,
		InfrastructureBase: 75,
		RegulatoryBase:     65,
	}
}

func (r Rubric) isPreferred(location string) bool {
	for _, l := range r.PreferredLocations {
		if l == location {
			return true
		}
	}
	return false
}
