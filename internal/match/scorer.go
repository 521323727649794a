package match

import (
	"math"
	"sort"

	"github.com/dpe-match/internal/fuzzy"
	"github.com/dpe-match/internal/normalize"
)

// Weights holds the penalties of the match score. Each factor subtracts
// from a starting score of 100.
type Weights struct {
	SurfacePenalty float64 // points lost for a 100% floor-area gap
	StreetWeight   float64 // share of street dissimilarity subtracted
	CityWeight     float64 // share of city dissimilarity subtracted
}

// DefaultWeights returns the production weights: 20 / 0.35 / 0.35
func DefaultWeights() *Weights {
	return &Weights{
		SurfacePenalty: 20,
		StreetWeight:   0.35,
		CityWeight:     0.35,
	}
}

// Breakdown details how a match score was reached. Street and city scores
// are nil when either side carries no signal for that segment.
type Breakdown struct {
	SurfacePenalty float64  `json:"surface_penalty"`
	StreetScore    *float64 `json:"street_score,omitempty"`
	StreetPenalty  float64  `json:"street_penalty"`
	CityScore      *float64 `json:"city_score,omitempty"`
	CityPenalty    float64  `json:"city_penalty"`
	Score          float64  `json:"score"`
}

// Calculator combines floor-area, street and city similarity into one
// confidence score per candidate. It holds no mutable state.
type Calculator struct {
	weights *Weights
}

// NewCalculator creates a calculator with default weights
func NewCalculator() *Calculator {
	return &Calculator{weights: DefaultWeights()}
}

// NewCalculatorWithWeights creates a calculator with custom weights
func NewCalculatorWithWeights(weights *Weights) *Calculator {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Calculator{weights: weights}
}

// Calculate returns the 0-100 match score of candidate against query
func (c *Calculator) Calculate(candidate Candidate, query AddressQuery) float64 {
	return c.Explain(candidate, query).Score
}

// Explain computes the match score and the contribution of each factor
func (c *Calculator) Explain(candidate Candidate, query AddressQuery) Breakdown {
	var b Breakdown
	score := 100.0

	if query.SquareFootage > 0 && candidate.SquareFootage > 0 {
		gap := math.Abs(candidate.SquareFootage-query.SquareFootage) / query.SquareFootage
		b.SurfacePenalty = gap * c.weights.SurfacePenalty
		score -= b.SurfacePenalty
	}

	queryStreet, queryCity := normalize.ExtractTokens(query.Address, query.ZipCode)
	candStreet, candCity := normalize.ExtractTokens(candidate.Address, candidate.ZipCode)

	if queryStreet != nil && candStreet != nil {
		s := fuzzy.StreetScore(*queryStreet, *candStreet)
		b.StreetScore = &s
		b.StreetPenalty = (100 - s) * c.weights.StreetWeight
		score -= b.StreetPenalty
	}

	if queryCity != nil && candCity != nil {
		s := fuzzy.CityScore(*queryCity, *candCity)
		b.CityScore = &s
		b.CityPenalty = (100 - s) * c.weights.CityWeight
		score -= b.CityPenalty
	}

	b.Score = math.Max(0, score)
	return b
}

// ScoreCandidates scores every candidate and returns the results sorted
// highest first. Equal scores keep the input order.
func (c *Calculator) ScoreCandidates(candidates []Candidate, query AddressQuery) []MatchResult {
	results := make([]MatchResult, 0, len(candidates))
	for _, candidate := range candidates {
		results = append(results, MatchResult{
			Candidate:          candidate,
			MatchScore:         c.Calculate(candidate, query),
			EnergyDiagnosticID: candidate.ExternalID,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})

	return results
}
