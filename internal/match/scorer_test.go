package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	calculator := NewCalculator()
	query := AddressQuery{
		ZipCode:       "75001",
		EnergyClass:   ClassF,
		SquareFootage: 50,
		Address:       "9 Rue de la Paix 75001 Paris",
	}

	tests := []struct {
		name      string
		query     AddressQuery
		candidate Candidate
		want      float64
	}{
		{
			name:  "identical fields",
			query: query,
			candidate: Candidate{
				Address: "9 Rue de la Paix 75001 Paris", ZipCode: "75001",
				EnergyClass: ClassF, SquareFootage: 50, ExternalID: "DPE-1",
			},
			want: 100,
		},
		{
			name:  "surface gap only, no address on either side",
			query: AddressQuery{ZipCode: "75001", EnergyClass: ClassF, SquareFootage: 50},
			candidate: Candidate{
				ZipCode: "75001", EnergyClass: ClassF, SquareFootage: 60,
			},
			want: 100 - (10.0/50.0)*20,
		},
		{
			name:  "candidate street without house number",
			query: query,
			candidate: Candidate{
				Address: "rue de la paix 75001 Paris", ZipCode: "75001",
				EnergyClass: ClassF, SquareFootage: 50,
			},
			// street score 70: two inserted runes
			want: 100 - 30*0.35,
		},
		{
			name: "commune with trailing qualifier",
			query: AddressQuery{
				ZipCode: "74500", EnergyClass: ClassC, SquareFootage: 80,
				Address: "1 place du Marché 74500 Évian",
			},
			candidate: Candidate{
				Address: "1 Place du Marche 74500 Evian-les-Bains", ZipCode: "74500",
				EnergyClass: ClassC, SquareFootage: 80,
			},
			want: 100 - (100-(85-(10.0/15.0)*50))*0.35,
		},
		{
			name:  "zip absent from candidate address",
			query: query,
			candidate: Candidate{
				Address: "9 Rue de la Paix Paris", ZipCode: "75001",
				EnergyClass: ClassF, SquareFootage: 55,
			},
			want: 100 - (5.0/50.0)*20,
		},
		{
			name:  "candidate without surface",
			query: query,
			candidate: Candidate{
				Address: "9 Rue de la Paix 75001 Paris", ZipCode: "75001", EnergyClass: ClassF,
			},
			want: 100,
		},
		{
			name:  "energy class is not scored",
			query: query,
			candidate: Candidate{
				Address: "9 Rue de la Paix 75001 Paris", ZipCode: "75001",
				EnergyClass: ClassA, SquareFootage: 50,
			},
			want: 100,
		},
		{
			name:  "clamped at zero",
			query: AddressQuery{ZipCode: "75001", EnergyClass: ClassF, SquareFootage: 10, Address: "1 rue a 75001 Paris"},
			candidate: Candidate{
				Address: "287 boulevard de la gare 75001 Lyon", ZipCode: "75001",
				EnergyClass: ClassF, SquareFootage: 500,
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calculator.Calculate(tt.candidate, tt.query), 1e-9)
		})
	}
}

func TestExplain(t *testing.T) {
	calculator := NewCalculator()
	query := AddressQuery{
		ZipCode: "75001", EnergyClass: ClassF, SquareFootage: 50,
		Address: "9 Rue de la Paix 75001 Paris",
	}

	t.Run("street penalty stays inside the tolerant band", func(t *testing.T) {
		b := calculator.Explain(Candidate{
			Address: "rue de la paix 75001 Paris", ZipCode: "75001", SquareFootage: 50,
		}, query)

		require.NotNil(t, b.StreetScore)
		assert.GreaterOrEqual(t, *b.StreetScore, 50.0)
		assert.LessOrEqual(t, *b.StreetScore, 85.0)
		require.NotNil(t, b.CityScore)
		assert.Equal(t, 100.0, *b.CityScore)
		assert.Zero(t, b.CityPenalty)
		assert.InDelta(t, 100-b.StreetPenalty, b.Score, 1e-9)
	})

	t.Run("no signal leaves segment scores unset", func(t *testing.T) {
		b := calculator.Explain(Candidate{ZipCode: "75001", SquareFootage: 45}, query)
		assert.Nil(t, b.StreetScore)
		assert.Nil(t, b.CityScore)
		assert.InDelta(t, 2.0, b.SurfacePenalty, 1e-9)
		assert.InDelta(t, 98.0, b.Score, 1e-9)
	})
}

func TestCalculateRange(t *testing.T) {
	calculator := NewCalculator()
	addresses := []string{
		"",
		"75001",
		"9 Rue de la Paix 75001 Paris",
		"rue de la paix 75001",
		"75001 Paris 1er Arrondissement",
		"Bâtiment B, 3 allée des Érables 75001 Paris",
		"zzzz 75001 q",
	}
	surfaces := []float64{0, 1, 45, 50, 55, 500}

	for _, qa := range addresses {
		for _, ca := range addresses {
			for _, sq := range surfaces {
				q := AddressQuery{ZipCode: "75001", EnergyClass: ClassE, SquareFootage: 50, Address: qa}
				c := Candidate{ZipCode: "75001", EnergyClass: ClassE, SquareFootage: sq, Address: ca}
				s := calculator.Calculate(c, q)
				assert.GreaterOrEqual(t, s, 0.0, "query %q candidate %q surface %v", qa, ca, sq)
				assert.LessOrEqual(t, s, 100.0, "query %q candidate %q surface %v", qa, ca, sq)
			}
		}
	}
}

func TestScoreCandidatesOrdering(t *testing.T) {
	calculator := NewCalculator()
	query := AddressQuery{ZipCode: "75001", EnergyClass: ClassF, SquareFootage: 50}

	results := calculator.ScoreCandidates([]Candidate{
		{ID: 1, ExternalID: "far", ZipCode: "75001", SquareFootage: 55},
		{ID: 2, ExternalID: "tie-a", ZipCode: "75001", SquareFootage: 51},
		{ID: 3, ExternalID: "exact", ZipCode: "75001", SquareFootage: 50},
		{ID: 4, ExternalID: "tie-b", ZipCode: "75001", SquareFootage: 49},
	}, query)

	got := make([]string, 0, len(results))
	for _, r := range results {
		got = append(got, r.EnergyDiagnosticID)
	}
	assert.Equal(t, []string{"exact", "tie-a", "tie-b", "far"}, got)
}

func TestCustomWeights(t *testing.T) {
	calculator := NewCalculatorWithWeights(&Weights{SurfacePenalty: 50})
	q := AddressQuery{ZipCode: "75001", EnergyClass: ClassF, SquareFootage: 50}
	c := Candidate{ZipCode: "75001", SquareFootage: 60}
	assert.InDelta(t, 90.0, calculator.Calculate(c, q), 1e-9)

	assert.Equal(t, DefaultWeights(), NewCalculatorWithWeights(nil).weights)
}
