package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpe-match/internal/match"
)

func seededRegistry() *Registry {
	return NewRegistry(
		match.Candidate{ExternalID: "DPE-1", Address: "9 Rue de la Paix 75001 Paris", ZipCode: "75001", EnergyClass: match.ClassF, SquareFootage: 50},
		match.Candidate{ExternalID: "DPE-2", Address: "11 Rue de la Paix 75001 Paris", ZipCode: "75001", EnergyClass: match.ClassF, SquareFootage: 54},
		match.Candidate{ExternalID: "DPE-3", Address: "4 Rue de Rivoli 75001 Paris", ZipCode: "75001", EnergyClass: match.ClassF, SquareFootage: 70},
		match.Candidate{ExternalID: "DPE-4", Address: "9 Rue de la Paix 75001 Paris", ZipCode: "75001", EnergyClass: match.ClassD, SquareFootage: 50},
		match.Candidate{ExternalID: "DPE-5", Address: "2 Place Vendôme 75001 Paris", ZipCode: "75001", EnergyClass: match.ClassF, SquareFootage: 46},
		match.Candidate{ExternalID: "DPE-6", Address: "9 Rue de la Paix 75002 Paris", ZipCode: "75002", EnergyClass: match.ClassF, SquareFootage: 50},
	)
}

func TestRegistryFindCandidates(t *testing.T) {
	registry := seededRegistry()

	got, err := registry.FindCandidates(context.Background(), match.CandidateFilter{
		ZipCode:          "75001",
		EnergyClass:      match.ClassF,
		SquareFootageMin: 45,
		SquareFootageMax: 55,
		Limit:            50,
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ExternalID)
	}
	assert.Equal(t, []string{"DPE-1", "DPE-2", "DPE-5"}, ids)
}

func TestRegistryFindCandidatesLimit(t *testing.T) {
	registry := seededRegistry()

	got, err := registry.FindCandidates(context.Background(), match.CandidateFilter{
		ZipCode:          "75001",
		EnergyClass:      match.ClassF,
		SquareFootageMin: 0,
		SquareFootageMax: 1000,
		Limit:            2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestLinkStoreIgnoresExistingPairs(t *testing.T) {
	ctx := context.Background()
	store := NewLinkStore(seededRegistry(), 5)

	require.NoError(t, store.SaveLinks(ctx, 7, []match.LinkInput{
		{EnergyDiagnosticID: "DPE-1", MatchScore: 96},
		{EnergyDiagnosticID: "DPE-2", MatchScore: 80},
	}))
	first, err := store.GetLinks(ctx, 7)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// same pair with a new score is a no-op
	require.NoError(t, store.SaveLinks(ctx, 7, []match.LinkInput{
		{EnergyDiagnosticID: "DPE-1", MatchScore: 12},
	}))
	second, err := store.GetLinks(ctx, 7)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "DPE-1", second[0].EnergyDiagnosticID)
	assert.Equal(t, 96, second[0].MatchScore)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestLinkStoreCapsLinksPerOpportunity(t *testing.T) {
	ctx := context.Background()
	store := NewLinkStore(seededRegistry(), 3)

	require.NoError(t, store.SaveLinks(ctx, 1, []match.LinkInput{
		{EnergyDiagnosticID: "DPE-1", MatchScore: 90},
		{EnergyDiagnosticID: "DPE-2", MatchScore: 70},
	}))
	require.NoError(t, store.SaveLinks(ctx, 1, []match.LinkInput{
		{EnergyDiagnosticID: "DPE-3", MatchScore: 60},
		{EnergyDiagnosticID: "DPE-5", MatchScore: 65},
	}))

	links, err := store.GetLinks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "DPE-1", links[0].EnergyDiagnosticID)
	assert.Equal(t, "DPE-2", links[1].EnergyDiagnosticID)
	assert.Equal(t, "DPE-5", links[2].EnergyDiagnosticID, "higher scored link of the second batch wins the last slot")

	// other opportunities are unaffected
	other, err := store.GetLinks(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLinkStoreJoinsRegistryFields(t *testing.T) {
	ctx := context.Background()
	store := NewLinkStore(seededRegistry(), 5)

	require.NoError(t, store.SaveLinks(ctx, 3, []match.LinkInput{
		{EnergyDiagnosticID: "DPE-5", MatchScore: 88},
		{EnergyDiagnosticID: "unknown", MatchScore: 99},
	}))

	links, err := store.GetLinks(ctx, 3)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, int64(3), links[0].OpportunityID)
	assert.Equal(t, "2 Place Vendôme 75001 Paris", links[0].Address)
	assert.Equal(t, match.ClassF, links[0].EnergyClass)
	assert.Equal(t, 46.0, links[0].SquareFootage)
	assert.NotEmpty(t, links[0].ID)
}

func TestLinkStoreHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewLinkStore(seededRegistry(), 5)
	err := store.SaveLinks(ctx, 1, []match.LinkInput{{EnergyDiagnosticID: "DPE-1", MatchScore: 1}})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewRegistry().FindCandidates(ctx, match.CandidateFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
