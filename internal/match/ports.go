package match

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
)

// CandidateRepository reads the energy diagnostic registry. Implementations
// return only records that satisfy the filter: exact zip code, exact energy
// class, floor area inside the band, at most Limit rows.
type CandidateRepository interface {
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error)
}

// LinkStore persists links for one opportunity type.
//
// SaveLinks must be idempotent on (opportunityID, EnergyDiagnosticID): an
// existing pair is left untouched. GetLinks returns links ordered by match
// score, highest first.
type LinkStore interface {
	SaveLinks(ctx context.Context, opportunityID int64, links []LinkInput) error
	GetLinks(ctx context.Context, opportunityID int64) ([]DiagnosticLink, error)
}
