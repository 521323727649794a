// Package memory provides in-process implementations of the candidate
// registry and the link stores. They honour the same contracts as the
// PostgreSQL stores: the registry pre-filters, SaveLinks ignores existing
// pairs and caps the links held per opportunity.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dpe-match/internal/match"
)

// Registry is an in-memory energy diagnostic registry
type Registry struct {
	mu      sync.RWMutex
	records []match.Candidate
	nextID  int64
}

// NewRegistry creates a registry holding records
func NewRegistry(records ...match.Candidate) *Registry {
	r := &Registry{}
	for _, rec := range records {
		r.Add(rec)
	}
	return r
}

// Add stores a record, assigning an ID when it has none
func (r *Registry) Add(rec match.Candidate) match.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == 0 {
		r.nextID++
		rec.ID = r.nextID
	} else if rec.ID > r.nextID {
		r.nextID = rec.ID
	}
	r.records = append(r.records, rec)
	return rec
}

// FindCandidates returns the records matching filter ordered by ID
func (r *Registry) FindCandidates(ctx context.Context, filter match.CandidateFilter) ([]match.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Candidate, 0)
	for _, rec := range r.records {
		if rec.ZipCode != filter.ZipCode || rec.EnergyClass != filter.EnergyClass {
			continue
		}
		if rec.SquareFootage < filter.SquareFootageMin || rec.SquareFootage > filter.SquareFootageMax {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// lookup finds a record by external ID
func (r *Registry) lookup(externalID string) (match.Candidate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.ExternalID == externalID {
			return rec, true
		}
	}
	return match.Candidate{}, false
}

type storedLink struct {
	id                 string
	energyDiagnosticID string
	matchScore         int
	createdAt          time.Time
}

// LinkStore is an in-memory link store for one opportunity type
type LinkStore struct {
	mu       sync.Mutex
	registry *Registry
	maxLinks int
	links    map[int64][]storedLink
	now      func() time.Time
}

// NewLinkStore creates a link store joining against registry. maxLinks <= 0
// disables the per-opportunity cap.
func NewLinkStore(registry *Registry, maxLinks int) *LinkStore {
	return &LinkStore{
		registry: registry,
		maxLinks: maxLinks,
		links:    make(map[int64][]storedLink),
		now:      time.Now,
	}
}

// SaveLinks inserts the links that are not already stored, highest score
// first, while the opportunity holds fewer than maxLinks links.
func (s *LinkStore) SaveLinks(ctx context.Context, opportunityID int64, links []match.LinkInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.links[opportunityID]
	fresh := make([]match.LinkInput, 0, len(links))
	for _, l := range links {
		if !hasLink(existing, l.EnergyDiagnosticID) && !hasInput(fresh, l.EnergyDiagnosticID) {
			fresh = append(fresh, l)
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].MatchScore > fresh[j].MatchScore
	})
	if s.maxLinks > 0 {
		fresh = fresh[:min(len(fresh), max(0, s.maxLinks-len(existing)))]
	}

	now := s.now().UTC()
	for _, l := range fresh {
		existing = append(existing, storedLink{
			id:                 uuid.NewString(),
			energyDiagnosticID: l.EnergyDiagnosticID,
			matchScore:         l.MatchScore,
			createdAt:          now,
		})
	}
	s.links[opportunityID] = existing
	return nil
}

// GetLinks returns the links of an opportunity joined with the registry,
// highest score first
func (s *LinkStore) GetLinks(ctx context.Context, opportunityID int64) ([]match.DiagnosticLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	stored := append([]storedLink(nil), s.links[opportunityID]...)
	s.mu.Unlock()

	out := make([]match.DiagnosticLink, 0, len(stored))
	for _, l := range stored {
		rec, ok := s.registry.lookup(l.energyDiagnosticID)
		if !ok {
			continue
		}
		out = append(out, match.DiagnosticLink{
			ID:                 l.id,
			OpportunityID:      opportunityID,
			EnergyDiagnosticID: l.energyDiagnosticID,
			MatchScore:         l.matchScore,
			Address:            rec.Address,
			ZipCode:            rec.ZipCode,
			EnergyClass:        rec.EnergyClass,
			SquareFootage:      rec.SquareFootage,
			CreatedAt:          l.createdAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].EnergyDiagnosticID < out[j].EnergyDiagnosticID
	})
	return out, nil
}

func hasInput(links []match.LinkInput, energyDiagnosticID string) bool {
	for _, l := range links {
		if l.EnergyDiagnosticID == energyDiagnosticID {
			return true
		}
	}
	return false
}

func hasLink(links []storedLink, energyDiagnosticID string) bool {
	for _, l := range links {
		if l.energyDiagnosticID == energyDiagnosticID {
			return true
		}
	}
	return false
}
