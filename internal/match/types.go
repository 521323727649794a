package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// EnergyClass is the energy performance rating of a diagnostic (A best, G worst)
type EnergyClass string

const (
	ClassA EnergyClass = "A"
	ClassB EnergyClass = "B"
	ClassC EnergyClass = "C"
	ClassD EnergyClass = "D"
	ClassE EnergyClass = "E"
	ClassF EnergyClass = "F"
	ClassG EnergyClass = "G"
)

// Valid reports whether c is one of A..G
func (c EnergyClass) Valid() bool {
	return len(c) == 1 && c[0] >= 'A' && c[0] <= 'G'
}

// OpportunityType identifies which kind of opportunity a link belongs to.
// Each type has its own link store binding.
type OpportunityType string

const (
	Auction OpportunityType = "auction"
	Listing OpportunityType = "listing"
)

// OpportunityTypes lists every supported type
var OpportunityTypes = []OpportunityType{Auction, Listing}

// ParseOpportunityType maps "auction"/"listing" (any case) to its type
func ParseOpportunityType(s string) (OpportunityType, error) {
	switch OpportunityType(strings.ToLower(strings.TrimSpace(s))) {
	case Auction:
		return Auction, nil
	case Listing:
		return Listing, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedOpportunityType, s)
}

// OpportunityRef points to one auction or listing
type OpportunityRef struct {
	ID   int64           `json:"id"`
	Type OpportunityType `json:"type"`
}

func (r OpportunityRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// AddressQuery is the loosely structured address fragment a caller searches with
type AddressQuery struct {
	ZipCode       string      `json:"zip_code" validate:"required,len=5,numeric"`
	EnergyClass   EnergyClass `json:"energy_class" validate:"required,oneof=A B C D E F G"`
	SquareFootage float64     `json:"square_footage" validate:"gt=0"`
	Address       string      `json:"address,omitempty"`
	City          string      `json:"city,omitempty"`
}

// Validate checks the query shape; failures wrap ErrInvalidQuery
func (q AddressQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return nil
}

// Candidate is an energy diagnostic record from the registry
type Candidate struct {
	ID            int64       `json:"id" db:"id"`
	Address       string      `json:"address" db:"address"`
	ZipCode       string      `json:"zip_code" db:"zip_code"`
	EnergyClass   EnergyClass `json:"energy_class" db:"energy_class"`
	SquareFootage float64     `json:"square_footage" db:"square_footage"`
	ExternalID    string      `json:"external_id" db:"external_id"`
}

// MatchResult is a scored candidate. It is computed per query and never
// persisted as is.
type MatchResult struct {
	Candidate
	MatchScore         float64 `json:"match_score"`
	EnergyDiagnosticID string  `json:"energy_diagnostic_id"`
}

// CandidateFilter is the registry pre-filter for one query
type CandidateFilter struct {
	ZipCode          string
	EnergyClass      EnergyClass
	SquareFootageMin float64
	SquareFootageMax float64
	Limit            int
}

// LinkInput is one link to persist for an opportunity
type LinkInput struct {
	EnergyDiagnosticID string `json:"energy_diagnostic_id"`
	MatchScore         int    `json:"match_score"`
}

// DiagnosticLink is a persisted association between an opportunity and a
// diagnostic, joined with the diagnostic summary fields.
type DiagnosticLink struct {
	ID                 string          `json:"id" db:"id"`
	OpportunityID      int64           `json:"opportunity_id" db:"opportunity_id"`
	OpportunityType    OpportunityType `json:"opportunity_type" db:"-"`
	EnergyDiagnosticID string          `json:"energy_diagnostic_id" db:"energy_diagnostic_id"`
	MatchScore         int             `json:"match_score" db:"match_score"`
	Address            string          `json:"address" db:"address"`
	ZipCode            string          `json:"zip_code" db:"zip_code"`
	EnergyClass        EnergyClass     `json:"energy_class" db:"energy_class"`
	SquareFootage      float64         `json:"square_footage" db:"square_footage"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// LinkRequest is one entry of a batch relink
type LinkRequest struct {
	Opportunity OpportunityRef `json:"opportunity"`
	Query       AddressQuery   `json:"query"`
}

// LinkOutcome reports the result of one LinkRequest
type LinkOutcome struct {
	Opportunity OpportunityRef
	Links       []DiagnosticLink
	Err         error
}
