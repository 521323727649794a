package match

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOpportunityType is returned when no link store is bound
	// for the requested opportunity type.
	ErrUnsupportedOpportunityType = errors.New("unsupported opportunity type")

	// ErrInvalidQuery is returned for malformed queries or opportunity refs
	ErrInvalidQuery = errors.New("invalid address query")
)

// Operations reported by RepositoryError
const (
	OpFindCandidates = "find_candidates"
	OpSaveLinks      = "save_links"
	OpGetLinks       = "get_links"
)

// RepositoryError wraps a failure of the candidate registry or a link store.
// The cause is kept intact and reachable through errors.Is / errors.As.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}
