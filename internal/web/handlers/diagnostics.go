package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dpe-match/internal/match"
)

// DiagnosticsHandler exposes diagnostic search and opportunity linking
type DiagnosticsHandler struct {
	Engine *match.Engine
	Logger *zap.Logger
}

// BatchLinkResult reports one entry of a batch link request
type BatchLinkResult struct {
	Opportunity match.OpportunityRef   `json:"opportunity"`
	Links       []match.DiagnosticLink `json:"links,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Search returns the ranked diagnostics for the query in the body
func (h *DiagnosticsHandler) Search(w http.ResponseWriter, r *http.Request) {
	var query match.AddressQuery
	if err := decodeBody(w, r, &query); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	results, err := h.Engine.Search(r.Context(), query)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Link searches diagnostics for the body query and links the best ones to
// the opportunity in the path
func (h *DiagnosticsHandler) Link(w http.ResponseWriter, r *http.Request) {
	ref, err := opportunityFromPath(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	var query match.AddressQuery
	if err := decodeBody(w, r, &query); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	links, err := h.Engine.SearchAndLink(r.Context(), query, ref)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// Links returns the stored links of the opportunity in the path
func (h *DiagnosticsHandler) Links(w http.ResponseWriter, r *http.Request) {
	ref, err := opportunityFromPath(r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	links, err := h.Engine.Links(r.Context(), ref)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// BatchLink links many opportunities in one call. Failures are reported per
// entry; the response is 200 unless the request itself is malformed.
func (h *DiagnosticsHandler) BatchLink(w http.ResponseWriter, r *http.Request) {
	var requests []match.LinkRequest
	if err := decodeBody(w, r, &requests); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	outcomes, err := h.Engine.LinkAll(r.Context(), requests)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	results := make([]BatchLinkResult, 0, len(outcomes))
	for _, o := range outcomes {
		res := BatchLinkResult{Opportunity: o.Opportunity, Links: o.Links}
		if o.Err != nil {
			res.Error = o.Err.Error()
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, results)
}

func opportunityFromPath(r *http.Request) (match.OpportunityRef, error) {
	vars := mux.Vars(r)

	opportunityType, err := match.ParseOpportunityType(vars["type"])
	if err != nil {
		return match.OpportunityRef{}, err
	}

	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		return match.OpportunityRef{}, fmt.Errorf("%w: invalid opportunity id %q", match.ErrInvalidQuery, vars["id"])
	}

	return match.OpportunityRef{ID: id, Type: opportunityType}, nil
}
