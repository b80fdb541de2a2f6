// Package api exposes the read-only query surface over the entity store:
// by-id lookups per entity kind and per-kind counts. Writes happen only
// through the projectors.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pactindex/store"
)

// Server serves the query API.
type Server struct {
	store store.Store
	auth  *TokenVerifier
	log   *slog.Logger
}

// NewServer builds the server. A nil verifier leaves the API open.
func NewServer(st store.Store, auth *TokenVerifier, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: st, auth: auth, log: log}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.auth != nil {
		r.Use(s.auth.Middleware)
	}
	r.Get("/v1/frameworks/{id}", s.getFramework)
	r.Get("/v1/agreements/{id}", s.getAgreement)
	r.Get("/v1/positions/{id}", s.getPosition)
	r.Get("/v1/disputes/{id}", s.getDispute)
	r.Get("/v1/settlements/{id}", s.getSettlement)
	r.Get("/v1/stats", s.getStats)
	return r
}

// Response shapes live here rather than on the entity structs, so the
// domain types stay free of presentation concerns.

type frameworkResponse struct {
	ID              string `json:"id"`
	Arbitrator      string `json:"arbitrator"`
	RequiredDeposit string `json:"requiredDeposit"`
}

type agreementResponse struct {
	ID          string `json:"id"`
	Framework   string `json:"framework,omitempty"`
	TermsHash   string `json:"termsHash"`
	Criteria    string `json:"criteria"`
	MetadataURI string `json:"metadataURI"`
	Title       string `json:"title"`
	Token       string `json:"token"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
}

type positionResponse struct {
	ID                 string `json:"id"`
	Agreement          string `json:"agreement"`
	Party              string `json:"party"`
	RequiredCollateral string `json:"requiredCollateral"`
	Collateral         string `json:"collateral"`
	Deposit            string `json:"deposit"`
	Status             string `json:"status"`
}

type disputeResponse struct {
	ID         string `json:"id"`
	Agreement  string `json:"agreement,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Settlement string `json:"settlement,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

type settlementResponse struct {
	ID          string `json:"id"`
	Dispute     string `json:"dispute"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submittedAt"`
}

type statsResponse struct {
	Frameworks  int `json:"frameworks"`
	Agreements  int `json:"agreements"`
	Positions   int `json:"positions"`
	Disputes    int `json:"disputes"`
	Settlements int `json:"settlements"`
}

func numString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func (s *Server) getFramework(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.Framework(r.Context(), chi.URLParam(r, "id"))
	if s.handleLookupErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, frameworkResponse{
		ID:              row.ID,
		Arbitrator:      row.Arbitrator,
		RequiredDeposit: numString(row.RequiredDeposit),
	})
}

func (s *Server) getAgreement(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.Agreement(r.Context(), chi.URLParam(r, "id"))
	if s.handleLookupErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, agreementResponse{
		ID:          row.ID,
		Framework:   row.Framework,
		TermsHash:   row.TermsHash,
		Criteria:    numString(row.Criteria),
		MetadataURI: row.MetadataURI,
		Title:       row.Title,
		Token:       row.Token,
		Status:      string(row.Status),
		CreatedAt:   numString(row.CreatedAt),
	})
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.Position(r.Context(), chi.URLParam(r, "id"))
	if s.handleLookupErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		ID:                 row.ID,
		Agreement:          row.Agreement,
		Party:              row.Party,
		RequiredCollateral: numString(row.RequiredCollateral),
		Collateral:         numString(row.Collateral),
		Deposit:            numString(row.Deposit),
		Status:             string(row.Status),
	})
}

func (s *Server) getDispute(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.Dispute(r.Context(), chi.URLParam(r, "id"))
	if s.handleLookupErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, disputeResponse{
		ID:         row.ID,
		Agreement:  row.Agreement,
		Resolution: row.Resolution,
		Settlement: row.Settlement,
		CreatedAt:  numString(row.CreatedAt),
	})
}

func (s *Server) getSettlement(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.Settlement(r.Context(), chi.URLParam(r, "id"))
	if s.handleLookupErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, settlementResponse{
		ID:          row.ID,
		Dispute:     row.Dispute,
		Status:      string(row.Status),
		SubmittedAt: numString(row.SubmittedAt),
	})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.log.Error("stats query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Frameworks:  counts.Frameworks,
		Agreements:  counts.Agreements,
		Positions:   counts.Positions,
		Disputes:    counts.Disputes,
		Settlements: counts.Settlements,
	})
}

// handleLookupErr writes the error response for a failed lookup and reports
// whether the caller should stop.
func (s *Server) handleLookupErr(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return true
	}
	s.log.Error("lookup failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
