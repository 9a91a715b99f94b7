// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/eraguess/eraguess/internal/domain/model"
)

// ChallengeDependencies defines the interface for challenge lifecycle operations.
type ChallengeDependencies interface {
	CreateChallenge(ctx context.Context, date string) error
	GetChallenge(ctx context.Context, date string) (model.Challenge, error)
}

// ChallengesHandler handles challenge lifecycle requests.
type ChallengesHandler struct {
	deps ChallengeDependencies
}

// NewChallengesHandler creates a new challenges handler.
func NewChallengesHandler(deps ChallengeDependencies) *ChallengesHandler {
	return &ChallengesHandler{deps: deps}
}

// challengeRequest mirrors the OpenAPI schema for POST /challenges.
type challengeRequest struct {
	Date string `json:"date"`
}

func (c challengeRequest) validate() error {
	if strings.TrimSpace(c.Date) == "" {
		return errors.New("missing date")
	}
	if _, err := model.ParseDate(c.Date); err != nil {
		return errors.New("invalid date; must be YYYY-MM-DD")
	}
	return nil
}

// HandleChallenges handles POST /challenges and GET /challenges?date=.
func (h *ChallengesHandler) HandleChallenges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ChallengesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_challenge"
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.CreateChallenge(r.Context(), req.Date); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "created"})
}

func (h *ChallengesHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_challenge"
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "bad_request", newKind(op, ErrBadRequest))
		return
	}
	ch, err := h.deps.GetChallenge(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}
