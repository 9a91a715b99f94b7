// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/internal/domain/stats"
)

// ScoreDependencies defines the interface for score submission.
type ScoreDependencies interface {
	SubmitScore(ctx context.Context, date string, score int) (stats.Result, error)
}

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// scoreRequest mirrors the OpenAPI schema for POST /scores.
type scoreRequest struct {
	Date  string `json:"date"`
	Score *int   `json:"score"`
}

func (s scoreRequest) validate() error {
	switch {
	case strings.TrimSpace(s.Date) == "":
		return errors.New("missing date")
	case s.Score == nil:
		return errors.New("missing score")
	}
	if _, err := model.ParseDate(s.Date); err != nil {
		return errors.New("invalid date; must be YYYY-MM-DD")
	}
	return nil
}

// HandlePostScore handles POST /scores requests.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	result, err := h.deps.SubmitScore(r.Context(), req.Date, *req.Score)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
