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

// GuessDependencies defines the interface for guess ingestion.
type GuessDependencies interface {
	EnqueueGuess(ctx context.Context, date string, roundIndex, guessedYear int) (string, error)
}

// GuessesHandler handles guess submissions.
type GuessesHandler struct {
	deps GuessDependencies
}

// NewGuessesHandler creates a new guesses handler.
func NewGuessesHandler(deps GuessDependencies) *GuessesHandler {
	return &GuessesHandler{deps: deps}
}

// guessRequest mirrors the OpenAPI schema for POST /guesses.
type guessRequest struct {
	Date        string `json:"date"`
	RoundIndex  *int   `json:"round_index"`
	GuessedYear *int   `json:"guessed_year"`
}

func (g guessRequest) validate() error {
	switch {
	case strings.TrimSpace(g.Date) == "":
		return errors.New("missing date")
	case g.RoundIndex == nil:
		return errors.New("missing round_index")
	case g.GuessedYear == nil:
		return errors.New("missing guessed_year")
	}
	if _, err := model.ParseDate(g.Date); err != nil {
		return errors.New("invalid date; must be YYYY-MM-DD")
	}
	return nil
}

// HandlePostGuess handles POST /guesses requests.
func (h *GuessesHandler) HandlePostGuess(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_guess"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req guessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	id, err := h.deps.EnqueueGuess(r.Context(), req.Date, *req.RoundIndex, *req.GuessedYear)
	if err != nil {
		if isBackpressure(err) {
			writeError(w, http.StatusTooManyRequests, "backpressure", newKind(op, ErrBackpressure))
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: id})
}
