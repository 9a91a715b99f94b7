// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/internal/domain/stats"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CreateChallenge(ctx context.Context, date string) error
	GetChallenge(ctx context.Context, date string) (model.Challenge, error)
	SubmitScore(ctx context.Context, date string, score int) (stats.Result, error)
	GetDistribution(ctx context.Context, date string, userScore *int, pointCount int) (model.ProcessedDistribution, error)
	EnqueueGuess(ctx context.Context, date string, roundIndex, guessedYear int) (string, error)
	ArchiveChallenge(ctx context.Context, date string) error
	RunArchivalSweep(ctx context.Context) (int, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	challengesHandler   *ChallengesHandler
	scoresHandler       *ScoresHandler
	distributionHandler *DistributionHandler
	guessesHandler      *GuessesHandler
	archiveHandler      *ArchiveHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		challengesHandler:   NewChallengesHandler(deps),
		scoresHandler:       NewScoresHandler(deps),
		distributionHandler: NewDistributionHandler(deps),
		guessesHandler:      NewGuessesHandler(deps),
		archiveHandler:      NewArchiveHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/challenges", MetricsMiddleware(s.challengesHandler.HandleChallenges, "challenges"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
	mux.HandleFunc("/distribution", MetricsMiddleware(s.distributionHandler.HandleGetDistribution, "distribution"))
	mux.HandleFunc("/guesses", MetricsMiddleware(s.guessesHandler.HandlePostGuess, "guesses"))
	mux.HandleFunc("/archive/sweep", MetricsMiddleware(s.archiveHandler.HandleSweep, "archive_sweep"))
	mux.HandleFunc("/archive/finalize", MetricsMiddleware(s.archiveHandler.HandleFinalize, "archive_finalize"))
}

type ackResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates domain sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stats.ErrValidation):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)
	case isConflict(err):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
