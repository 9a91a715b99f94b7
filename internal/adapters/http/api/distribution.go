// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/eraguess/eraguess/internal/domain/model"
)

// DistributionDependencies defines the interface for distribution reads.
type DistributionDependencies interface {
	GetDistribution(ctx context.Context, date string, userScore *int, pointCount int) (model.ProcessedDistribution, error)
}

// DistributionHandler handles distribution reads.
type DistributionHandler struct {
	deps DistributionDependencies
}

// NewDistributionHandler creates a new distribution handler.
func NewDistributionHandler(deps DistributionDependencies) *DistributionHandler {
	return &DistributionHandler{deps: deps}
}

// HandleGetDistribution handles GET /distribution?date=...&score=...&points=... requests.
func (h *DistributionHandler) HandleGetDistribution(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_distribution"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "bad_request", newKind(op, ErrBadRequest))
		return
	}

	var userScore *int
	if raw := r.URL.Query().Get("score"); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
			return
		}
		userScore = &score
	}

	pointCount := 0
	if raw := r.URL.Query().Get("points"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 {
			writeError(w, http.StatusBadRequest, "bad_request", newKind(op, ErrBadRequest))
			return
		}
		pointCount = n
	}

	pd, err := h.deps.GetDistribution(r.Context(), date, userScore, pointCount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pd)
}
