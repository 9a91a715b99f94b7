// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// ArchiveDependencies defines the interface for archival operations.
type ArchiveDependencies interface {
	ArchiveChallenge(ctx context.Context, date string) error
	RunArchivalSweep(ctx context.Context) (int, error)
}

// ArchiveHandler handles operational archival requests.
type ArchiveHandler struct {
	deps ArchiveDependencies
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(deps ArchiveDependencies) *ArchiveHandler {
	return &ArchiveHandler{deps: deps}
}

type sweepResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
}

// HandleSweep handles POST /archive/sweep requests.
func (h *ArchiveHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	processed, err := h.deps.RunArchivalSweep(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Status: "ok", Processed: processed})
}

// HandleFinalize handles POST /archive/finalize requests.
func (h *ArchiveHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	const op = "api.archive_finalize"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.ArchiveChallenge(r.Context(), req.Date); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "archived"})
}
