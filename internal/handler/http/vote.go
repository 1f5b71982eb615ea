package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dinewise/analysis/internal/service"
	"github.com/dinewise/analysis/pkg/httputil"
	"github.com/dinewise/analysis/pkg/validator"
)

// VoteHandler handles HTTP requests for helpfulness votes.
type VoteHandler struct {
	service *service.VoteService
	logger  *slog.Logger
}

// NewVoteHandler creates a new vote HTTP handler.
func NewVoteHandler(svc *service.VoteService, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{
		service: svc,
		logger:  logger,
	}
}

// CastVoteRequest is the JSON request body for casting a helpfulness vote.
type CastVoteRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	IsHelpful *bool  `json:"is_helpful" validate:"required"`
}

// CastVote handles PUT /api/v1/reviews/{reviewID}/votes
//
// The endpoint is idempotent per (review, user): repeating the same verdict
// changes nothing, a different verdict replaces the previous one.
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	counters, err := h.service.CastVote(r.Context(), reviewID, req.UserID, *req.IsHelpful)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: counters})
}

// GetCounters handles GET /api/v1/reviews/{reviewID}/votes
func (h *VoteHandler) GetCounters(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	counters, err := h.service.GetCounters(r.Context(), reviewID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: counters})
}

// Reconcile handles POST /api/v1/reviews/{reviewID}/votes/reconcile
func (h *VoteHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	counters, err := h.service.ReconcileCounters(r.Context(), reviewID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: counters})
}
