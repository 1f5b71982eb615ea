// Package http exposes the analysis service's REST API.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dinewise/analysis/internal/service"
	"github.com/dinewise/analysis/pkg/httputil"
)

// InsightsHandler handles HTTP requests for place and review insights.
type InsightsHandler struct {
	service *service.AggregationService
	logger  *slog.Logger
}

// NewInsightsHandler creates a new insights HTTP handler.
func NewInsightsHandler(svc *service.AggregationService, logger *slog.Logger) *InsightsHandler {
	return &InsightsHandler{
		service: svc,
		logger:  logger,
	}
}

// GetPlaceInsights handles GET /api/v1/places/{placeID}/insights
func (h *InsightsHandler) GetPlaceInsights(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")

	agg, err := h.service.GetPlaceInsights(r.Context(), placeID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: agg})
}

// GetReviewInsights handles GET /api/v1/reviews/{reviewID}/insights
func (h *InsightsHandler) GetReviewInsights(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")

	rec, err := h.service.GetReviewInsights(r.Context(), reviewID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: rec})
}
