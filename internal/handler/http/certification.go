package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dinewise/analysis/internal/domain"
	"github.com/dinewise/analysis/internal/service"
	"github.com/dinewise/analysis/pkg/httputil"
	"github.com/dinewise/analysis/pkg/validator"
)

// CertificationHandler handles HTTP requests for dietary certifications.
type CertificationHandler struct {
	service *service.CertificationService
	logger  *slog.Logger
}

// NewCertificationHandler creates a new certification HTTP handler.
func NewCertificationHandler(svc *service.CertificationService, logger *slog.Logger) *CertificationHandler {
	return &CertificationHandler{
		service: svc,
		logger:  logger,
	}
}

// Create handles POST /api/v1/certifications
func (h *CertificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req service.CreateCertificationInput
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

	cert, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: cert})
}

// Get handles GET /api/v1/certifications/{certID}
func (h *CertificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	certID := chi.URLParam(r, "certID")

	cert, err := h.service.GetByID(r.Context(), certID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cert})
}

// ListByPlace handles GET /api/v1/places/{placeID}/certifications
func (h *CertificationHandler) ListByPlace(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")

	certs, err := h.service.ListByPlace(r.Context(), placeID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: certs})
}

// UpdateScores handles PUT /api/v1/certifications/{certID}/scores
func (h *CertificationHandler) UpdateScores(w http.ResponseWriter, r *http.Request) {
	certID := chi.URLParam(r, "certID")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req service.UpdateScoresInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	cert, err := h.service.UpdateScores(r.Context(), certID, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cert})
}

// UpdateStatusRequest is the JSON request body for a status transition.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=verified rejected expired"`
}

// UpdateStatus handles PUT /api/v1/certifications/{certID}/status
func (h *CertificationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	certID := chi.URLParam(r, "certID")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateStatusRequest
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

	cert, err := h.service.UpdateStatus(r.Context(), certID, domain.CertificationStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cert})
}
