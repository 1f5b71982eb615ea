package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dinewise/analysis/internal/service"
	"github.com/dinewise/analysis/pkg/health"
	"github.com/dinewise/analysis/pkg/middleware"
)

// NewRouter creates a chi router with all analysis service routes registered.
func NewRouter(
	aggregationService *service.AggregationService,
	voteService *service.VoteService,
	certificationService *service.CertificationService,
	healthHandler *health.Handler,
	corsCfg middleware.CORSConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("analysis"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	insightsHandler := NewInsightsHandler(aggregationService, logger)
	voteHandler := NewVoteHandler(voteService, logger)
	certificationHandler := NewCertificationHandler(certificationService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Place insights and certifications
		r.Get("/places/{placeID}/insights", insightsHandler.GetPlaceInsights)
		r.Get("/places/{placeID}/certifications", certificationHandler.ListByPlace)

		// Review insights and helpfulness votes
		r.Get("/reviews/{reviewID}/insights", insightsHandler.GetReviewInsights)
		r.Get("/reviews/{reviewID}/votes", voteHandler.GetCounters)
		r.Put("/reviews/{reviewID}/votes", voteHandler.CastVote)
		r.Post("/reviews/{reviewID}/votes/reconcile", voteHandler.Reconcile)

		// Dietary certifications
		r.Post("/certifications", certificationHandler.Create)
		r.Get("/certifications/{certID}", certificationHandler.Get)
		r.Put("/certifications/{certID}/scores", certificationHandler.UpdateScores)
		r.Put("/certifications/{certID}/status", certificationHandler.UpdateStatus)
	})

	return r
}
