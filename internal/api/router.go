package api

import (
	"net/http"
	"time"

	"codeclash/internal/api/handler"
	"codeclash/internal/api/middleware"
	"codeclash/internal/app/service"
	"codeclash/internal/common/security"
	"codeclash/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	submissionService *service.SubmissionService,
	contestService *service.ContestService,
	leaderboardService *service.LeaderboardService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger())
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Searches for a token in "Authorization: Bearer T" and puts claims in context.
	// Routes that need a user add middleware.Authenticator.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		submissionHandler := handler.NewSubmissionHandler(submissionService)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)

		contestHandler := handler.NewContestHandler(contestService, leaderboardService)
		v1.Route("/contests", contestHandler.RegisterRoutes)
	})

	return r
}
