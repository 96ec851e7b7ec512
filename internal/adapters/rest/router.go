package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/services"
)

// Services groups everything the HTTP layer calls into.
type Services struct {
	Intake    *services.IntakeService
	Checks    *services.CheckRunner
	Status    *services.StatusService
	Review    *services.ReviewService
	Schedule  *services.ScheduleService
	Gate      *services.GateService
	Proposals *services.ProposalService

	Authz  ports.Authorizer
	Tokens ports.TokenService
	Users  ports.UserRepository
}

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

type RouterOptions struct {
	AllowedOrigins []string
	// Limiter guards the verification and scheduling routes. Nil disables it.
	Limiter ports.RateLimiter
	// Health checks run by /healthz, keyed by dependency name.
	Health map[string]Pinger
}

// NewRouter builds the API handler.
func NewRouter(svc Services, opts RouterOptions, baseLogger *zerolog.Logger) http.Handler {
	log := baseLogger.With().Str("component", "http").Logger()

	auth := authenticator{tokens: svc.Tokens, users: svc.Users}
	verification := &verificationHandler{intake: svc.Intake, checks: svc.Checks, status: svc.Status, authz: svc.Authz}
	admin := &adminHandler{review: svc.Review}
	visits := &visitHandler{schedule: svc.Schedule, gate: svc.Gate, proposals: svc.Proposals}

	limited := func(prefix string) func(http.Handler) http.Handler {
		if opts.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return rateLimit(opts.Limiter, prefix)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(instrument)

	r.Get("/healthz", healthHandler(opts.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Guests schedule without a session, so the session is optional here.
		r.Group(func(r chi.Router) {
			r.Use(auth.Optional)
			r.Use(limited("schedule"))
			r.Post("/schedule-visit", visits.scheduleVisit)
			r.Get("/authorization", visits.authorization)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Required)

			r.Get("/verification-status", verification.statusByID)
			r.Post("/proposals", visits.submitProposal)

			r.Route("/verification", func(r chi.Router) {
				r.Get("/status", verification.myStatus)
				r.Group(func(r chi.Router) {
					r.Use(limited("verification"))
					r.Post("/start", verification.start)
					r.Post("/upload-documents", verification.uploadDocuments)
					r.Post("/check-cpf", verification.checkCPF)
					r.Post("/check-criminal", verification.checkCriminal)
				})
			})

			r.Route("/admin/verifications", func(r chi.Router) {
				r.Get("/", admin.list)
				r.Get("/{id}", admin.get)
				r.Post("/{id}/approve", admin.approve)
				r.Post("/{id}/reject", admin.reject)
			})
		})
	})

	return r
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("dependency", name).Msg("Health check failed")
				report[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "up"
		}
		writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": report})
	}
}
