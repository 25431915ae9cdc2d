package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asmr-studio/creator-studio/internal/asset"
	"github.com/asmr-studio/creator-studio/internal/credential"
	"github.com/asmr-studio/creator-studio/internal/events"
	"github.com/asmr-studio/creator-studio/internal/middleware"
	"github.com/asmr-studio/creator-studio/internal/service"
	"github.com/asmr-studio/creator-studio/pkg/logger"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Studio   *service.Studio
	Hub      *events.Hub
	Assets   *asset.Store
	KeyStore *credential.KeyStore // nil disables PUT /api/v1/credential
	NATS     Pinger               // nil when publishing is disabled

	// Configured is false when no credential was present at startup.
	Configured bool

	SessionSecret     string
	SessionTokenTTL   time.Duration
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Heartbeat         time.Duration

	Logger *logger.Logger
}

// NewRouter builds the studio's HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	healthHandler := NewHealthHandler(cfg.NATS, cfg.Configured)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	if !cfg.Configured {
		r.NotFound(ConfigurationMissing)
		r.MethodNotAllowed(ConfigurationMissing)
		return r
	}

	sessionHandler := NewSessionHandler(cfg.Studio, cfg.SessionSecret, cfg.SessionTokenTTL, cfg.Logger)
	streamHandler := NewStreamHandler(cfg.Studio, cfg.Hub, cfg.Heartbeat, cfg.Logger)
	assetHandler := NewAssetHandler(cfg.Assets)

	// Media elements cannot set headers, so assets also accept ?token=.
	r.With(middleware.Auth(cfg.SessionSecret)).Get("/assets/{id}", assetHandler.Serve)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
			Post("/sessions", sessionHandler.Create)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.SessionSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Reset)
				r.Put("/draft", sessionHandler.UpdateDraft)
				r.Post("/plan", sessionHandler.SubmitPlan)
				r.Post("/video", sessionHandler.SubmitVideo)
				r.Post("/chat", sessionHandler.SubmitChat)
				r.Get("/messages/{id}/blocks", sessionHandler.Blocks)
				r.Get("/events", streamHandler.Stream)
			})

			if cfg.KeyStore != nil {
				credentialHandler := NewCredentialHandler(cfg.KeyStore, cfg.Logger)
				r.Put("/credential", credentialHandler.Select)
			}
		})
	})

	return r
}
