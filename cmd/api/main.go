// Package main is the entry point for the studio server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/asmr-studio/creator-studio/internal/asset"
	"github.com/asmr-studio/creator-studio/internal/config"
	"github.com/asmr-studio/creator-studio/internal/credential"
	"github.com/asmr-studio/creator-studio/internal/events"
	"github.com/asmr-studio/creator-studio/internal/handler"
	"github.com/asmr-studio/creator-studio/internal/llm"
	natsclient "github.com/asmr-studio/creator-studio/internal/nats"
	"github.com/asmr-studio/creator-studio/internal/service"
	"github.com/asmr-studio/creator-studio/pkg/logger"
	"github.com/asmr-studio/creator-studio/pkg/tracing"
)

const serviceName = "asmr-creator-studio"

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.ForEnv(cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	log.Info("starting studio server",
		zap.String("env", cfg.Env),
		zap.String("text_provider", cfg.TextProvider),
		zap.String("text_model", cfg.TextModel),
		zap.String("video_model", cfg.VideoModel),
		zap.Bool("configured", cfg.HasCredential()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
					log.Warn("failed to flush traces", zap.Error(err))
				}
			}()
		}
	}

	hub := events.NewHub()
	defer hub.Close()
	publishers := events.Fanout{hub}

	var natsPinger handler.Pinger
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:   cfg.NATSURL,
			Token: cfg.NATSToken,
			Name:  serviceName,
		}, log.Named("nats"))
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient.JetStream())
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
		publishers = append(publishers, streamManager)
		natsPinger = natsClient
	}

	var (
		keyStore *credential.KeyStore
		selector credential.Selector
	)
	source := credential.Source(func() string { return os.Getenv(config.APIKeyEnv) })
	if cfg.KeySelectionEnabled {
		keyStore = credential.NewKeyStore()
		selector = keyStore
		source = keyStore.Source(source)
	}
	resolver := credential.NewResolver(cfg.APIKey, source, selector, log.Named("credential"))

	factory := llm.NewFactory(llm.FactoryConfig{
		TextProvider:    llm.Provider(cfg.TextProvider),
		GeminiBaseURL:   cfg.GeminiBaseURL,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		HTTPClient:      &http.Client{Timeout: 5 * time.Minute},
	})

	generator := service.NewGenerator(factory, service.GeneratorConfig{
		TextModel:       cfg.TextModel,
		VideoModel:      cfg.VideoModel,
		PlanTemperature: cfg.PlanTemperature,
		PollInterval:    cfg.VideoPollInterval,
		PollTimeout:     cfg.VideoPollTimeout,
		MaxPolls:        cfg.VideoMaxPolls,
	}, log)

	assets := asset.NewStore(asset.DefaultBasePath)
	studio := service.NewStudio(service.SessionDeps{
		Generator:         generator,
		Credentials:       resolver,
		Assets:            assets,
		Publisher:         publishers,
		Logger:            log,
		ChatFailureNotice: cfg.ChatFailureNotice,
	}, cfg.SessionIdleTTL, log)
	defer studio.Close()
	go studio.Run(ctx)

	if !cfg.HasCredential() {
		log.Warn("API_KEY is not set, studio routes answer configuration_missing")
	}

	router := handler.NewRouter(handler.RouterConfig{
		Studio:            studio,
		Hub:               hub,
		Assets:            assets,
		KeyStore:          keyStore,
		NATS:              natsPinger,
		Configured:        cfg.HasCredential(),
		SessionSecret:     cfg.SessionSecret,
		SessionTokenTTL:   cfg.SessionTokenTTL,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Heartbeat:         handler.DefaultHeartbeat,
		Logger:            log.Named("http"),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	server.RegisterOnShutdown(hub.Close)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
