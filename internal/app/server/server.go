package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/holiday"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/domain/notifications"
	"leavedesk/internal/domain/overtime"
	"leavedesk/internal/domain/policy"
	"leavedesk/internal/domain/reports"
	"leavedesk/internal/domain/settings"
	"leavedesk/internal/domain/user"
	"leavedesk/internal/platform/config"
	"leavedesk/internal/platform/crypto"
	"leavedesk/internal/platform/db"
	"leavedesk/internal/platform/email"
	"leavedesk/internal/platform/jobs"
	"leavedesk/internal/platform/storage"
	audithandler "leavedesk/internal/transport/http/handlers/audit"
	authhandler "leavedesk/internal/transport/http/handlers/auth"
	fileshandler "leavedesk/internal/transport/http/handlers/files"
	holidayhandler "leavedesk/internal/transport/http/handlers/holiday"
	leavehandler "leavedesk/internal/transport/http/handlers/leave"
	overtimehandler "leavedesk/internal/transport/http/handlers/overtime"
	policyhandler "leavedesk/internal/transport/http/handlers/policy"
	reportshandler "leavedesk/internal/transport/http/handlers/reports"
	settingshandler "leavedesk/internal/transport/http/handlers/settings"
	usershandler "leavedesk/internal/transport/http/handlers/users"
	"leavedesk/internal/transport/http/middleware"
)

const shutdownGrace = 15 * time.Second

// App bundles the wired router and its database pool so main can serve
// it and tests can mount it on httptest.
type App struct {
	Router chi.Router
	Pool   *pgxpool.Pool
}

func (a *App) Close() {
	a.Pool.Close()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	cipher, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("encryption setup: %w", err)
	}
	files, err := storage.New(cfg.UploadDir, cipher)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("upload storage setup: %w", err)
	}

	notify := notifications.New(email.New(cfg), cfg.EmailFrom)
	jobSvc := jobs.New(pool)

	userSvc := user.NewService(user.NewStore(pool), notify)
	policySvc := policy.NewService(policy.NewStore(pool))
	holidaySvc := holiday.NewService(holiday.NewStore(pool))
	settingsSvc := settings.NewService(settings.NewStore(pool))
	auditSvc := audit.New(pool)
	leaveSvc := leave.NewService(leave.NewStore(pool), userSvc, policySvc, holidaySvc, files, jobSvc, notify)
	overtimeSvc := overtime.NewService(overtime.NewStore(pool), userSvc, policySvc, files, notify)
	reportsSvc := reports.NewService(reports.NewStore(pool), leaveSvc, settingsSvc)
	idempotency := middleware.NewIdempotencyStore(pool)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.Metrics)
	router.Use(middleware.Auth(cfg.JWTSecret, userSvc))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	settingsHandler := settingshandler.NewHandler(settingsSvc, auditSvc)

	router.Route("/api/v1", func(r chi.Router) {
		settingsHandler.RegisterPublicRoutes(r)

		authHandler := authhandler.NewHandler(userSvc, cfg.JWTSecret, cfg.SessionTTL)
		authHandler.RegisterRoutes(r)

		// Everything below sits behind the maintenance gate; admins
		// pass through it so they can turn it off again.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Maintenance(settingsSvc))

			usershandler.NewHandler(userSvc, leaveSvc, auditSvc).RegisterRoutes(r)
			leavehandler.NewHandler(leaveSvc, auditSvc, idempotency).RegisterRoutes(r)
			overtimehandler.NewHandler(overtimeSvc).RegisterRoutes(r)
			policyhandler.NewHandler(policySvc, auditSvc).RegisterRoutes(r)
			settingsHandler.RegisterRoutes(r)
			holidayhandler.NewHandler(holidaySvc, auditSvc).RegisterRoutes(r)
			reportshandler.NewHandler(reportsSvc).RegisterRoutes(r)
			audithandler.NewHandler(auditSvc).RegisterRoutes(r)
			fileshandler.NewHandler(files).RegisterRoutes(r)
		})
	})

	return &App{Router: router, Pool: pool}, nil
}

func Run() {
	cfg := config.Load()
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	app, err := New(context.Background(), cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "err", err)
		}
	}
}

func setupLogger(cfg config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
