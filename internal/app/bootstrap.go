// Package app wires configuration, the database pool, the MinIO image
// provider and every HTTP route into one handler with an explicit lifecycle:
// Build opens resources, Runtime.Close releases them.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tarot-api/internal/auth"
	"tarot-api/internal/cards"
	"tarot-api/internal/db"
	"tarot-api/internal/maintenance"
	"tarot-api/internal/oauth"
	"tarot-api/internal/observability"
	"tarot-api/internal/storage"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Logger  *observability.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	googleClientID, err := mustEnv("GOOGLE_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	minioEndpoint, err := mustEnv("MINIO_ENDPOINT")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development"), os.Getenv("APP_VERSION")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	imageProvider, err := storage.NewMinioProvider(storage.Config{
		Endpoint:      minioEndpoint,
		AccessKey:     os.Getenv("MINIO_ROOT_USER"),
		SecretKey:     os.Getenv("MINIO_ROOT_PASSWORD"),
		Secure:        EnvBoolOrDefault("MINIO_SECURE", false),
		Bucket:        envOrDefault("MINIO_BUCKET_TAROT", "tarot-cards"),
		PublicBaseURL: envOrDefault("PUBLIC_BASE_URL", ""),
		Presign:       EnvBoolOrDefault("CARD_IMAGE_PRESIGN", true),
		PresignExpiry: envHoursOrDefault("CARD_IMAGE_PRESIGN_EXPIRY_HOURS", 1),
	})
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init image provider: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exists, err := imageProvider.CheckBucket(checkCtx); err != nil {
		logger.Warn("minio_bucket_check_failed", map[string]any{"error": err.Error()})
	} else if !exists {
		logger.Warn("minio_bucket_missing", map[string]any{"bucket": envOrDefault("MINIO_BUCKET_TAROT", "tarot-cards")})
	}

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, jwtSecret)
	authService.WithTokenTTLs(
		envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 60),
		envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 720),
	)
	authHandler := auth.NewHandler(
		authService,
		oauth.NewGoogleVerifier(googleClientID),
		oauth.NewFacebookVerifier(),
	)

	cardRepo := cards.NewRepository(database, envOrDefault("DEFAULT_LANG", "hu"))
	cardHandler := cards.NewHandler(cardRepo, authRepo, imageProvider)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("DRAW_RECORD_RETENTION_DAYS", 90),
		envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	)

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	mux := http.NewServeMux()
	mux.Handle("POST /auth/google", loginLimiter.Middleware(http.HandlerFunc(authHandler.LoginGoogle)))
	mux.Handle("POST /auth/facebook", loginLimiter.Middleware(http.HandlerFunc(authHandler.LoginFacebook)))
	mux.Handle("GET /auth/user", auth.Middleware(authService, http.HandlerFunc(authHandler.Me)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.Handle("GET /cards/daily_card", auth.Middleware(authService, http.HandlerFunc(cardHandler.DailyCard)))
	mux.HandleFunc("GET /cards/all_cards", cardHandler.AllCards)
	mux.HandleFunc("GET /cards/card_description/{key}", cardHandler.CardDescription)
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
