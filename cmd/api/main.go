//	@title			Spendlog API
//	@version		1.0
//	@description	Personal expense tracking: transactions, receipt images in object storage, import and export.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/spendlog/service/internal/auth"
	"github.com/spendlog/service/internal/backup"
	"github.com/spendlog/service/internal/config"
	"github.com/spendlog/service/internal/db"
	"github.com/spendlog/service/internal/logger"
	appMiddleware "github.com/spendlog/service/internal/middleware"
	"github.com/spendlog/service/internal/receipt"
	"github.com/spendlog/service/internal/reconcile"
	"github.com/spendlog/service/internal/response"
	"github.com/spendlog/service/internal/storage"
	"github.com/spendlog/service/internal/transaction"
	"github.com/spendlog/service/internal/user"

	_ "github.com/spendlog/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	cfg.LogNotices(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	store, err := storage.NewMinioStorage(ctx, storage.Options{
		Endpoint:   cfg.StorageEndpoint,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		Bucket:     cfg.StorageBucket,
		Region:     cfg.StorageRegion,
		PublicBase: cfg.StoragePublicBase,
		UseSSL:     cfg.StorageUseSSL,
		PublicRead: cfg.StoragePublicRead,
	}, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("object storage init failed")
	}

	if cfg.GoogleClientID == "" {
		log.Warn().Msg("GOOGLE_CLIENT_ID is empty, sign-in will fail")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, log, pool, store),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		log.Info().Msgf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

// newRouter wires repository → service → handler and mounts every route.
func newRouter(cfg *config.Config, log zerolog.Logger, pool *pgxpool.Pool, store *storage.MinioStorage) http.Handler {
	userSvc := user.NewService(user.NewRepository(pool))
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(
		auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL),
		auth.NewRepository(pool),
		cfg.JWTSecret, cfg.SessionTTL,
		log.With().Str("component", "auth").Logger(),
	)
	authHandler := auth.NewHandler(authSvc, cfg.IsProduction())

	txSvc := transaction.NewService(transaction.NewRepository(pool), store,
		log.With().Str("component", "transaction").Logger(), cfg.OrphanDeleteConcurrency)
	txHandler := transaction.NewHandler(txSvc)

	receiptRepo := receipt.NewRepository(pool)
	receiptSvc := receipt.NewService(receiptRepo, txSvc, store, receipt.Options{
		UploadTTL:      cfg.UploadURLTTL,
		DownloadTTL:    cfg.DownloadURLTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, log.With().Str("component", "receipt").Logger())
	receiptHandler := receipt.NewHandler(receiptSvc)

	reconcileSvc := reconcile.NewService(receiptRepo, store, cfg.OrphanDeleteConcurrency,
		log.With().Str("component", "reconcile").Logger())
	reconcileHandler := reconcile.NewHandler(reconcileSvc)

	backupSvc := backup.NewService(backup.NewRepository(pool), store,
		log.With().Str("component", "backup").Logger())
	backupHandler := backup.NewHandler(backupSvc)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", authHandler.Routes)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))

			r.Get("/users/me", userHandler.GetMe)
			r.Route("/transactions", txHandler.Routes)
			r.Route("/receipts", receiptHandler.Routes)
			r.Route("/orphans", reconcileHandler.Routes)
			r.Route("/backup", backupHandler.Routes)
		})
	})

	return r
}
