// Package main runs the PDF compression HTTP server.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/4koushik4/pdf-compressor-backend/internal/app"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/httpapi"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/metrics"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage/postgres"
	"github.com/4koushik4/pdf-compressor-backend/internal/config"
	"github.com/4koushik4/pdf-compressor-backend/internal/gs"
	"github.com/4koushik4/pdf-compressor-backend/internal/middleware"
	"github.com/4koushik4/pdf-compressor-backend/internal/platform/migrations"
	"github.com/4koushik4/pdf-compressor-backend/pkg/logger"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithField("component", "server")

	// Ghostscript absence is tolerated at launch: the server starts and
	// rejects compression requests until the binary appears on PATH.
	var runner gs.Runner
	gsBinary, err := gs.Find(cfg.Ghostscript.Binary)
	if err != nil {
		log.WithError(err).Warn("ghostscript not found; /compress will return errors")
	} else {
		runner = gs.New(gsBinary, cfg.Ghostscript.Timeout(), log)
		log.WithField("binary", gsBinary).Info("ghostscript resolved")
	}

	stores, dbClose, err := openStores(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise storage")
	}
	if dbClose != nil {
		defer dbClose()
	}

	presets := config.LoadPresetsOrDefault()

	application, err := app.New(app.Options{
		Stores:       stores,
		Presets:      presets,
		Runner:       runner,
		GSBinary:     gsBinary,
		JobRetention: cfg.Jobs.Retention,
		Log:          log,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build application")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		if err := application.Attach(limiter); err != nil {
			log.WithError(err).Fatal("failed to register rate limiter")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start application services")
	}

	handler := buildHandler(application, limiter, cfg, log)

	// No ReadTimeout: uploads may run to the 200MB cap on slow links. The
	// write deadline must outlast a full Ghostscript run plus the download.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		// ListenAndServe only returns early on a bind or accept failure,
		// which includes a malformed PORT value.
		log.WithError(err).Fatal("http server failed")
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application shutdown")
	}
	log.Info("shutdown complete")
}

// openStores returns the job store, backed by Postgres when DATABASE_DSN is
// set and by memory otherwise. The returned closer is nil for memory.
func openStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.Database.DSN == "" {
		log.Info("no DATABASE_DSN set, using in-memory job store")
		return app.Stores{}, nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	if err := migrations.Apply(pingCtx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}

	log.Info("connected to postgres job store")
	return app.Stores{Jobs: postgres.New(db)}, func() { db.Close() }, nil
}

// buildHandler wraps the API router in the shared middleware chain.
func buildHandler(application *app.Application, limiter *middleware.RateLimiter, cfg *config.Config, log *logger.Logger) http.Handler {
	handler := httpapi.NewHandler(application, httpapi.Config{
		MaxUploadBytes: cfg.Upload.MaxBytes(),
	}, log)

	handler = metrics.InstrumentHandler(handler)

	if limiter != nil {
		handler = limiter.Handler(handler)
	}

	origins, err := config.LoadCORS()
	if err != nil {
		log.WithError(err).Fatal("invalid CORS configuration")
	}
	handler = middleware.NewCORSMiddleware(origins).Handler(handler)
	handler = middleware.RequestLogging(log)(handler)

	return handler
}
