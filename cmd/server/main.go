package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "tablet-tracker/internal/adapters/web"
	"tablet-tracker/internal/app"
	"tablet-tracker/internal/config"
	"tablet-tracker/internal/core"
	"tablet-tracker/internal/db"
	"tablet-tracker/internal/logging"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	jobs, closeJobs, err := app.NewJobLockerFromURL(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatalf("job locker: %v", err)
	}
	defer closeJobs()

	svc := app.NewAppService(app.NewServices(pool, cfg.BagCountTolerance, log), jobs, log)

	if cfg.ReconcileInterval > 0 {
		go reconcileLoop(ctx, svc, cfg.ReconcileInterval, log)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.ServerPort).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
	log.Info("server stopped")
}

// reconcileLoop runs a reconciliation pass every interval until ctx is done.
// Another instance holding the job lock is not an error.
func reconcileLoop(ctx context.Context, svc app.ApplicationService, interval time.Duration, log logrus.FieldLogger) {
	system := core.Actor{Name: "reconciler", Role: core.RoleAdmin}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := svc.Reconcile(ctx, system)
			switch {
			case errors.Is(err, app.ErrJobRunning):
				log.Debug("reconciliation already running elsewhere")
			case err != nil:
				logging.LogError(log, "server", "reconcileLoop", "periodic reconciliation", nil, err)
			case len(report.Assigned) > 0 || len(report.Failed) > 0:
				log.WithFields(logrus.Fields{
					"examined": report.Examined,
					"assigned": len(report.Assigned),
					"failed":   len(report.Failed),
				}).Info("reconciliation pass")
			}
		}
	}
}
