package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"campusattend/internal/app"
	"campusattend/internal/checkin"
	"campusattend/internal/config"
	"campusattend/internal/endpoint"
	"campusattend/internal/kiosk"
	"campusattend/internal/logger"
)

// Kiosk reads scans from stdin (a card reader in keyboard mode, or a capture
// daemon writing image paths under KIOSK_CAPTURE_DIR) and checks students into
// one session.
func main() {
	cfg := config.Load()
	// The kiosk never holds a credential of its own.
	cfg.CredentialBackend = "memory"
	logg := logger.New(os.Stderr, cfg.LogLevel)

	if cfg.KioskSessionID == "" {
		log.Fatal("KIOSK_SESSION_ID is required")
	}
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg, logg)
	if err != nil {
		log.Fatalf("kiosk setup failed: %v", err)
	}
	defer rt.Close()

	client := rt.Factory.Kiosk()
	svc := checkin.NewService(nil, client, rt.Metrics, logg)
	station := kiosk.NewStation(cfg.KioskSessionID, svc, endpoint.NewKiosk(client), logg,
		kiosk.WithCaptureDir(cfg.KioskCaptureDir),
	)

	srv := &http.Server{
		Addr:         cfg.KioskListenAddr,
		Handler:      kiosk.NewRouter(station, rt.Registry),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logg.Info("kiosk status server listening", slog.String("addr", cfg.KioskListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("status server failed", slog.String("error", err.Error()))
		}
	}()

	go station.PollStatus(ctx, cfg.KioskPollInterval)

	logg.Info("kiosk ready", slog.String("session_id", cfg.KioskSessionID))
	if err := station.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error("scan loop stopped", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Warn("status server forced shutdown", slog.String("error", err.Error()))
	}
	counts := station.Counts()
	logg.Info("kiosk stopped",
		slog.Int64("accepted", counts.Accepted),
		slog.Int64("rejected", counts.Rejected),
		slog.Int64("failed", counts.Failed),
	)
}
