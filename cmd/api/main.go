package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"creator-outreach/internal/api"
	"creator-outreach/internal/campaign"
	"creator-outreach/internal/config"
	"creator-outreach/internal/logging"
	"creator-outreach/internal/queue"
	"creator-outreach/internal/rowstore"
	"creator-outreach/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}

	q := queue.NewRedisQueue(cfg)
	submitter := campaign.NewJobSubmitter(cfg, st, q)

	// A fresh row store per run, closed by the orchestrator on every path.
	openRows := func(ctx context.Context) (rowstore.RowStore, error) {
		return rowstore.Open(ctx, cfg.ContactBackend, cfg.ContactCSVPath, cfg.SpreadsheetID, cfg.GoogleCredentials, logger)
	}
	orch := campaign.NewOrchestrator(openRows, submitter, cfg.RunCeiling, cfg.PacingDelay, logger)

	server := api.New(cfg, orch, st, q)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info("api listening", zap.String("port", cfg.HTTPPort))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
