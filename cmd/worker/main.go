package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"creator-outreach/internal/archive"
	"creator-outreach/internal/compose"
	"creator-outreach/internal/config"
	"creator-outreach/internal/gemini"
	"creator-outreach/internal/logging"
	"creator-outreach/internal/mailer"
	"creator-outreach/internal/models"
	"creator-outreach/internal/queue"
	"creator-outreach/internal/ratelimit"
	"creator-outreach/internal/research"
	"creator-outreach/internal/rowstore"
	"creator-outreach/internal/store"
	"creator-outreach/internal/telemetry"
	workerproc "creator-outreach/internal/worker"
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
	limiterClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewSlidingWindow(limiterClient, "", cfg.RateLimit, cfg.RateWindow)

	rows, err := rowstore.Open(ctx, cfg.ContactBackend, cfg.ContactCSVPath, cfg.SpreadsheetID, cfg.GoogleCredentials, logger)
	if err != nil {
		logger.Fatal("open row store", zap.Error(err))
	}
	defer rows.Close()

	model, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Fatal("init gemini", zap.Error(err))
	}

	cache := research.NewCache(cfg.ResearchTTL)
	provider := research.NewProvider(
		research.NewChannelResearcher(model, logger),
		research.NewSiteResearcher(model, logger),
		cache,
		logger,
	)

	registry, err := compose.LoadRegistry(cfg.TemplatePath)
	if err != nil {
		logger.Fatal("load templates", zap.Error(err))
	}
	composer := compose.NewComposer(registry, model)

	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
	if err != nil {
		logger.Fatal("init smtp sender", zap.Error(err))
	}

	arc, err := archive.New(ctx, archive.Config{
		LocalDir: cfg.ArchiveDir,
		S3Bucket: cfg.ArchiveS3Bucket,
		S3Region: cfg.ArchiveS3Region,
	})
	if err != nil {
		logger.Fatal("init archive", zap.Error(err))
	}

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		hostname, _ := os.Hostname()
		if hostname != "" {
			workerID = hostname
		} else {
			workerID = fmt.Sprintf("worker-%d", os.Getpid())
		}
	}

	processor := workerproc.NewProcessor(cfg, q, st, limiter, logger, workerID)
	outreach := workerproc.NewOutreachHandler(rows, provider, composer, sender, arc, cfg.BotName, logger)
	processor.RegisterHandler(models.TypeOutreach, outreach.Handle)
	processor.RegisterHandler(models.TypeSend, workerproc.NewSendHandler(rows, sender, cfg.BotName, logger).Handle)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("worker started",
		zap.Int("workers", cfg.WorkerCount),
		zap.Duration("visibility", cfg.VisibilityTimeout),
		zap.Duration("backoff_initial", cfg.BackoffInitial))
	if err := processor.Run(ctx); err != nil {
		logger.Info("worker stopped", zap.Error(err))
	}
}
