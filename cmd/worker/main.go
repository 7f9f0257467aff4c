// Package main runs the background worker: email delivery and the winner sweep.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/qwinhub/backend/config"
	"github.com/qwinhub/backend/internal/drafts"
	"github.com/qwinhub/backend/internal/emaillogs"
	"github.com/qwinhub/backend/internal/middleware"
	"github.com/qwinhub/backend/internal/quizzes"
	"github.com/qwinhub/backend/internal/realtime"
	"github.com/qwinhub/backend/internal/submissions"
	"github.com/qwinhub/backend/internal/winners"
	"github.com/qwinhub/backend/internal/worker"
	"github.com/qwinhub/backend/pkg/database"
	"github.com/qwinhub/backend/pkg/queue"
	"github.com/qwinhub/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	store, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer store.Close()
	db := store.DB

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	metrics := middleware.NewMetrics()
	jobQueue := queue.NewQueue(rdb.Client, logger)
	hub := realtime.NewHub(realtime.NewRedisPubSub(rdb.Client, logger), logger)

	var sender worker.Sender = worker.NewLogSender(logger)
	if smtpSender := worker.NewSMTPSender(cfg.Email); smtpSender != nil {
		sender = smtpSender
	} else {
		logger.Warn("SMTP_HOST not set; emails are logged, not sent")
	}
	processor := worker.NewEmailProcessor(jobQueue, emaillogs.NewRepository(db), sender, metrics, logger)

	quizRepo := quizzes.NewRepository(db)
	responseRepo := submissions.NewRepository(db)
	winnerRepo := winners.NewRepository(db)
	draftRepo := drafts.NewRepository(db)
	quizService := quizzes.NewService(quizRepo, draftRepo, responseRepo, winnerRepo, hub, cfg.App.BaseURL, logger)
	sched := worker.NewWinnerScheduler(worker.SchedulerDeps{
		Quizzes:   quizRepo,
		Responses: responseRepo,
		Winners:   winnerRepo,
		Renderer:  quizService,
		Drafts:    draftRepo,
		Mailer:    jobQueue,
		Publisher: hub,
		Notify:    cfg.Admin.NotifyEmails,
	}, time.Duration(cfg.Worker.WinnerSweepSeconds)*time.Second, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	if !cfg.Worker.SchedulerInServer {
		go sched.Run(workerCtx)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: ":" + cfg.Worker.MetricsPort, Handler: mux, ReadTimeout: 10 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("worker started", zap.Bool("winner_sweep", !cfg.Worker.SchedulerInServer), zap.String("metrics_port", cfg.Worker.MetricsPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
