// Package main runs the quiz HTTP server with the admin activity feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/qwinhub/backend/config"
	"github.com/qwinhub/backend/internal/auth"
	"github.com/qwinhub/backend/internal/contact"
	"github.com/qwinhub/backend/internal/drafts"
	"github.com/qwinhub/backend/internal/emaillogs"
	"github.com/qwinhub/backend/internal/exports"
	"github.com/qwinhub/backend/internal/middleware"
	"github.com/qwinhub/backend/internal/quizzes"
	"github.com/qwinhub/backend/internal/realtime"
	"github.com/qwinhub/backend/internal/submissions"
	"github.com/qwinhub/backend/internal/winners"
	"github.com/qwinhub/backend/internal/worker"
	"github.com/qwinhub/backend/pkg/database"
	"github.com/qwinhub/backend/pkg/queue"
	"github.com/qwinhub/backend/pkg/redis"
	"github.com/qwinhub/backend/pkg/response"
	"github.com/qwinhub/backend/pkg/storage"
	"github.com/qwinhub/backend/pkg/validate"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := validate.Register(); err != nil {
		logger.Fatal("validator", zap.Error(err))
	}

	ctx := context.Background()
	store, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer store.Close()
	db := store.DB

	authRepo := auth.NewRepository(db)
	if err := auth.EnsureAdmin(ctx, authRepo, cfg.Admin.Email, cfg.Admin.Password, logger); err != nil {
		logger.Fatal("admin bootstrap", zap.Error(err))
	}

	// Redis is optional: without it there is no email queue and the activity
	// feed stays local to this instance.
	var (
		jobQueue *queue.Queue
		broker   realtime.Broker
	)
	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable; email queue and cross-instance feed disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, logger)
		broker = realtime.NewRedisPubSub(rdb.Client, logger)
	}

	var exportStore exports.ObjectStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			exportStore = s3Client
		}
	}

	metrics := middleware.NewMetrics()
	hub := realtime.NewHub(broker, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	quizRepo := quizzes.NewRepository(db)
	responseRepo := submissions.NewRepository(db)
	winnerRepo := winners.NewRepository(db)
	draftRepo := drafts.NewRepository(db)
	emailLogRepo := emaillogs.NewRepository(db)

	quizService := quizzes.NewService(quizRepo, draftRepo, responseRepo, winnerRepo, hub, cfg.App.BaseURL, logger)
	guard := submissions.NewGuard(quizRepo, responseRepo, metrics, hub, logger)

	var mailer quizzes.Enqueuer
	if jobQueue != nil {
		mailer = jobQueue
	}

	authHandler := auth.NewHandler(authRepo, jwtService, strings.HasPrefix(cfg.App.BaseURL, "https://"), logger)
	quizHandler := quizzes.NewHandler(quizService, quizRepo, winnerRepo, mailer, logger)
	submissionHandler := submissions.NewHandler(guard, logger)
	draftHandler := drafts.NewHandler(draftRepo, logger)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo, logger)
	exportHandler := exports.NewHandler(quizRepo, responseRepo, exportStore, logger)
	contactHandler := contact.NewHandler(mailer, cfg.Admin.SupportEmail, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(metrics.Middleware())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Websocket connections are long-lived, so the feed sits outside the request timeout.
	router.GET("/admin/ws", realtime.ServeWs(hub, jwtService, splitOrigins(cfg.Server.CORSAllowedOrigins), logger))

	api := router.Group("", middleware.Timeout(time.Duration(cfg.Server.RequestTimeout)*time.Second))

	public := api.Group("", middleware.DetectAdmin(jwtService))
	{
		public.GET("/quizzes", quizHandler.List)
		public.GET("/quizzes/:slug", quizHandler.Get)
		public.POST("/quizzes/:slug/responses", submissionHandler.Submit)
		public.POST("/contact", contactHandler.Submit)
	}

	authGroup := api.Group("/admin/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/check", authHandler.Check)
	}

	admin := api.Group("/admin", middleware.RequireAdmin(jwtService))
	{
		admin.GET("/stats", quizHandler.Stats)

		admin.GET("/quizzes", quizHandler.AdminList)
		admin.POST("/quizzes", quizHandler.Create)
		admin.GET("/quizzes/:slug", quizHandler.AdminGet)
		admin.PATCH("/quizzes/:slug", quizHandler.Update)
		admin.DELETE("/quizzes/:slug", quizHandler.Delete)
		admin.GET("/quizzes/:slug/results", quizHandler.Results)
		admin.POST("/quizzes/:slug/share", quizHandler.Share)
		admin.POST("/quizzes/:slug/export", exportHandler.Export)

		admin.GET("/drafts", draftHandler.List)
		admin.POST("/drafts", draftHandler.Save)
		admin.DELETE("/drafts/:type", draftHandler.Delete)
		admin.GET("/drafts/:type/preview", quizHandler.PreviewDraft)

		admin.GET("/emails", emailLogHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go func() {
		if err := hub.Run(bgCtx); err != nil {
			logger.Error("activity feed subscription", zap.Error(err))
		}
	}()
	go recordPoolStats(bgCtx, store, metrics)

	// Set WINNER_SWEEP_IN_SERVER=false when cmd/worker runs the sweep.
	if cfg.Worker.SchedulerInServer {
		sched := worker.NewWinnerScheduler(worker.SchedulerDeps{
			Quizzes:   quizRepo,
			Responses: responseRepo,
			Winners:   winnerRepo,
			Renderer:  quizService,
			Drafts:    draftRepo,
			Mailer:    schedulerMailer(jobQueue),
			Publisher: hub,
			Notify:    cfg.Admin.NotifyEmails,
		}, time.Duration(cfg.Worker.WinnerSweepSeconds)*time.Second, logger)
		go sched.Run(bgCtx)
		logger.Info("winner scheduler started", zap.Int("interval_sec", cfg.Worker.WinnerSweepSeconds))
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("db_driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func schedulerMailer(q *queue.Queue) worker.Mailer {
	if q == nil {
		return nil
	}
	return q
}

func recordPoolStats(ctx context.Context, store *database.Store, metrics *middleware.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.RecordDBPoolStats(store.PoolStats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
