package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/pubdesk-api/api/swagger"
	"github.com/noah-isme/pubdesk-api/internal/handler"
	"github.com/noah-isme/pubdesk-api/internal/middleware"
	"github.com/noah-isme/pubdesk-api/internal/models"
	"github.com/noah-isme/pubdesk-api/internal/repository"
	"github.com/noah-isme/pubdesk-api/internal/service"
	"github.com/noah-isme/pubdesk-api/pkg/cache"
	"github.com/noah-isme/pubdesk-api/pkg/config"
	"github.com/noah-isme/pubdesk-api/pkg/database"
	"github.com/noah-isme/pubdesk-api/pkg/export"
	"github.com/noah-isme/pubdesk-api/pkg/jobs"
	"github.com/noah-isme/pubdesk-api/pkg/logger"
	"github.com/noah-isme/pubdesk-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/pubdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/pubdesk-api/pkg/middleware/requestid"
	"github.com/noah-isme/pubdesk-api/pkg/paygate"
	"github.com/noah-isme/pubdesk-api/pkg/storage"
)

// @title PubDesk API
// @version 1.0.0
// @description Academic publication management platform
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Warnw("redis unavailable, caching and change feed disabled", "error", err)
		redisClient = nil
	}

	documentStore, err := storage.NewDocumentStore(cfg.Storage.DocumentsDir)
	if err != nil {
		sugar.Fatalw("failed to prepare document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	mailClient := mailer.New(cfg.Mail)
	gateway := paygate.New(cfg.Payments)

	userRepo := repository.NewUserRepository(db)
	publicationRepo := repository.NewPublicationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	securityLogRepo := repository.NewSecurityLogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	mailQueue := jobs.NewQueue("mail", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			return fmt.Errorf("unexpected mail payload %T", job.Payload)
		}
		return mailClient.Send(ctx, msg)
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.MailWorkers,
		MaxRetries: cfg.Jobs.MailRetries,
		Logger:     logr,
	})

	metricsService := service.NewMetricsService(mailQueue.Depth)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "pubdesk-api",
		Audience:           []string{"pubdesk"},
	})

	publicationService := service.NewPublicationService(
		publicationRepo,
		paymentRepo,
		userRepo,
		userRepo,
		documentStore,
		signer,
		mailQueue,
		cacheRepo,
		nil,
		logr,
		service.PublicationConfig{
			Fee:              cfg.Payments.DefaultFee,
			Currency:         cfg.Payments.Currency,
			AbstractMaxWords: cfg.Submissions.AbstractMaxWords,
			MaxKeywords:      cfg.Submissions.MaxKeywords,
			MaxFileSize:      cfg.Storage.MaxFileSize,
			AllowedMIMEs:     cfg.Storage.AllowedMIMEs,
			LinkBasePath:     cfg.APIPrefix,
		},
	)
	publicationService.SetMetrics(metricsService)

	paymentService := service.NewPaymentService(
		paymentRepo,
		notificationRepo,
		userRepo,
		gateway,
		mailQueue,
		cacheRepo,
		nil,
		logr,
		service.PaymentPollConfig{
			MaxAttempts: cfg.Payments.PollMaxAttempts,
			BaseDelay:   cfg.Payments.PollBaseDelay,
		},
		cfg.Payments.Currency,
	)

	reconcileQueue := jobs.NewQueue("payment_reconcile", func(ctx context.Context, job jobs.Job) error {
		id, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected reconcile payload %T", job.Payload)
		}
		return paymentService.Reconcile(ctx, id)
	}, jobs.QueueConfig{
		Workers: cfg.Jobs.ReconcileWorkers,
		Logger:  logr,
	})
	paymentService.SetReconcileQueue(reconcileQueue)
	paymentService.SetMetrics(metricsService)

	notificationService := service.NewNotificationService(notificationRepo, securityLogRepo, userRepo, mailClient, nil, logr)
	userService := service.NewUserService(userRepo, nil, logr)
	reviewerService := service.NewReviewerService(userRepo, logr)
	dashboardService := service.NewDashboardService(publicationRepo, paymentRepo, notificationRepo, cacheRepo, logr, cfg.Dashboard.CacheTTL)
	exportService := service.NewExportService(publicationRepo, paymentRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	publicationHandler := handler.NewPublicationHandler(publicationService, exportService)
	paymentHandler := handler.NewPaymentHandler(paymentService, exportService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	reviewerHandler := handler.NewReviewerHandler(reviewerService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	emailHandler := handler.NewEmailHandler(notificationService)
	eventsHandler := handler.NewEventsHandler(cacheRepo)
	metricsHandler := handler.NewMetricsHandler(metricsService, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	publications := api.Group("/publications")
	publications.GET("", middleware.OptionalJWT(authService), publicationHandler.List)
	publications.GET("/statuses", publicationHandler.Statuses)
	publications.GET("/download", publicationHandler.Download)
	publications.GET("/export",
		middleware.JWT(authService),
		middleware.RequireRoles(models.RoleAdmin),
		publicationHandler.ExportCSV)
	publications.GET("/:id", middleware.OptionalJWT(authService), publicationHandler.Get)
	publications.GET("/:id/download-url", middleware.OptionalJWT(authService), publicationHandler.DownloadURL)
	publications.POST("",
		middleware.JWT(authService),
		middleware.RequireCapability(models.AuditActionSubmissionCreate),
		publicationHandler.Submit)
	publications.POST("/:id/forward",
		middleware.JWT(authService),
		middleware.RequireCapability(models.AuditActionReviewForward),
		publicationHandler.Forward)
	publications.POST("/:id/decision",
		middleware.JWT(authService),
		middleware.RequireCapability(models.AuditActionReviewDecision),
		publicationHandler.Decide)
	publications.POST("/:id/finalize",
		middleware.JWT(authService),
		middleware.RequireCapability(models.AuditActionPublicationFinal),
		publicationHandler.Finalize)
	publications.DELETE("/:id",
		middleware.JWT(authService),
		middleware.RequireCapability(models.AuditActionPublicationDelete),
		publicationHandler.Delete)

	payments := api.Group("/payments", middleware.JWT(authService))
	payments.GET("", paymentHandler.List)
	payments.GET("/:id", paymentHandler.Get)
	payments.GET("/:id/receipt", paymentHandler.Receipt)
	payments.POST("/manual",
		middleware.RequireCapability(models.AuditActionPaymentCreate),
		middleware.Audit(userRepo, models.AuditActionPaymentCreate, "payments"),
		paymentHandler.RecordManual)
	payments.POST("/:id/reconcile",
		middleware.RequireCapability(models.AuditActionPaymentReconcile),
		middleware.Audit(userRepo, models.AuditActionPaymentReconcile, "payments"),
		paymentHandler.Reconcile)

	notifications := api.Group("/notifications", middleware.JWT(authService))
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.PATCH("/:id/read", notificationHandler.MarkRead)

	api.GET("/reviewers",
		middleware.JWT(authService),
		middleware.RequireRoles(models.RoleAdmin),
		reviewerHandler.Pool)

	dashboard := api.Group("/dashboard", middleware.JWT(authService))
	dashboard.GET("/author", dashboardHandler.Author)
	dashboard.GET("/reviewer", middleware.RequireRoles(models.RoleReviewer, models.RoleAdmin), dashboardHandler.Reviewer)
	dashboard.GET("/admin", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.Admin)

	api.POST("/emails",
		middleware.JWT(authService),
		middleware.RequireRoles(models.RoleAdmin),
		emailHandler.Send)
	security := api.Group("/security", middleware.JWT(authService))
	security.POST("/alert", emailHandler.SecurityAlert)
	security.GET("/logs", middleware.RequireRoles(models.RoleAdmin), emailHandler.SecurityLogs)

	api.GET("/events/stream", middleware.JWT(authService), eventsHandler.Stream)

	users := api.Group("/users", middleware.JWT(authService))
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
	users.POST("",
		middleware.RequireRoles(models.RoleAdmin),
		middleware.Audit(userRepo, models.AuditActionUserCreate, "users"),
		userHandler.Create)
	users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
	users.DELETE("/:id",
		middleware.RequireRoles(models.RoleAdmin),
		middleware.Audit(userRepo, models.AuditActionUserDelete, "users"),
		userHandler.Delete)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailQueue.Start(ctx)
	defer mailQueue.Stop()
	reconcileQueue.Start(ctx)
	defer reconcileQueue.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
}
