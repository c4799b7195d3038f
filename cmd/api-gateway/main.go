package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/winthrop-prehealth/tutor-api/api/swagger"
	"github.com/winthrop-prehealth/tutor-api/internal/handler"
	"github.com/winthrop-prehealth/tutor-api/internal/middleware"
	"github.com/winthrop-prehealth/tutor-api/internal/repository"
	"github.com/winthrop-prehealth/tutor-api/internal/service"
	"github.com/winthrop-prehealth/tutor-api/pkg/cache"
	"github.com/winthrop-prehealth/tutor-api/pkg/config"
	"github.com/winthrop-prehealth/tutor-api/pkg/database"
	"github.com/winthrop-prehealth/tutor-api/pkg/export"
	"github.com/winthrop-prehealth/tutor-api/pkg/jobs"
	"github.com/winthrop-prehealth/tutor-api/pkg/logger"
	"github.com/winthrop-prehealth/tutor-api/pkg/mailer"
	corsmiddleware "github.com/winthrop-prehealth/tutor-api/pkg/middleware/cors"
	reqidmiddleware "github.com/winthrop-prehealth/tutor-api/pkg/middleware/requestid"
	"github.com/winthrop-prehealth/tutor-api/pkg/storage"
)

// @title Winthrop Pre-Health Tutor API
// @version 1.0.0
// @description Administration API for the Winthrop House pre-health tutor program
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	sheetStore, err := storage.NewLocalStorage(cfg.Sheets.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init sheet storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	rtRepo := repository.NewRTRepository(db)
	nrtRepo := repository.NewNRTRepository(db)
	templateRepo := repository.NewEmailTemplateRepository(db)
	emailLogRepo := repository.NewEmailLogRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	csvCodec := export.NewCSVCodec()
	pdfExporter := export.NewPDFExporter()
	sendgrid := mailer.NewSendGrid(cfg.Email.SendgridAPIKey, cfg.Email.FromName, cfg.Email.FromAddress, logr)

	matchSvc := service.NewMatchService(nil, logr)
	assignmentSvc := service.NewAssignmentService(studentRepo, rtRepo, nrtRepo, logr)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	rtSvc := service.NewRTService(rtRepo, studentRepo, nil, logr)
	nrtSvc := service.NewNRTService(nrtRepo, studentRepo, nil, logr)
	statsSvc := service.NewStatsService(studentRepo, nrtRepo, logr)
	suggestionSvc := service.NewSuggestionService(studentRepo, nrtRepo, matchSvc, logr)
	syncSvc := service.NewSheetsSyncService(studentRepo, sheetStore, csvCodec, redisClient, cfg.Sheets.CacheExpiry, logr)
	exportSvc := service.NewExportService(studentRepo, exportStore, csvCodec, pdfExporter, logr)
	emailSvc := service.NewEmailService(templateRepo, emailLogRepo, studentRepo, rtRepo, nrtRepo, sendgrid, nil, logr)
	batchSvc := service.NewBatchWorkflowService(studentRepo, rtRepo, nrtRepo, assignmentSvc, syncSvc, matchSvc, logr)
	authSvc := service.NewAuthService(redisClient, emailSvc, nil, logr, service.AuthConfig{
		JWTSecret:     cfg.Auth.JWTSecret,
		SessionExpiry: cfg.Auth.SessionExpiry,
		CodeExpiry:    cfg.Auth.CodeExpiry,
		CodeLength:    cfg.Auth.CodeLength,
		AdminEmails:   cfg.Auth.AdminEmails,
		Issuer:        "winthrop-prehealth",
	})

	emailQueue := jobs.NewQueue("email", emailSvc.HandleJob, jobs.QueueConfig{
		Workers: cfg.Email.Workers,
		Logger:  logr,
	})
	emailQueue.Start(context.Background())
	defer emailQueue.Stop()
	emailSvc.SetQueue(emailQueue)

	studentRepo.SetMetrics(metricsSvc)
	matchSvc.SetMetrics(metricsSvc)
	syncSvc.SetMetrics(metricsSvc)
	emailSvc.SetMetrics(metricsSvc)
	batchSvc.SetMetrics(metricsSvc)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	rtHandler := handler.NewRTHandler(rtSvc)
	nrtHandler := handler.NewNRTHandler(nrtSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	matchHandler := handler.NewMatchHandler(suggestionSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	syncHandler := handler.NewSyncHandler(syncSvc)
	emailHandler := handler.NewEmailHandler(emailSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := r.Group("/auth")
	{
		auth.POST("/request-code", authHandler.RequestCode)
		auth.POST("/verify", authHandler.VerifyCode)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(authSvc))
	{
		api.GET("/students", studentHandler.List)
		api.POST("/students", studentHandler.Create)
		api.POST("/students/bulk", studentHandler.BulkAdd)
		api.POST("/students/restore", studentHandler.Restore)
		api.GET("/students/:id", studentHandler.Get)
		api.PUT("/students/:id", studentHandler.Update)
		api.DELETE("/students/:id", studentHandler.Delete)
		api.GET("/students/:id/emails", emailHandler.History)

		api.GET("/rts", rtHandler.List)
		api.POST("/rts", rtHandler.Create)
		api.GET("/rts/:id", rtHandler.Get)
		api.PUT("/rts/:id", rtHandler.Update)
		api.DELETE("/rts/:id", rtHandler.Delete)

		api.GET("/nrts", nrtHandler.List)
		api.POST("/nrts", nrtHandler.Create)
		api.POST("/nrts/bulk", nrtHandler.BulkAdd)
		api.GET("/nrts/:id", nrtHandler.Get)
		api.PUT("/nrts/:id", nrtHandler.Update)
		api.PATCH("/nrts/:id/status", nrtHandler.UpdateStatus)
		api.DELETE("/nrts/:id", nrtHandler.Delete)

		api.POST("/assignments/assign-rt", assignmentHandler.AssignRT)
		api.POST("/assignments/assign-nrt", assignmentHandler.AssignNRT)
		api.POST("/assignments/remove-rt", assignmentHandler.RemoveRT)
		api.POST("/assignments/remove-nrt", assignmentHandler.RemoveNRT)

		api.GET("/match/suggestions", matchHandler.Suggestions)

		api.POST("/batch", batchHandler.Start)
		api.GET("/batch/:id", batchHandler.Get)
		api.POST("/batch/:id/confirm", batchHandler.Confirm)
		api.POST("/batch/:id/back", batchHandler.Back)
		api.DELETE("/batch/:id", batchHandler.Abandon)
		api.POST("/batch/:id/commit", batchHandler.Commit)
		api.GET("/batch/:id/board", batchHandler.Board)
		api.GET("/batch/:id/suggestions", batchHandler.Suggestions)
		api.POST("/batch/:id/suggestions/:studentId/accept", batchHandler.AcceptSuggestion)
		api.POST("/batch/:id/suggestions/:studentId/reject", batchHandler.RejectSuggestion)
		api.POST("/batch/:id/move", batchHandler.Move)

		api.GET("/stats", statsHandler.House)

		api.POST("/sync/to-sheets", syncHandler.ToSheets)
		api.POST("/sync/from-sheets", syncHandler.FromSheets)
		api.GET("/sync/status", syncHandler.Status)

		api.GET("/email-templates", emailHandler.ListTemplates)
		api.POST("/email-templates", emailHandler.CreateTemplate)
		api.PUT("/email-templates/:id", emailHandler.UpdateTemplate)
		api.DELETE("/email-templates/:id", emailHandler.DeleteTemplate)
		api.POST("/email/send", emailHandler.Send)

		api.GET("/export/roster", exportHandler.Roster)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
