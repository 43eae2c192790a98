package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"product-pulse/config"
	"product-pulse/llm"
	"product-pulse/middleware"
	"product-pulse/models"
	"product-pulse/providers"
	"product-pulse/providers/producthunt"
	"product-pulse/providers/rss"
	"product-pulse/services"
	"product-pulse/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	storiesIngestedCounter    prometheus.Counter
	storiesProcessedCounter   prometheus.Counter
	processingFailuresCounter prometheus.Counter
	editionsPublishedCounter  prometheus.Counter
	submissionsCounter        prometheus.Counter
)

func init() {
	storiesIngestedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_stories_ingested_total",
		Help: "Total number of new stories ingested from all sources.",
	})
	storiesProcessedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_stories_processed_total",
		Help: "Total number of stories processed into REVIEW.",
	})
	processingFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_processing_failures_total",
		Help: "Total number of failed story processing attempts.",
	})
	editionsPublishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_editions_published_total",
		Help: "Total number of published editions.",
	})
	submissionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulse_challenge_submissions_total",
		Help: "Total number of challenge submissions.",
	})
	prometheus.MustRegister(
		storiesIngestedCounter,
		storiesProcessedCounter,
		processingFailuresCounter,
		editionsPublishedCounter,
		submissionsCounter,
	)
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, origin := range cfg.CORSOrigins {
		allowed[strings.TrimSpace(origin)] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to pulse database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Story{},
		&models.Challenge{},
		&models.Edition{},
		&models.User{},
		&models.StoryRead{},
		&models.ChallengeSubmission{},
	)

	// Setup Providers
	enabledSourceNames := strings.Split(cfg.EnabledSources, ",")
	var enabledProviders []providers.Provider
	for _, name := range enabledSourceNames {
		switch strings.TrimSpace(name) {
		case "producthunt":
			enabledProviders = append(enabledProviders, producthunt.NewFetcher(cfg, logging))
		case "rss":
			for _, feed := range cfg.ParseRSSFeeds() {
				enabledProviders = append(enabledProviders, rss.NewFetcher(feed.URL, feed.Name, logging))
			}
		default:
			logging.Warn("Unknown source in config", zap.String("source_name", name))
		}
	}
	if len(enabledProviders) == 0 {
		logging.Fatal("No valid sources enabled. Check ENABLED_SOURCES in .env")
	}
	logging.Info("Active sources loaded", zap.Strings("sources", enabledSourceNames))

	// Setup Services
	ingestService := services.NewIngestService(cfg, db, nil, logging, enabledProviders)
	if cfg.S3Enabled() {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		ingestService.S3Client = s3Client
	}

	llmClient, err := llm.NewOpenAIClient(cfg, logging)
	if err != nil {
		logging.Fatal("OpenAI client creation failed", zap.Error(err))
	}
	processingService := services.NewProcessingService(db, llmClient, logging)
	editionService := services.NewEditionService(db, logging)
	progressService := services.NewProgressService(db, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg))

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "up"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupEditionRoutes(router, editionService, cfg, logging)
	setupStoryRoutes(router, editionService, progressService, cfg, logging)
	setupChallengeRoutes(router, progressService, cfg, logging)
	setupDashboardRoutes(router, progressService, cfg, logging)
	setupAdminRoutes(router, ingestService, processingService, editionService, cfg, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled ingest job...")
		results := ingestService.RunAll(context.Background())
		total := 0
		for source, result := range results {
			total += result.Ingested
			logging.Info("Source ingest completed",
				zap.String("source", source),
				zap.Int("ingested", result.Ingested),
				zap.Int("skipped", result.Skipped),
				zap.Int("errors", len(result.Errors)))
		}
		storiesIngestedCounter.Add(float64(total))

		logging.Info("Running scheduled processing job...")
		drafts := processingService.ProcessAllDrafts(context.Background())
		for _, d := range drafts {
			if d.Error == "" {
				storiesProcessedCounter.Inc()
			} else {
				processingFailuresCounter.Inc()
			}
		}
		logging.Info("Cron job completed", zap.Int("new_stories", total), zap.Int("drafts_processed", len(drafts)))
	})
	if cfg.PublishCronSchedule != "" {
		cronScheduler.AddFunc(cfg.PublishCronSchedule, func() {
			date := editionService.TodayUTC()
			if _, err := editionService.Publish(date); err != nil {
				if errors.Is(err, services.ErrEditionNotFound) {
					logging.Warn("Auto-publish skipped, no edition assembled for today",
						zap.Time("date", date))
					return
				}
				logging.Error("Auto-publish failed", zap.Error(err))
				return
			}
			editionsPublishedCounter.Inc()
			logging.Info("Auto-publish completed", zap.Time("date", date))
		})
	}
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	// Graceful Shutdown: laufende Requests fertig bedienen, Cron stoppen
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutting down server...")

	cronCtx := cronScheduler.Stop()
	<-cronCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logging.Info("Server exited.")
}

func setupEditionRoutes(router *gin.Engine, editions *services.EditionService, cfg *config.Config, log *zap.Logger) {
	// GET /api/edition/today?limit=&cursor=: öffentlich, mit optionalem
	// User-Overlay für eingeloggte Clients
	router.GET("/api/edition/today", middleware.OptionalAuth(cfg.JWTSecret), func(c *gin.Context) {
		type todayQuery struct {
			Limit  int  `form:"limit,default=2" binding:"omitempty,min=1,max=20"`
			Cursor uint `form:"cursor" binding:"omitempty"`
		}
		var q todayQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
			return
		}
		if q.Limit <= 0 {
			q.Limit = 2
		}

		result, err := editions.Today(middleware.UserID(c), q.Limit, q.Cursor)
		if err != nil {
			log.Error("Today edition query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	// GET /api/archive?page=&pageSize=
	router.GET("/api/archive", func(c *gin.Context) {
		type archiveQuery struct {
			Page     int `form:"page,default=1" binding:"omitempty,min=1"`
			PageSize int `form:"pageSize,default=10" binding:"omitempty,min=1,max=50"`
		}
		var q archiveQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
			return
		}
		if q.Page <= 0 {
			q.Page = 1
		}
		if q.PageSize <= 0 {
			q.PageSize = 10
		}

		result, err := editions.Archive(q.Page, q.PageSize)
		if err != nil {
			log.Error("Archive query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func setupStoryRoutes(router *gin.Engine, editions *services.EditionService, progress *services.ProgressService, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api/stories")

	rg.GET("/:id", middleware.OptionalAuth(cfg.JWTSecret), func(c *gin.Context) {
		storyID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid story id"})
			return
		}

		detail, err := editions.Story(uint(storyID), middleware.UserID(c))
		if err != nil {
			if errors.Is(err, services.ErrStoryNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Story not found"})
				return
			}
			log.Error("Story query failed", zap.Uint64("story_id", storyID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, detail)
	})

	rg.POST("/:id/read", middleware.RequireAuth(cfg.JWTSecret), func(c *gin.Context) {
		storyID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid story id"})
			return
		}

		var body struct {
			DurationSec *int `json:"durationSec"`
		}
		// Body ist optional; Bind-Fehler nur bei kaputtem JSON
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		result, err := progress.MarkStoryRead(middleware.UserID(c), uint(storyID), body.DurationSec)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrStoryNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Story not found"})
			case errors.Is(err, services.ErrUserNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			default:
				log.Error("Mark story read failed", zap.Uint64("story_id", storyID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			}
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func setupChallengeRoutes(router *gin.Engine, progress *services.ProgressService, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api/challenges")
	rg.Use(middleware.RequireAuth(cfg.JWTSecret))

	rg.POST("/:id/submit", func(c *gin.Context) {
		challengeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id"})
			return
		}

		var body struct {
			SelectedOption string `json:"selectedOption" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "selectedOption is required"})
			return
		}

		result, err := progress.SubmitChallenge(middleware.UserID(c), uint(challengeID), body.SelectedOption)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrInvalidOption):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, services.ErrChallengeNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Challenge not found"})
			case errors.Is(err, services.ErrUserNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			default:
				log.Error("Challenge submission failed", zap.Uint64("challenge_id", challengeID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			}
			return
		}
		if !result.AlreadySubmitted {
			submissionsCounter.Inc()
		}
		c.JSON(http.StatusOK, result)
	})
}

func setupDashboardRoutes(router *gin.Engine, progress *services.ProgressService, cfg *config.Config, log *zap.Logger) {
	router.GET("/api/dashboard", middleware.RequireAuth(cfg.JWTSecret), func(c *gin.Context) {
		dashboard, err := progress.GetDashboard(middleware.UserID(c))
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			log.Error("Dashboard query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, dashboard)
	})
}

func setupAdminRoutes(router *gin.Engine, ingest *services.IngestService, processing *services.ProcessingService, editions *services.EditionService, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api/admin")
	rg.Use(middleware.RequireAuth(cfg.JWTSecret), middleware.RequireAdmin())

	// POST /api/admin/ingest: eine einzelne Quelle einlesen
	rg.POST("/ingest", func(c *gin.Context) {
		var body struct {
			Source string `json:"source" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source is required"})
			return
		}

		var provider providers.Provider
		for _, p := range ingest.Providers {
			if p.Name() == body.Source {
				provider = p
				break
			}
		}
		if provider == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source: " + body.Source})
			return
		}

		result, err := ingest.Run(c.Request.Context(), provider)
		if err != nil {
			log.Error("Manual ingest failed", zap.String("source", body.Source), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
			return
		}
		storiesIngestedCounter.Add(float64(result.Ingested))
		c.JSON(http.StatusOK, result)
	})

	// POST /api/admin/ingest-all: alle aktiven Quellen einlesen
	rg.POST("/ingest-all", func(c *gin.Context) {
		results := ingest.RunAll(c.Request.Context())
		total := 0
		for _, result := range results {
			total += result.Ingested
		}
		storiesIngestedCounter.Add(float64(total))
		c.JSON(http.StatusOK, gin.H{"results": results, "total_ingested": total})
	})

	// POST /api/admin/process/:storyId: einen DRAFT verarbeiten
	rg.POST("/process/:storyId", func(c *gin.Context) {
		storyID, err := strconv.ParseUint(c.Param("storyId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid story id"})
			return
		}

		result, err := processing.ProcessStory(c.Request.Context(), uint(storyID))
		if err != nil {
			switch {
			case errors.Is(err, services.ErrStoryNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Story not found"})
			case errors.Is(err, services.ErrStoryNotDraft):
				c.JSON(http.StatusConflict, gin.H{"error": "Story is not in DRAFT status"})
			default:
				processingFailuresCounter.Inc()
				log.Error("Story processing failed", zap.Uint64("story_id", storyID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		storiesProcessedCounter.Inc()
		c.JSON(http.StatusOK, result)
	})

	// POST /api/admin/process-all: Batch über alle wartenden DRAFTs
	rg.POST("/process-all", func(c *gin.Context) {
		results := processing.ProcessAllDrafts(c.Request.Context())
		succeeded := 0
		for _, r := range results {
			if r.Error == "" {
				succeeded++
				storiesProcessedCounter.Inc()
			} else {
				processingFailuresCounter.Inc()
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"results":   results,
			"processed": succeeded,
			"failed":    len(results) - succeeded,
		})
	})

	// POST /api/admin/edition/assemble: Stories einer Edition zuordnen
	rg.POST("/edition/assemble", func(c *gin.Context) {
		var body struct {
			Date        string `json:"date"`
			StoryIDs    []uint `json:"storyIds" binding:"required,min=1"`
			ChallengeID *uint  `json:"challengeId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storyIds is required"})
			return
		}

		date := editions.TodayUTC()
		if body.Date != "" {
			parsed, err := time.Parse("2006-01-02", body.Date)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			date = parsed.UTC()
		}

		edition, err := editions.Assemble(date, body.StoryIDs, body.ChallengeID)
		if err != nil {
			log.Error("Edition assembly failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "assembly failed"})
			return
		}
		c.JSON(http.StatusOK, edition)
	})

	// POST /api/admin/edition/publish: REVIEW-Inhalte freischalten
	rg.POST("/edition/publish", func(c *gin.Context) {
		var body struct {
			Date string `json:"date"`
		}
		// Body optional, default heute
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		date := editions.TodayUTC()
		if body.Date != "" {
			parsed, err := time.Parse("2006-01-02", body.Date)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			date = parsed.UTC()
		}

		result, err := editions.Publish(date)
		if err != nil {
			if errors.Is(err, services.ErrEditionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "No edition assembled for this date"})
				return
			}
			log.Error("Edition publish failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
			return
		}
		editionsPublishedCounter.Inc()
		c.JSON(http.StatusOK, result)
	})
}
