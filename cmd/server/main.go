package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"mnemo/internal/config"
	"mnemo/internal/database"
	"mnemo/internal/embedding"
	"mnemo/internal/handlers"
	"mnemo/internal/jobs"
	"mnemo/internal/logging"
	"mnemo/internal/middleware"
	"mnemo/internal/services"
	"mnemo/internal/store"
	"mnemo/internal/workers"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Mnemo Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// Connect database and apply schema
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	st := store.New(db)

	// Redis is optional; without it maintenance jobs run unguarded, which is
	// fine for single-instance deployments.
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, maintenance locks disabled: %v", err)
			redisService = nil
		} else {
			defer redisService.Close()
		}
	}

	// Metrics
	metrics := services.InitMetrics()

	// Services
	memoryService := services.NewMemoryService(st, services.DefaultCleanupConfig(), metrics)
	conversationService := services.NewConversationService(st)
	auditService := services.NewAuditService(st)
	sessionService := services.NewSessionService(st, metrics)
	patternService := services.NewPatternService(st)
	monitorService := services.NewMonitorService(st, metrics)

	// Embedding provider: real endpoint when configured, deterministic mock
	// otherwise so the pipeline still runs end to end in local setups.
	var provider embedding.Provider
	if cfg.EmbeddingBaseURL != "" {
		provider = embedding.NewOpenAIProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey,
			cfg.EmbeddingModel, cfg.EmbeddingRPS, cfg.EmbedTimeout)
		log.Printf("🧠 Embedding provider: %s (model %s)", cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	} else {
		provider = embedding.NewMockProvider(8)
		log.Println("⚠️  EMBEDDING_BASE_URL not set, using deterministic mock provider")
	}

	// Worker pool
	pool := workers.NewPool(st, provider, metrics, workers.PoolConfig{
		Workers:      cfg.Workers,
		PollInterval: cfg.PollInterval,
		EmbedTimeout: cfg.EmbedTimeout,
		ModelHint:    cfg.EmbeddingModel,
	})
	poolCtx, poolCancel := context.WithCancel(context.Background())
	pool.Start(poolCtx)

	// Maintenance scheduler
	scheduler, err := jobs.NewScheduler(redisService)
	if err != nil {
		log.Fatalf("❌ Failed to create scheduler: %v", err)
	}
	mustRegister(scheduler, jobs.NewMemoryCleanupJob(st, memoryService, cfg.CleanupInterval))
	mustRegister(scheduler, jobs.NewSessionCleanupJob(sessionService, cfg.CleanupInterval))
	mustRegister(scheduler, jobs.NewStaleLockSweepJob(st, metrics, cfg.SweepInterval, cfg.StaleLockTimeout))
	scheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Mnemo v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
		BodyLimit:    4 * 1024 * 1024, // 4MB is plenty for messages and payloads
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("mnemo")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Handlers
	healthHandler := handlers.NewHealthHandler(st)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	memoryHandler := handlers.NewMemoryHandler(memoryService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	patternHandler := handlers.NewPatternHandler(patternService)
	auditHandler := handlers.NewAuditHandler(auditService)
	queueHandler := handlers.NewQueueHandler(monitorService)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api/v1", middleware.TenantMiddleware())

	api.Post("/conversations", conversationHandler.Create)
	api.Get("/conversations", conversationHandler.List)
	api.Get("/conversations/:id", conversationHandler.Get)
	api.Delete("/conversations/:id", conversationHandler.Delete)
	api.Post("/conversations/:id/messages", conversationHandler.AddMessage)
	api.Get("/conversations/:id/messages", conversationHandler.Messages)

	api.Post("/memories", memoryHandler.Record)
	api.Get("/memories", memoryHandler.List)
	api.Post("/memories/cleanup", memoryHandler.Cleanup)
	api.Get("/memories/:id", memoryHandler.Get)
	api.Post("/memories/:id/touch", memoryHandler.Touch)
	api.Post("/memories/:id/correct", memoryHandler.Correct)
	api.Get("/memories/:id/history", memoryHandler.History)

	api.Put("/sessions/:type/:key", sessionHandler.Put)
	api.Get("/sessions/:type/:key", sessionHandler.Get)
	api.Delete("/sessions/:type/:key", sessionHandler.Delete)

	api.Post("/patterns", patternHandler.Record)
	api.Get("/patterns", patternHandler.List)
	api.Get("/patterns/lookup", patternHandler.Lookup)
	api.Post("/patterns/:id/outcome", patternHandler.ReportOutcome)

	api.Post("/audit", auditHandler.Record)
	api.Get("/audit", auditHandler.List)
	api.Post("/audit/:id/complete", auditHandler.Complete)
	api.Post("/audit/:id/fail", auditHandler.Fail)

	api.Get("/queue/status", queueHandler.Status)
	api.Get("/queue/dead", queueHandler.Dead)
	api.Post("/queue/dead/:id/requeue", queueHandler.Requeue)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop maintenance jobs
		scheduler.Stop()

		// Stop workers, waiting for in-flight jobs
		poolCancel()
		pool.Stop()

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func mustRegister(s *jobs.Scheduler, job jobs.Job) {
	if err := s.Register(job); err != nil {
		log.Fatalf("❌ Failed to register job: %v", err)
	}
}
