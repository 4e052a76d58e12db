package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/bardify/api/internal/client"
	"github.com/bardify/api/internal/config"
	"github.com/bardify/api/internal/handler"
	"github.com/bardify/api/internal/middleware"
	"github.com/bardify/api/internal/music"
	"github.com/bardify/api/internal/pipeline"
	"github.com/bardify/api/internal/queue"
	"github.com/bardify/api/internal/service"
	"github.com/bardify/api/internal/store"
	ws "github.com/bardify/api/internal/websocket"
	"github.com/bardify/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize task store (falls back to in-memory when Postgres is absent)
	var taskStore store.TaskStore
	pgStore, err := store.NewPostgresTaskStore(cfg.Postgres.DSN)
	if err != nil {
		log.Printf("Warning: Postgres not available, using in-memory task store: %v", err)
		taskStore = store.NewMemoryTaskStore()
	} else {
		defer pgStore.Close()
		taskStore = pgStore
	}

	// Initialize storage client (optional - continues if not configured)
	var storageClient client.StorageClient
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		s3Client, err := client.NewS3Client(&cfg.Storage)
		if err != nil {
			log.Printf("Warning: storage client not initialized: %v", err)
		} else {
			storageClient = s3Client
		}
	} else {
		log.Println("Warning: object storage not configured, uploads will be rejected")
	}

	// Initialize LLM client
	llmClient := client.NewLLMClient(&cfg.OpenAI)
	if !llmClient.IsConfigured() {
		log.Println("Info: LLM not configured, style translation will fail until OPENAI_API_KEY is set")
	}

	// Task queue
	taskTimeout := time.Duration(cfg.Pipeline.TaskTimeoutMinutes) * time.Minute
	taskQueue := queue.NewAsynqQueue(asynqClient, taskTimeout, cfg.Pipeline.MaxRetry)

	// Pipeline executors
	retry := pipeline.NewRetryPolicy(cfg.Pipeline.LLMMaxAttempts, time.Duration(cfg.Pipeline.LLMRetryBaseMs)*time.Millisecond)
	registry := pipeline.NewRegistry()
	registry.Register(pipeline.NewExtractExecutor(music.StubRecognizer{}))
	registry.Register(pipeline.NewTextExecutor())
	registry.Register(pipeline.NewTranslateExecutor(llmClient, retry, cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap))
	registry.Register(pipeline.NewRenderExecutor(storageClient, music.NewStubSynthesizer()))
	registry.Register(pipeline.NewHarmonyExecutor())
	registry.Register(pipeline.NewFormExecutor())

	runner := pipeline.NewRunner(storageClient, registry, hub)

	// Services and handlers
	taskService := service.NewTaskService(storageClient, taskStore, taskQueue)
	musicHandler := handler.NewMusicHandler(taskService, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":    redisClient.Ping(c.Context()).Err() == nil,
				"postgres": pgStore != nil,
				"storage":  storageClient != nil,
				"llm":      llmClient.IsConfigured(),
			},
		})
	})

	// API routes
	api := app.Group("/api")

	musicGroup := api.Group("/music")
	musicGroup.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), musicHandler.Upload)
	musicGroup.Get("/status/:taskId", musicHandler.Status)
	musicGroup.Get("/result/:taskId", musicHandler.Result)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/tasks/:taskId", websocket.New(func(c *websocket.Conn) {
		taskID := c.Params("taskId")
		hub.HandleConnection(c, taskID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, runner, taskStore, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, runner *pipeline.Runner, taskStore store.TaskStore, hub *ws.Hub) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Pipeline.Concurrency,
			Queues: map[string]int{
				queue.QueuePipeline: 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	pipelineWorker := worker.NewPipelineWorker(runner, taskStore, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypePipeline, pipelineWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
