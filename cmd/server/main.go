package main

import (
	"context"
	"log"
	"os"
	"os/exec"
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

	"github.com/frameshare/api/internal/client"
	"github.com/frameshare/api/internal/config"
	"github.com/frameshare/api/internal/executor"
	"github.com/frameshare/api/internal/handler"
	"github.com/frameshare/api/internal/jobstore"
	"github.com/frameshare/api/internal/media"
	"github.com/frameshare/api/internal/middleware"
	"github.com/frameshare/api/internal/overlay"
	"github.com/frameshare/api/internal/ratelimit"
	"github.com/frameshare/api/internal/service"
	"github.com/frameshare/api/internal/sweeper"
	"github.com/frameshare/api/internal/worker"
	ws "github.com/frameshare/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	for _, dir := range []string{cfg.Storage.MediaDir, cfg.Storage.TransformedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// One reachability probe at startup decides the execution mode for the
	// entire process lifetime.
	queued := executor.Probe(redisClient, time.Duration(cfg.Redis.ProbeTimeoutSec)*time.Second)

	ttl := time.Duration(cfg.Storage.TTLHours) * time.Hour

	// In queued mode job state lives in Redis so separate worker processes
	// share it; in direct mode it stays in this process.
	var store jobstore.Store
	if queued {
		store = jobstore.NewRedisStore(redisClient, ttl)
	} else {
		store = jobstore.NewMemoryStore()
	}

	// Overlay templates
	overlays, err := overlay.Load(cfg.Storage.OverlaysDir)
	if err != nil {
		log.Fatalf("Failed to load overlays: %v", err)
	}

	// Optional artifact mirror (continues without if not configured)
	var storage client.StorageClient
	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		s3Client, err := client.NewS3Client(&cfg.S3)
		if err != nil {
			log.Printf("Warning: S3 client not initialized: %v", err)
		} else {
			storage = s3Client
		}
	} else {
		log.Println("Info: object storage not configured, artifacts stay local")
	}

	// WebSocket hub for progress push
	hub := ws.NewHub()
	go hub.Run()

	// External tool wrappers
	downloader := media.NewDownloader(&cfg.Acquire)
	compositor := media.NewCompositor(&cfg.Transform)

	// Job processor shared by both execution modes
	processor := worker.NewProcessor(store, downloader, compositor, overlays,
		cfg.Storage.MediaDir, cfg.Storage.TransformedDir, cfg.Transform.MaxDimension, hub, storage)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	var backend executor.Backend
	if queued {
		asynqClient := asynq.NewClient(redisOpt)
		defer asynqClient.Close()
		backend = executor.NewAsynqBackend(asynqClient)
		go func() {
			if err := executor.RunWorkers(redisOpt, processor, store, cfg.Worker.Concurrency); err != nil {
				log.Printf("Asynq worker error: %v", err)
			}
		}()
	} else {
		backend = executor.NewDirectBackend(processor, store)
	}
	log.Printf("Execution mode: %s", backend.Mode())

	// Initialize validator
	validate := validator.New()

	// Services
	acquireService := service.NewAcquireService(store, backend, cfg.Storage.MediaDir, cfg.Acquire.AllowedHosts)
	transformService := service.NewTransformService(store, backend, overlays)

	// Handlers
	acquireHandler := handler.NewAcquireHandler(acquireService, validate)
	transformHandler := handler.NewTransformHandler(transformService, validate)

	// Rate limiters, shared through Redis in queued mode
	window := time.Duration(cfg.RateLimit.WindowMin) * time.Minute
	newLimiter := func(prefix string, max int) ratelimit.Limiter {
		if queued {
			return ratelimit.NewRedisSlidingWindow(redisClient, prefix, max, window)
		}
		return ratelimit.NewSlidingWindow(max, window)
	}
	acquireLimit := middleware.RateLimit(newLimiter("acquire", cfg.RateLimit.AcquireMax))
	transformLimit := middleware.RateLimit(newLimiter("transform", cfg.RateLimit.TransformMax))
	uploadLimit := middleware.RateLimit(newLimiter("upload", cfg.RateLimit.UploadMax))

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Acquire.MaxUploadMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{Format: logFormat}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Range",
	}))

	// Tool paths are fixed for the process lifetime, so check them once.
	tools := fiber.Map{
		"ytdlp":   toolAvailable(cfg.Acquire.YtdlpPath),
		"ffmpeg":  toolAvailable(cfg.Transform.FfmpegPath),
		"ffprobe": toolAvailable(cfg.Transform.FfprobePath),
	}

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"mode":     backend.Mode(),
			"overlays": len(overlays.List()),
			"storage":  storage != nil,
			"tools":    tools,
		})
	})

	// API routes. Only job-creating routes are rate limited; polling and
	// artifact retrieval never are.
	api := app.Group("/api")
	api.Post("/acquire", acquireLimit, acquireHandler.Acquire)
	api.Post("/upload", uploadLimit, acquireHandler.Upload)
	api.Get("/acquisition-status/:jobId", acquireHandler.Status)
	api.Get("/artifact/:jobId", acquireHandler.Artifact)
	api.Get("/overlays", transformHandler.Overlays)
	api.Post("/transform", transformLimit, transformHandler.Transform)
	api.Get("/transform-status/:jobId", transformHandler.Status)
	api.Get("/transformed-artifact/:jobId", transformHandler.Artifact)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Expiry sweeper
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sw := sweeper.New(store, storage,
		[]string{cfg.Storage.MediaDir, cfg.Storage.TransformedDir},
		ttl, time.Duration(cfg.Storage.SweepIntervalMin)*time.Minute)
	go sw.Run(sweepCtx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		stopSweeper()
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

func toolAvailable(path string) bool {
	_, err := exec.LookPath(path)
	return err == nil
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
