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

	"github.com/quizvideo/api/internal/client"
	"github.com/quizvideo/api/internal/config"
	"github.com/quizvideo/api/internal/handler"
	"github.com/quizvideo/api/internal/queue"
	ws "github.com/quizvideo/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	remotionClient := client.NewRemotionClient(&cfg.Remotion)
	telegramClient := client.NewTelegramClient(&cfg.Telegram)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm up the sidecar's headless browser before accepting renders
	if err := remotionClient.EnsureBrowser(ctx); err != nil {
		log.Printf("Warning: browser warmup failed: %v", err)
	}

	serveURL := cfg.Remotion.ServeURL
	if serveURL == "" {
		log.Println("Bundling Remotion project...")
		serveURL, err = remotionClient.Bundle(ctx)
		if err != nil {
			log.Fatalf("Failed to bundle Remotion project: %v", err)
		}
		log.Println("Remotion project bundled.")
	}

	// Initialize the render queue and start its single worker
	renderQueue := queue.New(remotionClient, telegramClient, hub, queue.Options{
		ServeURL:      serveURL,
		CompositionID: cfg.Remotion.CompositionID,
		Codec:         cfg.Remotion.Codec,
	})
	go renderQueue.Run(ctx)

	// Initialize handlers
	renderHandler := handler.NewRenderHandler(renderQueue, validate)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"remotion": remotionClient.IsConfigured(),
				"telegram": telegramClient.IsConfigured(),
			},
		})
	})

	// Render routes
	app.Post("/renders", renderHandler.Create)
	app.Get("/renders", renderHandler.List)
	app.Get("/renders/:jobId", renderHandler.Get)
	app.Delete("/renders/:jobId", renderHandler.Cancel)

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

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		cancel()
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
