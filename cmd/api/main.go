package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"talent-matcher/internal/config"
	"talent-matcher/internal/handlers"
	"talent-matcher/internal/repositories"
	"talent-matcher/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	matchRepo := repositories.NewMatchRepository(db)
	resumeRepo := repositories.NewResumeRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize services
	storageService := services.NewStorageService(cfg.Storage.UploadPath)
	if err := storageService.EnsureUploadDir(); err != nil {
		log.Fatalf("❌ Failed to create upload directory: %v", err)
	}

	pdfParser := services.NewPDFParserService()
	log.Println("✅ Services initialized successfully")

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}
	log.Println("✅ Gemini AI initialized successfully")

	embeddingService := services.NewEmbeddingService(
		geminiService,
		cfg.Embedding.SparseURL,
		cfg.Embedding.Timeout,
	)

	// Initialize Qdrant talent pool
	vectorStore, err := services.NewQdrantStore(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	if err := vectorStore.EnsureCollection(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant collection: %v", err)
	}
	log.Println("✅ Qdrant initialized successfully")

	// Initialize agents
	rater := services.NewGeminiRater(geminiService, 3)
	schemaAgent := services.NewGeminiSchemaAgent(geminiService, 3)

	// Initialize matching engine
	matcher := services.NewMatcherService(
		jobRepo,
		matchRepo,
		embeddingService,
		vectorStore,
		rater,
		cfg.Matcher,
	)
	log.Println("✅ Matching engine initialized")

	// Initialize resume ingestion
	ingestService := services.NewIngestService(resumeRepo, pdfParser, embeddingService, vectorStore)

	// Initialize auth
	authService := services.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userRepo)
	jobHandler := handlers.NewJobHandler(jobRepo, schemaAgent)
	matchHandler := handlers.NewMatchHandler(jobRepo, matcher)
	resumeHandler := handlers.NewResumeHandler(storageService, ingestService, cfg.Storage.MaxFileSize)
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Talent Matcher API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize),
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// Public endpoints
	api.Post("/register", authHandler.HandleRegister)
	api.Post("/login", authHandler.HandleLogin)

	// Authenticated endpoints
	authed := api.Group("", handlers.RequireAuth(authService))
	authed.Get("/profile", authHandler.HandleProfile)
	authed.Post("/resumes", resumeHandler.HandleUpload)
	authed.Post("/jobs", jobHandler.HandleCreateJob)
	authed.Get("/jobs", jobHandler.HandleListJobs)
	authed.Put("/jobs/:id", jobHandler.HandleEditJob)
	authed.Post("/jobs/:id/matches", matchHandler.HandleComputeMatches)
	authed.Get("/jobs/:id/matches", matchHandler.HandleGetMatches)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Talent Matcher API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/register",
				"POST /api/v1/login",
				"GET /api/v1/profile",
				"POST /api/v1/resumes",
				"POST /api/v1/jobs",
				"GET /api/v1/jobs",
				"PUT /api/v1/jobs/:id",
				"POST /api/v1/jobs/:id/matches",
				"GET /api/v1/jobs/:id/matches",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
