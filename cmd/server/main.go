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
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/config"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/database"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/handlers"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/jobs"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/llm"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/logging"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/middleware"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/retrieval"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/services"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/tools"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/pkg/auth"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("✅ Loaded environment from .env")
	}
	logging.Init()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Fatal("❌ OPENAI_API_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	if err := db.Initialize(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
	}
	log.Println("✅ Connected to MongoDB")

	retriever, err := retrieval.NewQdrantRetriever(cfg.QdrantAddr, cfg.QdrantCollection)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Qdrant: %v", err)
	}
	log.Printf("✅ Connected to Qdrant (collection %s)", cfg.QdrantCollection)

	llmClient := llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Models.Embedding)

	jwtAuth, err := auth.NewJWTAuth(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to set up auth: %v", err)
	}

	// Services
	userService := services.NewUserService(db)
	conversationService := services.NewConversationService(db)
	memoryService := services.NewMemoryService(db, llmClient, cfg.Models.Memory)
	retrievalService := retrieval.NewService(llmClient, retriever)
	intentService := services.NewIntentService(llmClient, cfg.Models.Classifier)
	dispatcher := tools.NewDispatcher(retrievalService, userService, conversationService)
	orchestrator := services.NewOrchestratorService(
		llmClient, intentService, dispatcher,
		cfg.Models.Chat, float32(cfg.SimilarityThreshold),
	)

	// Background memory sweep
	sweep, err := jobs.NewMemorySweep(conversationService, memoryService)
	if err != nil {
		log.Fatalf("❌ Failed to create memory sweep: %v", err)
	}
	if err := sweep.Start(); err != nil {
		log.Fatalf("❌ Failed to start memory sweep: %v", err)
	}

	// HTTP
	app := fiber.New(fiber.Config{
		AppName:      "healthcare-chatbot",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(fiberlogger.New())

	prometheus := fiberprometheus.New("healthcare-chatbot")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	rateLimits := middleware.LoadRateLimitConfig()
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimits))

	authHandler := handlers.NewAuthHandler(userService, jwtAuth)
	chatHandler := handlers.NewChatHandler(userService, conversationService, memoryService, orchestrator)

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := db.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	users := app.Group("/api/users")
	users.Post("/register", middleware.LoginRateLimiter(rateLimits), authHandler.Register)
	users.Post("/login", middleware.LoginRateLimiter(rateLimits), authHandler.Login)
	users.Get("/me", middleware.RequireAuth(jwtAuth), authHandler.Me)
	users.Put("/questionnaire", middleware.RequireAuth(jwtAuth), authHandler.UpdateQuestionnaire)

	chat := app.Group("/api/chat", middleware.RequireAuth(jwtAuth))
	chat.Get("/", chatHandler.List)
	chat.Get("/check-active", chatHandler.CheckActive)
	chat.Post("/start", chatHandler.Start)
	chat.Get("/:id", chatHandler.Get)
	chat.Post("/:id/message", middleware.MessageRateLimiter(rateLimits), chatHandler.SendMessage)
	chat.Post("/:id/end", chatHandler.End)

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down...")
		if err := sweep.Stop(); err != nil {
			log.Printf("⚠️ Failed to stop memory sweep: %v", err)
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Forced shutdown: %v", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := db.Close(shutdownCtx); err != nil {
			log.Printf("⚠️ Failed to close MongoDB: %v", err)
		}
	}()

	log.Printf("🚀 Server listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server stopped: %v", err)
	}
}
