package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"charforge/config"
	"charforge/handlers"
	"charforge/services"
	"charforge/store"
	"charforge/tools"
	"charforge/workflows"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping database")
	}
	logger.Info().Msg("connected to PostgreSQL")

	dataStore := store.New(db)

	gateway := services.NewGateway(services.GatewayConfig{
		BaseURL:        cfg.Model.BaseURL,
		APIKey:         cfg.Model.APIKey,
		Model:          cfg.Model.Name,
		EmbeddingModel: cfg.Model.EmbeddingModel,
		Temperature:    cfg.Model.Temperature,
		RequestTimeout: cfg.Model.RequestTimeout,
		TokenBudget:    cfg.Model.TokenBudget,
	}, logger)

	search := services.NewSearch(gateway, dataStore)
	notifier := services.NewDiscordNotifier(cfg.Discord.WebhookURL)
	executor := tools.NewExecutor(dataStore, search, notifier, logger)
	gate := workflows.NewConfirmationGate(cfg.Turn.ConfirmationTTL)
	orchestrator := workflows.NewOrchestrator(dataStore, gateway, executor, gate, cfg.Turn.MaxIterations, logger)
	conversationWorkflows := workflows.NewConversationWorkflows(dataStore)

	// DBOS backs the multi-write conversation setup with durable steps.
	dbosCtx, err := dbos.NewDBOSContext(context.Background(), dbos.Config{
		DatabaseURL: cfg.Database.URL,
		AppName:     "charforge",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize DBOS")
	}

	dbos.RegisterWorkflow(dbosCtx, conversationWorkflows.CreateConversationWorkflow)

	if err := dbos.Launch(dbosCtx); err != nil {
		logger.Fatal().Err(err).Msg("failed to launch DBOS")
	}
	defer dbos.Shutdown(dbosCtx, 5*time.Second)
	logger.Info().Msg("DBOS initialized, durable workflows enabled")

	chatHandler := handlers.NewChatHandler(dataStore, orchestrator, dbosCtx, conversationWorkflows, logger)
	characterHandler := handlers.NewCharacterHandler(dataStore, logger)

	router := gin.Default()

	// CORS for local frontend development.
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Email")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := router.Group("/api", handlers.Auth(dataStore, logger))
	{
		api.POST("/conversations", chatHandler.CreateConversation)
		api.GET("/conversations", chatHandler.ListConversations)
		api.GET("/conversations/:id/messages", chatHandler.GetMessages)
		api.POST("/conversations/:id/messages", chatHandler.SendMessage)
		api.POST("/conversations/:id/confirm", chatHandler.Confirm)

		api.GET("/tools", chatHandler.ListTools)

		api.POST("/characters", characterHandler.CreateCharacter)
		api.GET("/characters", characterHandler.ListCharacters)
		api.GET("/characters/:id", characterHandler.GetCharacter)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	logger.Info().Str("port", cfg.HTTP.Port).Msg("starting server")
	if err := router.Run(":" + cfg.HTTP.Port); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
