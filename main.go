package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"webchat/handlers"
	"webchat/services"
	"webchat/store"
	"webchat/workflows"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL environment variable is required")
	}

	// Connect to PostgreSQL and bootstrap the schema
	db, err := store.New(dbURL)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL database")

	// Canned responder; swap here for a real generation backend
	responder := services.NewCannedResponder()

	// Initialize workflows
	chatWorkflows := workflows.NewChatWorkflows(db, responder)

	// Initialize DBOS context for durable workflows
	dbosCtx, err := dbos.NewDBOSContext(context.Background(), dbos.Config{
		DatabaseURL: dbURL,
		AppName:     "webchat",
	})
	if err != nil {
		logger.Fatal("failed to initialize DBOS", zap.Error(err))
	}

	// Register workflows with DBOS (MUST be before Launch)
	dbos.RegisterWorkflow(dbosCtx, chatWorkflows.SendMessageWorkflow)

	// Launch DBOS (starts workflow recovery)
	if err := dbos.Launch(dbosCtx); err != nil {
		logger.Fatal("failed to launch DBOS", zap.Error(err))
	}
	defer dbos.Shutdown(dbosCtx, 5*time.Second)
	logger.Info("DBOS initialized, durable workflows enabled")

	// Initialize handlers
	sender := workflows.NewDBOSSender(dbosCtx, chatWorkflows)
	chatHandler := handlers.NewChatHandler(db, sender, logger)

	// Setup Gin router
	router := gin.Default()

	// Tag every request with an id for log correlation
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", uuid.NewString())
		c.Next()
	})

	// Enable CORS for local development
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Chat API: write path and read path share the endpoint
	router.POST("/chat", chatHandler.PostChat)
	router.GET("/chat", chatHandler.GetChat)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "dbos": "enabled"})
	})

	// Serve static files
	router.Static("/static", "./static")
	router.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("starting server", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
