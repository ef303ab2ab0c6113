package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/OfirPatish/Chattrix-sub000/internal/api"
	"github.com/OfirPatish/Chattrix-sub000/internal/auth"
	"github.com/OfirPatish/Chattrix-sub000/internal/blacklist"
	"github.com/OfirPatish/Chattrix-sub000/internal/database"
	"github.com/OfirPatish/Chattrix-sub000/internal/logger"
	"github.com/OfirPatish/Chattrix-sub000/internal/ws"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	if logger.GetAppEnv() == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret == "" {
		log.Fatal("JWT_REFRESH_SECRET environment variable is required")
	}

	// Revoked-token blacklist: redis when configured, in-process otherwise
	var bl blacklist.Store
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisStore, err := blacklist.NewRedis(context.Background(), redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisStore.Close()
		bl = redisStore
		log.Printf("Token blacklist backed by redis at %s", redisAddr)
	} else {
		bl = blacklist.NewMemory()
		log.Println("REDIS_ADDR not set; token blacklist is in-process only")
	}

	tokens := auth.NewService([]byte(jwtSecret), []byte(refreshSecret), bl)

	// Persistence gateway (default to PostgreSQL)
	storeTypeStr := os.Getenv("DB_TYPE")
	if storeTypeStr == "" {
		storeTypeStr = "postgres"
	}
	storeType := database.StoreType(storeTypeStr)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" && storeType == database.PostgreSQL {
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		dbName := os.Getenv("DB_NAME")
		dbUser := os.Getenv("DB_USER")
		dbPass := os.Getenv("DB_PASSWORD")

		if dbHost == "" || dbName == "" || dbUser == "" {
			log.Fatal("Database connection details missing. Set DATABASE_URL or individual DB_* variables")
		}

		dbURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			dbUser, dbPass, dbHost, dbPort, dbName,
		)
	}

	db, err := database.NewStore(storeType, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("Connected to %s store successfully", storeType)

	if !db.SupportsTransactions() {
		log.Println("Store has no transaction support; message writes are sequential")
	}

	// Initialize router with default middleware (logger and recovery)
	router := gin.Default()

	allowedOriginsStr := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsStr == "" {
		allowedOriginsStr = "http://localhost:5173"
	}
	allowedOrigins := strings.Split(allowedOriginsStr, ",")

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authHandler := api.NewAuthHandler(db, tokens)
	userHandler := api.NewUserHandler(db)
	chatHandler := api.NewChatHandler(db)

	hub := ws.NewHub()
	go hub.Run()

	authenticator := ws.NewAuthenticator(tokens, db)
	wsHandler := ws.NewHandler(hub, db, authenticator)

	// Public routes (no authentication required)
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)
	router.POST("/api/auth/refresh", authHandler.Refresh)

	// Socket handshake authenticates through its token query parameter
	router.GET("/ws", wsHandler.HandleWebSocket)

	// Protected routes (authentication required)
	authorized := router.Group("/api")
	authorized.Use(api.AuthMiddleware(tokens))
	{
		authorized.POST("/auth/logout", authHandler.Logout)
		authorized.GET("/auth/me", authHandler.GetMe)

		authorized.GET("/users", userHandler.GetAllUsers)
		authorized.PUT("/users/me", userHandler.UpdateMe)

		authorized.GET("/chats", chatHandler.ListChats)
		authorized.POST("/chats", chatHandler.CreateChat)
		authorized.GET("/chats/:chatID/messages", chatHandler.GetChatMessages)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
