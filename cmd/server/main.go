package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rooms-songpig/songpig-rooms-sub000/internal/auth"
	"github.com/rooms-songpig/songpig-rooms-sub000/internal/comparison"
	"github.com/rooms-songpig/songpig-rooms-sub000/internal/room"
	"github.com/rooms-songpig/songpig-rooms-sub000/internal/song"
	"github.com/rooms-songpig/songpig-rooms-sub000/internal/ws"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/events"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/logger"
	redisstore "github.com/rooms-songpig/songpig-rooms-sub000/pkg/redis"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		// Fine in containerized deployments where env comes from the runtime.
	}

	env := os.Getenv("ENV")
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(env, os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		log.Fatal("JWT_SECRET must be set")
	}

	// Initialize MySQL database
	db, err := database.NewMySQL(
		os.Getenv("MYSQL_HOST"),
		os.Getenv("MYSQL_PORT"),
		os.Getenv("MYSQL_USER"),
		os.Getenv("MYSQL_PASSWORD"),
		os.Getenv("MYSQL_DATABASE"),
	)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     os.Getenv("REDIS_HOST") + ":" + os.Getenv("REDIS_PORT"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	// Initialize Kafka client
	kafkaClient := events.NewKafkaClient(
		strings.Split(os.Getenv("KAFKA_BROKERS"), ","),
		"songpig-room-events",
		os.Getenv("KAFKA_GROUP_ID"),
	)
	defer kafkaClient.Close()

	// Initialize object storage for audio uploads
	var storageService *storage.Service
	if endpoint := os.Getenv("STORAGE_ENDPOINT"); endpoint != "" {
		storageService, err = storage.Connect(
			endpoint,
			os.Getenv("STORAGE_ACCESS_KEY"),
			os.Getenv("STORAGE_SECRET_KEY"),
			getEnvDefault("STORAGE_BUCKET", "songpig-audio"),
			os.Getenv("STORAGE_PUBLIC_URL"),
			os.Getenv("STORAGE_USE_SSL") == "true",
			log,
		)
		if err != nil {
			log.Fatal("failed to initialize storage", zap.Error(err))
		}
	} else {
		log.Warn("STORAGE_ENDPOINT not set, uploads disabled")
	}

	// Seed the default admin account before taking traffic.
	if err := auth.SeedAdmin(db, getEnvDefault("ADMIN_USERNAME", "admin"), os.Getenv("ADMIN_PASSWORD"), log); err != nil {
		log.Fatal("failed to seed admin account", zap.Error(err))
	}

	// Initialize services
	sessionStore := redisstore.NewSessionStore(redisClient)
	roomCache := redisstore.NewRoomCache(redisClient)

	authService := auth.NewService(db, sessionStore, secret, log)
	roomService := room.NewService(db, roomCache, kafkaClient, log, lookupRetryConfig())
	songService := song.NewService(db, roomService, storageService, kafkaClient, log)
	comparisonService := comparison.NewService(db, roomService, kafkaClient, log)

	// Initialize handlers
	authHandler := auth.NewHandler(authService, log)
	roomHandler := room.NewHandler(roomService, log)
	songHandler := song.NewHandler(songService, log)
	comparisonHandler := comparison.NewHandler(comparisonService, log)
	wsHandler := ws.NewHandler(kafkaClient, log)

	// Fan room events out to websocket clients.
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go func() {
		if err := wsHandler.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event consumer stopped", zap.Error(err))
		}
	}()

	// Initialize Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(getEnvDefault("CORS_ORIGINS", "http://localhost:5173"), ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// Public routes
	authHandler.RegisterRoutes(v1)

	// Guest-reachable reads: invite-code lookup and room views run behind
	// optional auth so logged-in users keep their owner visibility.
	public := v1.Group("/")
	public.Use(auth.OptionalAuth(secret, sessionStore))
	{
		roomHandler.RegisterPublicRoutes(public)
		comparisonHandler.RegisterPublicRoutes(public)
	}

	// Protected routes
	protected := v1.Group("/")
	protected.Use(auth.RequireAuth(secret, sessionStore))
	{
		authHandler.RegisterProtectedRoutes(protected)
		roomHandler.RegisterRoutes(protected)
		songHandler.RegisterRoutes(protected)
		comparisonHandler.RegisterRoutes(protected)

		// WebSocket endpoint
		protected.GET("/ws/:roomId", wsHandler.HandleWebSocket)
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info("server starting", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lookupRetryConfig reads the read-after-write retry tuning from the
// environment, falling back to the defaults.
func lookupRetryConfig() room.RetryConfig {
	cfg := room.DefaultRetryConfig()
	if v := os.Getenv("LOOKUP_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Attempts = n
		}
	}
	if v := os.Getenv("LOOKUP_RETRY_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BaseDelay = time.Duration(n) * time.Millisecond
		}
	}
	return cfg
}
