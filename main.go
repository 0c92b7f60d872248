package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/bellapacxx/bingo-coach/config"
	"github.com/bellapacxx/bingo-coach/controllers"
	"github.com/bellapacxx/bingo-coach/repository"
	"github.com/bellapacxx/bingo-coach/routes"
	"github.com/bellapacxx/bingo-coach/services"
	"github.com/bellapacxx/bingo-coach/utils/logger"
)

// setupRouter initializes Gin routes and middleware
func setupRouter(cfg *config.Config, ctl *controllers.Controller) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Setup REST routes
	routes.SetupRoutes(r, ctl)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// openStore picks the backing store from STORE.
func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.Store == config.StoreMemory {
		logger.Info("[INFO] Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
	db, err := config.SetupDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("✅ Database connected and migrated")
	return repository.NewGormStore(db), nil
}

// openLocker uses redis when REDIS_ADDR is set so several instances can share sessions.
func openLocker(ctx context.Context, cfg *config.Config) (services.Locker, func()) {
	if cfg.RedisAddr == "" {
		return services.NewKeyedMutex(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatalf("[FATAL] Redis ping failed: %v", err)
	}
	logger.Infof("Session locks held in redis at %s", cfg.RedisAddr)
	return services.NewRedisLocker(client), func() { _ = client.Close() }
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("[FATAL] %v", err)
	}
	if l, err := logger.New(cfg.LogLevel); err == nil {
		logger.Log = l
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("[FATAL] %v", err)
	}
	locker, closeLocker := openLocker(ctx, cfg)
	defer closeLocker()

	policy := services.DefaultPolicy()
	policy.GenerationTimeout = cfg.GenerationTimeout
	policy.GameDuration = cfg.GameDuration

	generator := services.NewOpenAIClient(services.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if cfg.OpenAIAPIKey == "" {
		logger.Warnf("OPENAI_API_KEY is not set, the coach will only use fallback lines")
	}

	hub := services.NewHub()
	director := services.NewDirector(store, generator, policy, services.WithRemarkSink(hub))
	sessions := services.NewSessionService(store, policy,
		services.WithLocker(locker),
		services.WithNotifier(director),
	)
	defer sessions.Close()

	ctl := &controllers.Controller{
		Sessions:       sessions,
		Director:       director,
		Rewards:        services.NewRewardEngine(store, generator, policy),
		Users:          services.NewUserService(store),
		Contexts:       services.NewContextAggregator(store, policy),
		Store:          store,
		Hub:            hub,
		AllowedOrigins: cfg.CORSOrigins,
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: setupRouter(cfg, ctl),
	}
	go func() {
		logger.Infof("🚀 Bingo coach server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("[FATAL] Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	director.Wait()
}
