package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/notify"
	"github.com/yeremiapane/restaurant-pos/router"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/templates"
	"github.com/yeremiapane/restaurant-pos/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found")
	}

	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	backend := services.NewBackendService(cfg.APIURL, cfg.UpstreamTimeout)
	store, closeStore := sessionStore(cfg)
	defer closeStore()
	auth := services.NewAuthService(backend, store)

	tmpl, err := templates.Parse()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to parse templates: %v", err)
	}

	r := router.SetupRouter(cfg, auth, notify.NewCenter(), tmpl)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s, upstream %s", cfg.Port, cfg.APIURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	utils.InfoLogger.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Printf("Shutdown: %v", err)
	}
}

// sessionStore uses Redis when REDIS_ADDR is set so several instances share
// the validated sessions, and an in-process map otherwise.
func sessionStore(cfg config.Config) (services.SessionStore, func()) {
	if cfg.RedisAddr == "" {
		return services.NewMemorySessionStore(cfg.SessionTTL), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		utils.ErrorLogger.Printf("Redis at %s unreachable (%v), using in-memory sessions", cfg.RedisAddr, err)
		_ = rdb.Close()
		return services.NewMemorySessionStore(cfg.SessionTTL), func() {}
	}
	utils.InfoLogger.Printf("Sessions stored in Redis at %s", cfg.RedisAddr)
	return services.NewRedisSessionStore(rdb, cfg.SessionTTL), func() { _ = rdb.Close() }
}
