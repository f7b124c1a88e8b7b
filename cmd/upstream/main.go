// Command upstream runs the reference REST API and notification hub the back
// office proxies to.
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
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/upstream"
	"github.com/yeremiapane/restaurant-pos/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found")
	}

	cfg := config.LoadUpstream()
	utils.InitLogger(cfg.LogLevel)
	if os.Getenv("GIN_MODE") == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := upstream.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := upstream.SeedAdmin(db, cfg.SeedEmail, cfg.SeedUsername, cfg.SeedPassword); err != nil {
		utils.ErrorLogger.Fatalf("Failed to seed admin: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           upstream.NewServer(db, cfg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Upstream listening on port %s (%s)", cfg.Port, cfg.DBDriver)
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
