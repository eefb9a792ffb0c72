package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yapper/campaign/internal/client"
	"github.com/yapper/campaign/internal/config"
	"github.com/yapper/campaign/internal/gateway"
	"github.com/yapper/campaign/internal/stream"
	"github.com/yapper/campaign/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Remote API client
	yapper := client.New(&cfg.API)

	// Check the remote API early so a bad base URL is visible at startup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := yapper.Health(ctx); err != nil {
		log.Printf("Warning: Yapper API not reachable at %s: %v", cfg.API.BaseURL, err)
	}
	cancel()

	// Status stream supervisor
	supervisor := stream.NewSupervisor(
		yapper,
		time.Duration(cfg.Stream.BackoffSeconds)*time.Second,
		cfg.Stream.MaxRetries,
	)

	// WebSocket hub
	hub := gateway.NewHub()
	go hub.Run()

	// Campaign orchestrator
	orc := workflow.New(context.Background(), yapper, supervisor, hub)

	// Validator
	validate := validator.New()

	// HTTP gateway
	handler := gateway.NewCampaignHandler(orc, yapper, validate, cfg.Extract)
	app := gateway.NewServer(handler, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Campaign gateway starting on %s (Yapper API at %s)", addr, cfg.API.BaseURL)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
