package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slidecast-backend/internal/config"
	"slidecast-backend/internal/database"
	"slidecast-backend/internal/handlers"
	"slidecast-backend/internal/middleware"
	"slidecast-backend/internal/realtime"
	"slidecast-backend/internal/repository"
	"slidecast-backend/internal/router"
	"slidecast-backend/internal/services"
	"slidecast-backend/internal/websocket"
	"slidecast-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Slidecast Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	presentationRepo := repository.NewPresentationRepo(pool)
	slideRepo := repository.NewSlideRepo(pool)
	attendanceRepo := repository.NewAttendanceRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	authService := services.NewAuthService(userRepo, redisClients.Store, jwtAuth, emailService)
	deckService := services.NewDeckService(slideRepo, cfg.StoragePath)

	// ──── Step 5: Start Attendance Worker Pool ────
	attendancePool := worker.NewPool(redisClients.Queue, attendanceRepo, cfg.AttendanceWorkers)
	attendancePool.Start()
	log.Printf("✓ Attendance worker pool started (%d goroutines)", cfg.AttendanceWorkers)

	// ──── Step 6: Wire the Live Coordination Layer ────
	registry := realtime.NewRegistry()
	rooms := realtime.NewRooms()
	gate := realtime.NewGate(cfg.JWTSecret)
	presence := realtime.NewPresence(registry, rooms, presentationRepo, slideRepo, attendancePool)
	controller := realtime.NewController(rooms, presentationRepo, slideRepo)

	sweeper := realtime.NewSweeper(
		registry,
		rooms,
		attendancePool,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.SessionMaxIdleMinutes)*time.Minute,
	)
	sweeper.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(gate, presence, controller, cfg.SendQueueSize)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	presentationHandler := handlers.NewPresentationHandler(presentationRepo, slideRepo, attendanceRepo, deckService, registry)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(jwtAuth, authHandler, presentationHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sweeper.Stop()
		wsHub.Shutdown()
		attendancePool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Slidecast Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
