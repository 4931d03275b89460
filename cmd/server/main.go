package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/teeroy47/murimi/internal/audit"
	"github.com/teeroy47/murimi/internal/auth"
	"github.com/teeroy47/murimi/internal/config"
	"github.com/teeroy47/murimi/internal/db"
	"github.com/teeroy47/murimi/internal/farms"
	"github.com/teeroy47/murimi/internal/middleware"
	"github.com/teeroy47/murimi/internal/repository"
	syncengine "github.com/teeroy47/murimi/internal/sync"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, conn.Pool, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	registry := repository.NewRegistry(conn.Pool)
	mutationLog := repository.NewMutationLogRepository(conn.Pool)
	cursors := repository.NewChangeCursorRepository(conn.Pool)
	devices := repository.NewDeviceRepository(conn.Pool)
	farmRepo := repository.NewFarmRepository(conn.Pool)
	auditRepo := repository.NewAuditRepository(conn.Pool)

	// Create the sync engine
	service := syncengine.NewService(
		conn,
		registry,
		mutationLog,
		cursors,
		devices,
		farmRepo,
		auth.ContextChecker{},
		audit.NewSink(auditRepo, nil),
		cfg.PullPageSize,
	)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Mount("/sync", auth.Middleware(syncengine.NewHTTPHandler(service)))
	router.Mount("/farms", farms.NewHTTPHandler(farmRepo))

	handler := corsHandler.Handler(middleware.LoggingMiddleware(router))

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting sync server on %s", cfg.ListenAddr)
		log.Printf("Sync endpoints available under %s/sync", cfg.ListenAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
