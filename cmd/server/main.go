package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sheet-importer/internal/api"
	"github.com/ignite/sheet-importer/internal/config"
	"github.com/ignite/sheet-importer/internal/mapping"
	"github.com/ignite/sheet-importer/internal/pkg/distlock"
	"github.com/ignite/sheet-importer/internal/pkg/logger"
	"github.com/ignite/sheet-importer/internal/repository/postgres"
	"github.com/ignite/sheet-importer/internal/service/importer"
	"github.com/ignite/sheet-importer/internal/service/template"
	"github.com/ignite/sheet-importer/internal/storage"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch cfg.Logging.Level {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	}
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pingCancel()

	if err := postgres.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Redis is optional; without it session locks fall back to PG advisory
	// locks.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, using PG advisory locks", "error", err.Error())
			redisClient = nil
		}
		pingCancel()
	}

	var files importer.ObjectStore
	if cfg.Storage.S3Bucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(),
			cfg.Storage.S3Bucket, cfg.Storage.S3Region, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		files = s3Store
	} else {
		localStore, err := storage.NewLocalStore(cfg.Storage.LocalDir)
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		files = localStore
		logger.Warn("no S3 bucket configured, staged files go to local disk",
			"dir", cfg.Storage.LocalDir)
	}

	catalog := mapping.DefaultCatalog()
	templateSvc := template.NewService(postgres.NewTemplateRepo(db), catalog)
	importSvc := importer.NewService(
		postgres.NewSessionRepo(db),
		templateSvc,
		postgres.NewContactRepo(db),
		files,
		catalog,
		func(key string, ttl time.Duration) distlock.DistLock {
			return distlock.NewLock(redisClient, db, key, ttl)
		},
	)
	importSvc.Tune(cfg.Import.MaxFileSizeMB, cfg.Import.PreviewRowCap, cfg.Import.ErrorSampleCap)

	handlers := api.NewHandlers(importSvc, templateSvc, catalog, api.NewOrgContextProvider())
	server := api.NewServer(cfg.Server, handlers)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	db.Close()
	log.Println("Server stopped")
}
