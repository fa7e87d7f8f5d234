package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Julfy0228/WebMessenger/internal/api"
	"github.com/Julfy0228/WebMessenger/internal/auth"
	"github.com/Julfy0228/WebMessenger/internal/config"
	"github.com/Julfy0228/WebMessenger/internal/events"
	"github.com/Julfy0228/WebMessenger/internal/identity"
	"github.com/Julfy0228/WebMessenger/internal/logger"
	"github.com/Julfy0228/WebMessenger/internal/metrics"
	"github.com/Julfy0228/WebMessenger/internal/presence"
	"github.com/Julfy0228/WebMessenger/internal/repository"
	"github.com/Julfy0228/WebMessenger/internal/service"
	"github.com/Julfy0228/WebMessenger/internal/storage"
	"github.com/Julfy0228/WebMessenger/internal/ws"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.Development()})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := repository.Open(cfg.Database.DSN)
	if err != nil {
		zlog.Fatalw("open database", "err", err)
	}
	chatRepo := repository.NewSQLChatRepository(db)
	messageRepo := repository.NewSQLMessageRepository(db)

	validator, err := auth.NewValidator(cfg.JWT.Secret)
	if err != nil {
		zlog.Fatalw("init jwt validator", "err", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			zlog.Fatalw("connect redis", "addr", cfg.Redis.Addr, "err", err)
		}
	}
	presenceStore := presence.NewStore(redisClient, cfg.Redis.Prefix, 24*time.Hour)

	hub := ws.NewHub(zlog)
	broadcaster := events.Broadcaster(hub)

	var journal *events.Journal
	if cfg.Kafka.Enabled {
		journal = events.NewJournal(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		broadcaster = events.Multi(hub, journal)
	}

	var blobs storage.BlobStore
	switch cfg.Storage.Backend {
	case "s3":
		blobs, err = storage.NewS3Store(context.Background(), cfg.Storage.S3Region, cfg.Storage.S3Bucket)
	default:
		blobs, err = storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicURL)
	}
	if err != nil {
		zlog.Fatalw("init blob store", "backend", cfg.Storage.Backend, "err", err)
	}

	chatSvc := service.NewChatService(chatRepo, messageRepo, broadcaster, blobs, zlog)
	messageSvc := service.NewMessageService(chatRepo, messageRepo, broadcaster, blobs, zlog)

	// Identity is an external collaborator; until its push endpoint is
	// wired, responses carry bare user ids.
	users := &identity.StaticDirectory{}

	wsHandler := ws.NewHandler(hub, chatSvc, presenceStore, zlog)
	handlers := api.NewHandlers(chatSvc, messageSvc, users, zlog)
	app := api.NewServer(cfg, handlers, wsHandler, validator, zlog)

	metricsSrv := &http.Server{Addr: ":" + cfg.Server.MetricsPort}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv.Handler = mux
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Errorw("metrics server", "err", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		zlog.Infow("starting messenger", "addr", addr, "env", cfg.AppEnv)
		errChan <- app.Listen(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		zlog.Fatalw("server error", "err", err)
	case sig := <-stop:
		zlog.Infow("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		zlog.Warnw("server shutdown", "err", err)
	}
	_ = metricsSrv.Shutdown(ctx)
	if journal != nil {
		_ = journal.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	zlog.Infow("shutdown complete")
}
