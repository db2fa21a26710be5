package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-notify-nosql/internal/application/notification"
	"github.com/go-notify-nosql/internal/application/notifier"
	"github.com/go-notify-nosql/internal/application/realtime"
	"github.com/go-notify-nosql/internal/config"
	badgerinfra "github.com/go-notify-nosql/internal/infrastructure/badger"
	"github.com/go-notify-nosql/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-notify-nosql/internal/infrastructure/jwt"
	"github.com/go-notify-nosql/internal/infrastructure/kv"
	redisinfra "github.com/go-notify-nosql/internal/infrastructure/redis"
	snsinfra "github.com/go-notify-nosql/internal/infrastructure/sns"
	transporthttp "github.com/go-notify-nosql/internal/transport/http"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("backend", cfg.KVBackend), zap.Error(err))
	}
	defer store.close()
	logger.Info("store ready", zap.String("backend", cfg.KVBackend))

	// JWT provider (optional outside production: the router then trusts X-User-ID).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else if cfg.IsProduction() {
		logger.Fatal("JWT provider required in production", zap.Error(err))
	} else {
		logger.Warn("JWT provider not available, using X-User-ID dev auth", zap.Error(err))
	}

	// SNS offline fan-out (optional).
	var offline notifier.OfflinePublisher
	if cfg.SNSTopicARN != "" {
		client, err := snsinfra.NewClient(ctx, cfg)
		if err != nil {
			logger.Warn("SNS publisher not available", zap.Error(err))
		} else {
			offline = snsinfra.NewPublisher(client, cfg.SNSTopicARN, logger)
		}
	}

	repo := kv.NewNotificationRepo(store.Store, cfg.PendingEventsMax)
	notifSvc := notification.NewService(repo)
	rooms := realtime.NewManager(repo, logger)

	deps := &transporthttp.Deps{
		Notifications: notifSvc,
		Rooms:         rooms,
		Notifier:      notifier.New(notifSvc, rooms, offline, logger),
		JWTProvider:   jwtProvider,
		Ready:         store.ready,
		Logger:        logger,
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// openedStore is the selected backend plus its health check and teardown.
type openedStore struct {
	kv.Store
	ready func(ctx context.Context) error
	close func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*openedStore, error) {
	switch cfg.KVBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; notifications are lost on restart")
		return &openedStore{Store: kv.NewMemory(), close: func() {}}, nil

	case config.BackendRedis:
		client, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		s := redisinfra.NewStore(client)
		return &openedStore{Store: s, ready: s.Ping, close: func() { _ = client.Close() }}, nil

	case config.BackendDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTableKV, logger)
		return &openedStore{Store: dynamo.NewKVStore(client, cfg.DynamoTableKV), close: func() {}}, nil

	case config.BackendBadger:
		db, err := badgerinfra.Open(cfg.BadgerPath, logger)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: badgerinfra.NewStore(db), close: func() {
			if err := db.Close(); err != nil {
				logger.Error("close badger", zap.Error(err))
			}
		}}, nil
	}
	return nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
}
