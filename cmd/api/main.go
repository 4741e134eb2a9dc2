package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mindmatch/internal/config"
	"mindmatch/internal/db"
	apihttp "mindmatch/internal/http"
	"mindmatch/internal/llm"
	"mindmatch/internal/match"
	"mindmatch/internal/repository"
	"mindmatch/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
			if cfg.PatternStore != config.PatternStoreRedis {
				redisClient = nil
			}
		}
		cancel()
	}

	var patternStore repository.PatternStore
	switch cfg.PatternStore {
	case config.PatternStoreRedis:
		patternStore = repository.NewRedisPatternStore(redisClient)
	case config.PatternStoreBadger:
		badgerDB, err := repository.OpenBadger(cfg.BadgerPath)
		if err != nil {
			logger.Fatal("badger open", zap.Error(err), zap.String("path", cfg.BadgerPath))
		}
		defer badgerDB.Close()
		patternStore = repository.NewBadgerPatternStore(badgerDB, cfg.PatternStoreRetries)
	case config.PatternStoreMemory:
		logger.Warn("pattern store is in-memory; patterns are lost on restart")
		patternStore = repository.NewMemoryPatternStore()
	default:
		patternStore = repository.NewPgPatternStore(pool, cfg.PatternStoreRetries)
	}
	logger.Info("pattern store ready",
		zap.String("store", cfg.PatternStore),
		zap.Bool("atomic_thoughts", cfg.PatternAtomicThoughts),
	)

	userRepo := repository.NewPgUserRepository(pool)
	thoughtRepo := repository.NewPgThoughtRepository(pool)

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
	classifier := service.NewBreakerClassifier(
		service.NewLLMClassifier(llmClient, logger),
		service.BreakerClassifierConfig{
			Timeout:             cfg.ClassifyTimeout,
			ConsecutiveFailures: cfg.ClassifyBreakerFailures,
			Cooldown:            cfg.ClassifyBreakerCooldown,
		},
		logger,
	)

	var limiter service.ThoughtRateLimiter
	if redisClient != nil {
		limiter = service.NewRedisThoughtRateLimiter(redisClient, cfg.ThoughtRateWindow, cfg.ThoughtRateLimit, logger)
	} else {
		limiter = service.NewThoughtRateLimiter(cfg.ThoughtRateWindow, cfg.ThoughtRateLimit)
	}

	aggregator := service.NewPatternAggregator(patternStore, cfg.PatternAtomicThoughts, logger)
	userSvc := service.NewUserService(logger, userRepo, patternStore)
	thoughtSvc := service.NewThoughtService(logger, userRepo, thoughtRepo, patternStore, classifier, aggregator, limiter, service.ThoughtServiceConfig{
		AcceptUnclassified: cfg.AcceptUnclassified,
	})
	matchSvc := service.NewMatchService(logger, userRepo, match.NewRanker(patternStore), cfg.MatchesDefaultLimit, cfg.MatchesMaxLimit)

	router := apihttp.NewRouter(logger,
		apihttp.NewUserHandler(logger, userSvc),
		apihttp.NewThoughtHandler(logger, thoughtSvc),
		apihttp.NewMatchHandler(logger, matchSvc),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
