package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digitalhuman/internal/ai"
	"digitalhuman/internal/api"
	"digitalhuman/internal/config"
	"digitalhuman/internal/db"
	"digitalhuman/internal/metrics"
	"digitalhuman/internal/repository"
	"digitalhuman/internal/speech"
	"digitalhuman/internal/storage"
	"digitalhuman/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	tokens, closeStore := initTokenCache(cfg, logger)
	defer closeStore()

	var tokenSource speech.TokenSource
	var inspector api.TokenInspector
	if tokens != nil {
		tokenSource = tokens
		inspector = tokens
		if tokens.Token(ctx) == "" {
			logger.Warn("could not obtain a Baidu access token at startup, will retry on first request")
		}
	}

	provider, err := speech.CreateProvider(cfg.Speech.Provider, speech.BaiduConfig{
		ASRURL:  cfg.Speech.ASRURL,
		TTSURL:  cfg.Speech.TTSURL,
		CUID:    cfg.Speech.CUID,
		DevPID:  cfg.Speech.DevPID,
		Timeout: cfg.Speech.Timeout,
	}, tokenSource, logger)
	if err != nil {
		logger.Fatal("failed to create speech provider", zap.Error(err))
	}

	chat, err := ai.NewClient(ai.Config{
		APIKey:      cfg.DeepSeek.APIKey,
		BaseURL:     cfg.DeepSeek.BaseURL,
		Model:       cfg.DeepSeek.Model,
		MaxTokens:   cfg.DeepSeek.MaxTokens,
		Temperature: float32(cfg.DeepSeek.Temperature),
		TopP:        float32(cfg.DeepSeek.TopP),
		Timeout:     cfg.DeepSeek.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create DeepSeek client", zap.Error(err))
	}

	repo, closeDB := initRepository(ctx, cfg.Database, logger)
	defer closeDB()

	collector := metrics.NewCollector("digitalhuman", logger)

	handler := api.NewHandler(chat, provider, inspector, repo, collector, api.Options{
		VoiceID:            cfg.TTS.VoiceID,
		SpeedOffset:        cfg.TTS.SpeedOffset,
		PitchOffset:        cfg.TTS.PitchOffset,
		VolumeOffset:       cfg.TTS.VolumeOffset,
		MaxUploadBytes:     cfg.HTTP.MaxUploadBytes,
		RateLimitRPS:       cfg.HTTP.RateLimitRPS,
		RateLimitBurst:     cfg.HTTP.RateLimitBurst,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		BaiduAppID:         cfg.Speech.AppID,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("digital human backend running",
			zap.String("addr", srv.Addr),
			zap.String("speech_provider", provider.Name()),
			zap.String("model", chat.Model()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// initTokenCache returns nil when no Baidu credentials are configured
func initTokenCache(cfg *config.Config, logger *zap.Logger) (*token.Cache, func()) {
	if !cfg.Speech.HasCredentials() {
		logger.Warn("BAIDU_API_KEY or BAIDU_SECRET_KEY not set, speech runs without vendor access")
		return nil, func() {}
	}

	var store token.Store
	closeStore := func() {}

	switch cfg.Token.Store {
	case config.TokenStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = token.NewRedisStore(client, cfg.Token.RedisKey)
		closeStore = func() { client.Close() }
		logger.Info("using redis token store", zap.String("addr", cfg.Redis.Addr), zap.String("key", cfg.Token.RedisKey))
	default:
		store = token.NewFileStore(cfg.Token.CacheFile)
		logger.Info("using file token store", zap.String("path", cfg.Token.CacheFile))
	}

	cache := token.NewCache(token.Config{
		APIKey:    cfg.Speech.APIKey,
		SecretKey: cfg.Speech.SecretKey,
		Endpoint:  cfg.Speech.TokenURL,
	}, store, logger)
	return cache, closeStore
}

// initRepository falls back to in-memory history when the database is
// missing or unreachable
func initRepository(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repository.InteractionRepository, func()) {
	if cfg.URL == "" {
		logger.Info("DATABASE_URL not set, keeping interaction history in memory")
		return storage.NewMemoryRepository(storage.DefaultCapacity), func() {}
	}

	conn, err := db.Open(ctx, cfg.URL, logger)
	if err != nil {
		logger.Warn("failed to connect to database, continuing with in-memory history", zap.Error(err))
		return storage.NewMemoryRepository(storage.DefaultCapacity), func() {}
	}
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Warn("failed to migrate database, continuing with in-memory history", zap.Error(err))
		conn.Close()
		return storage.NewMemoryRepository(storage.DefaultCapacity), func() {}
	}

	return repository.NewPostgresRepository(conn), func() { conn.Close() }
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
