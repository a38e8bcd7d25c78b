package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the server. Values come from defaults,
// then the YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	Port     string         `yaml:"port"`
	GinMode  string         `yaml:"gin_mode"`
	Log      LogConfig      `yaml:"log"`
	DeepSeek DeepSeekConfig `yaml:"deepseek"`
	Speech   SpeechConfig   `yaml:"speech"`
	Token    TokenConfig    `yaml:"token"`
	Redis    RedisConfig    `yaml:"redis"`
	TTS      TTSConfig      `yaml:"tts"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DeepSeekConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SpeechConfig configures the Baidu speech vendor
type SpeechConfig struct {
	Provider  string        `yaml:"provider"`
	AppID     string        `yaml:"app_id"`
	APIKey    string        `yaml:"api_key"`
	SecretKey string        `yaml:"secret_key"`
	TokenURL  string        `yaml:"token_url"`
	ASRURL    string        `yaml:"asr_url"`
	TTSURL    string        `yaml:"tts_url"`
	CUID      string        `yaml:"cuid"`
	DevPID    int           `yaml:"dev_pid"`
	Timeout   time.Duration `yaml:"timeout"`
}

// HasCredentials reports whether both vendor keys are set
func (s SpeechConfig) HasCredentials() bool {
	return s.APIKey != "" && s.SecretKey != ""
}

// TokenConfig selects where the vendor access token is persisted
type TokenConfig struct {
	Store     string `yaml:"store"`
	CacheFile string `yaml:"cache_file"`
	RedisKey  string `yaml:"redis_key"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TTSConfig holds the voice persona and the offsets added to the
// frontend's speed, pitch and volume before clamping
type TTSConfig struct {
	VoiceID      int `yaml:"voice_id"`
	SpeedOffset  int `yaml:"speed_offset"`
	PitchOffset  int `yaml:"pitch_offset"`
	VolumeOffset int `yaml:"volume_offset"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HTTPConfig struct {
	MaxUploadBytes     int64    `yaml:"max_upload_bytes"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// Token store kinds
const (
	TokenStoreFile  = "file"
	TokenStoreRedis = "redis"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:    "8000",
		GinMode: "release",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		DeepSeek: DeepSeekConfig{
			BaseURL:     "https://api.deepseek.com/v1",
			Model:       "deepseek-chat",
			MaxTokens:   2000,
			Temperature: 0.7,
			TopP:        0.9,
			Timeout:     25 * time.Second,
		},
		Speech: SpeechConfig{
			TokenURL: "https://aip.baidubce.com/oauth/2.0/token",
			ASRURL:   "https://vop.baidu.com/server_api",
			TTSURL:   "https://tsn.baidu.com/text2audio",
			CUID:     "tuxuyan_digital_human",
			DevPID:   1537,
			Timeout:  30 * time.Second,
		},
		Token: TokenConfig{
			Store:     TokenStoreFile,
			CacheFile: "baidu_token_cache.json",
			RedisKey:  "digitalhuman:baidu:access_token",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		TTS: TTSConfig{
			VoiceID:     4115,
			SpeedOffset: 1,
			PitchOffset: 1,
		},
		HTTP: HTTPConfig{
			MaxUploadBytes:     10 << 20,
			RateLimitRPS:       5,
			RateLimitBurst:     10,
			CORSAllowedOrigins: []string{"*"},
		},
	}
}

// Load loads configuration from defaults, the optional YAML file and
// environment variables, in that order
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and value ranges
func (c *Config) Validate() error {
	if c.DeepSeek.APIKey == "" {
		return fmt.Errorf("DEEPSEEK_API_KEY is required. Please set it as environment variable:\n  Linux/Mac: export DEEPSEEK_API_KEY=\"your_key\"\n  Windows PowerShell: $env:DEEPSEEK_API_KEY=\"your_key\"\n\nOr put it in .env or in the file named by CONFIG_FILE")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.GinMode)
	}
	switch c.Token.Store {
	case TokenStoreFile, TokenStoreRedis:
	default:
		return fmt.Errorf("TOKEN_STORE must be %q or %q, got %q", TokenStoreFile, TokenStoreRedis, c.Token.Store)
	}
	switch strings.ToLower(c.Speech.Provider) {
	case "", "baidu", "mock":
	default:
		return fmt.Errorf("unsupported SPEECH_PROVIDER: %s. Supported: baidu, mock", c.Speech.Provider)
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	e := &envReader{}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.DeepSeek.APIKey = getEnv("DEEPSEEK_API_KEY", cfg.DeepSeek.APIKey)
	cfg.DeepSeek.BaseURL = getEnv("DEEPSEEK_BASE_URL", cfg.DeepSeek.BaseURL)
	cfg.DeepSeek.Model = getEnv("DEEPSEEK_MODEL", cfg.DeepSeek.Model)
	e.int("DEEPSEEK_MAX_TOKENS", &cfg.DeepSeek.MaxTokens)
	e.float("DEEPSEEK_TEMPERATURE", &cfg.DeepSeek.Temperature)
	e.float("DEEPSEEK_TOP_P", &cfg.DeepSeek.TopP)
	e.duration("DEEPSEEK_TIMEOUT", &cfg.DeepSeek.Timeout)

	cfg.Speech.Provider = getEnv("SPEECH_PROVIDER", cfg.Speech.Provider)
	cfg.Speech.AppID = getEnv("BAIDU_APP_ID", cfg.Speech.AppID)
	cfg.Speech.APIKey = getEnv("BAIDU_API_KEY", cfg.Speech.APIKey)
	cfg.Speech.SecretKey = getEnv("BAIDU_SECRET_KEY", cfg.Speech.SecretKey)
	cfg.Speech.TokenURL = getEnv("BAIDU_TOKEN_URL", cfg.Speech.TokenURL)
	cfg.Speech.ASRURL = getEnv("BAIDU_ASR_URL", cfg.Speech.ASRURL)
	cfg.Speech.TTSURL = getEnv("BAIDU_TTS_URL", cfg.Speech.TTSURL)
	cfg.Speech.CUID = getEnv("BAIDU_CUID", cfg.Speech.CUID)
	e.int("BAIDU_DEV_PID", &cfg.Speech.DevPID)
	e.duration("SPEECH_TIMEOUT", &cfg.Speech.Timeout)

	cfg.Token.Store = strings.ToLower(getEnv("TOKEN_STORE", cfg.Token.Store))
	cfg.Token.CacheFile = getEnv("TOKEN_CACHE_FILE", cfg.Token.CacheFile)
	cfg.Token.RedisKey = getEnv("TOKEN_REDIS_KEY", cfg.Token.RedisKey)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	e.int("REDIS_DB", &cfg.Redis.DB)

	e.int("TTS_VOICE_ID", &cfg.TTS.VoiceID)
	e.int("TTS_SPEED_OFFSET", &cfg.TTS.SpeedOffset)
	e.int("TTS_PITCH_OFFSET", &cfg.TTS.PitchOffset)
	e.int("TTS_VOLUME_OFFSET", &cfg.TTS.VolumeOffset)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)

	e.int64("MAX_UPLOAD_BYTES", &cfg.HTTP.MaxUploadBytes)
	e.float("RATE_LIMIT_RPS", &cfg.HTTP.RateLimitRPS)
	e.int("RATE_LIMIT_BURST", &cfg.HTTP.RateLimitBurst)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.CORSAllowedOrigins = splitList(v)
	}

	return e.err()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envReader parses typed variables and collects every parse failure
type envReader struct {
	errs []error
}

func (e *envReader) int(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *envReader) int64(key string, dst *int64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return
	}
	*dst = f
}

// duration accepts Go durations ("30s") and bare seconds ("30")
func (e *envReader) duration(key string, dst *time.Duration) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return
	}
	*dst = d
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
