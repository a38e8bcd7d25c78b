package api

import (
	"context"
	"time"

	"digitalhuman/internal/ai"
	"digitalhuman/internal/metrics"
	"digitalhuman/internal/repository"
	"digitalhuman/internal/speech"
	"digitalhuman/internal/token"
	"digitalhuman/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the health endpoints
const Version = "8.0.0"

const (
	defaultProbeTimeout  = 5 * time.Second
	defaultRecordTimeout = 3 * time.Second
)

// ChatService answers questions as the professor
type ChatService interface {
	Ask(ctx context.Context, prompt string) ai.Reply
	Ping(ctx context.Context) error
	Thinking() *ai.ThinkingTracker
}

// TokenInspector exposes the cached vendor token for status reporting
type TokenInspector interface {
	Current() (token.AccessToken, bool)
}

// Options carries the tunables of the HTTP layer
type Options struct {
	VoiceID            int
	SpeedOffset        int
	PitchOffset        int
	VolumeOffset       int
	MaxUploadBytes     int64
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
	BaiduAppID         string
	ProbeTimeout       time.Duration
}

// Handler serves the digital human HTTP API
type Handler struct {
	chat    ChatService
	speech  speech.Provider
	tokens  TokenInspector
	repo    repository.InteractionRepository
	metrics *metrics.Collector
	opts    Options
	logger  *zap.Logger
}

// NewHandler wires the HTTP layer. tokens, repo and collector may be nil.
func NewHandler(chat ChatService, provider speech.Provider, tokens TokenInspector, repo repository.InteractionRepository, collector *metrics.Collector, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if len(opts.CORSAllowedOrigins) == 0 {
		opts.CORSAllowedOrigins = []string{"*"}
	}
	return &Handler{
		chat:    chat,
		speech:  provider,
		tokens:  tokens,
		repo:    repo,
		metrics: collector,
		opts:    opts,
		logger:  logger.With(zap.String("component", "api")),
	}
}

// NewRouter builds a gin engine with middleware and all routes
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.logger, h.metrics))
	r.Use(corsMiddleware(h.opts.CORSAllowedOrigins))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers every route on r
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.root)
	r.GET("/health", h.healthCheck)
	r.GET("/thinking_status", h.thinkingStatus)
	r.GET("/speech_status", h.speechStatus)

	limited := r.Group("/")
	limited.Use(rateLimiter(h.opts.RateLimitRPS, h.opts.RateLimitBurst))
	{
		limited.POST("/ask_professor", h.askProfessor)
		limited.POST("/chat", h.askProfessor)
		limited.POST("/asr", h.recognize)
		limited.POST("/tts", h.synthesize)
		limited.GET("/api_status", h.apiStatus)
	}

	history := r.Group("/api/history")
	{
		history.GET("", h.listHistory)
		history.GET("/:id", h.getHistory)
	}

	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

// root mirrors the frontend's expected health payload
func (h *Handler) root(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":      "ok",
		"message":     "涂序彦教授数字人完整API服务器 v" + Version,
		"timestamp":   time.Now().Format(time.RFC3339),
		"version":     Version,
		"server_type": "complete_api_server",
		"features":    []string{"chat", "speech", "asr", "tts"},
	})
}

// healthCheck returns server health status
func (h *Handler) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":          "ok",
		"service":         "digitalhuman-backend",
		"version":         Version,
		"speech_provider": h.speech.Name(),
	})
}
