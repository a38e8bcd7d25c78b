package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com/v1"
	DefaultModel       = "deepseek-chat"
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultTimeout     = 25 * time.Second

	pingMaxTokens = 10
)

// Reply sources
const (
	SourceDeepSeek = "deepseek"
	SourceTimeout  = "timeout"
	SourceError    = "error"
)

// Config configures the DeepSeek chat client
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

// Reply is the outcome of one chat call. On failure Answer already holds
// the message to show the user and Source says why.
type Reply struct {
	Answer       string  `json:"answer"`
	Source       string  `json:"source"`
	ThinkingTime float64 `json:"thinking_time"`
}

// OK reports whether the answer came from the model
func (r Reply) OK() bool {
	return r.Source == SourceDeepSeek
}

// Client talks to DeepSeek through its OpenAI-compatible API
type Client struct {
	cfg      Config
	api      *openai.Client
	thinking *ThinkingTracker
	logger   *zap.Logger
}

// NewClient creates a chat client. The API key is required.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	apiCfg.HTTPClient = &http.Client{}

	return &Client{
		cfg:      cfg,
		api:      openai.NewClientWithConfig(apiCfg),
		thinking: NewThinkingTracker(),
		logger:   logger.With(zap.String("component", "deepseek")),
	}, nil
}

// Thinking returns the tracker of in-flight questions
func (c *Client) Thinking() *ThinkingTracker {
	return c.thinking
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.cfg.Model
}

// BaseURL returns the configured API endpoint
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Ask sends a question to the professor persona. It never returns an
// error; failures are reported through Reply.Source.
func (c *Client) Ask(ctx context.Context, prompt string) Reply {
	done := c.thinking.Begin()
	defer done()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("calling DeepSeek API",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_length", len([]rune(prompt))))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    BuildMessages(prompt),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		source := SourceError
		if isTimeout(ctx, err) {
			source = SourceTimeout
		}
		c.logger.Warn("DeepSeek API call failed",
			zap.String("source", source),
			zap.Float64("elapsed_seconds", elapsed),
			zap.Error(err))
		return Reply{Answer: FailureMessage(source, elapsed), Source: source, ThinkingTime: elapsed}
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.logger.Warn("DeepSeek API returned no content", zap.Float64("elapsed_seconds", elapsed))
		return Reply{Answer: FailureMessage(SourceError, elapsed), Source: SourceError, ThinkingTime: elapsed}
	}

	c.logger.Info("DeepSeek API call succeeded",
		zap.Float64("elapsed_seconds", elapsed),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return Reply{
		Answer:       resp.Choices[0].Message.Content,
		Source:       SourceDeepSeek,
		ThinkingTime: elapsed,
	}
}

// Ping sends a tiny request to check that the API is reachable
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: pingPrompt},
		},
		MaxTokens: pingMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("DeepSeek API unreachable: %w", err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
