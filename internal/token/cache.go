package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the Baidu OAuth2 token endpoint
	DefaultEndpoint = "https://aip.baidubce.com/oauth/2.0/token"

	// DefaultRefreshMargin is how long before expiry a token stops being served
	DefaultRefreshMargin = 5 * time.Minute

	// DefaultTimeout bounds a single token exchange
	DefaultTimeout = 10 * time.Second

	// defaultLifetime applies when the vendor omits expires_in (30 days)
	defaultLifetime = 2592000 * time.Second
)

// Config holds the credential pair and endpoint for the token exchange
type Config struct {
	APIKey        string
	SecretKey     string
	Endpoint      string
	RefreshMargin time.Duration
	Timeout       time.Duration
}

// Cache hands out a valid bearer token for one credential pair, calling
// the vendor only when the cached token is absent or about to expire.
//
// Refreshes are not serialised: concurrent callers that observe a stale
// token may each exchange credentials and the last store write wins.
type Cache struct {
	cfg        Config
	store      Store
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.RWMutex
	current *AccessToken
}

// Option customises a Cache
type Option func(*Cache)

// WithHTTPClient replaces the HTTP client used for the token exchange
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		c.httpClient = client
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a token cache. store may be nil, in which case the
// token lives in memory only.
func NewCache(cfg Config, store Store, logger *zap.Logger, opts ...Option) *Cache {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("component", "token_cache")),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a usable bearer token, or "" when none could be obtained.
// Callers must treat "" as a failure.
func (c *Cache) Token(ctx context.Context) string {
	now := c.now()

	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()
	if current.Usable(now, c.cfg.RefreshMargin) {
		return current.Value
	}

	if stored := c.loadStored(ctx, now); stored != nil {
		return stored.Value
	}

	return c.refresh(ctx)
}

// ForceRefresh exchanges credentials for a new token regardless of the
// cached state.
func (c *Cache) ForceRefresh(ctx context.Context) string {
	return c.refresh(ctx)
}

// Current returns a copy of the in-memory token, if any
func (c *Cache) Current() (AccessToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return AccessToken{}, false
	}
	return *c.current, true
}

func (c *Cache) loadStored(ctx context.Context, now time.Time) *AccessToken {
	if c.store == nil {
		return nil
	}

	stored, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to load cached token", zap.Error(err))
		return nil
	}
	if !stored.Usable(now, c.cfg.RefreshMargin) {
		return nil
	}

	c.mu.Lock()
	c.current = stored
	c.mu.Unlock()
	return stored
}

func (c *Cache) refresh(ctx context.Context) string {
	tok, err := c.fetch(ctx)
	if err != nil {
		c.logger.Error("failed to obtain access token", zap.Error(err))
		return ""
	}

	c.mu.Lock()
	c.current = tok
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, *tok); err != nil {
			c.logger.Warn("failed to persist access token", zap.Error(err))
		}
	}

	c.logger.Info("access token refreshed", zap.Time("expires_at", tok.ExpiresAt))
	return tok.Value
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// fetch performs exactly one credential exchange
func (c *Cache) fetch(ctx context.Context) (*AccessToken, error) {
	if c.cfg.APIKey == "" || c.cfg.SecretKey == "" {
		return nil, fmt.Errorf("baidu credentials are not configured")
	}

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid token endpoint: %w", err)
	}
	q := u.Query()
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", c.cfg.APIKey)
	q.Set("client_secret", c.cfg.SecretKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, preview(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		if tr.Error != "" {
			return nil, fmt.Errorf("token endpoint error %s: %s", tr.Error, tr.ErrorDescription)
		}
		return nil, fmt.Errorf("token response has no access_token: %s", preview(body))
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultLifetime
	}

	issued := c.now()
	return &AccessToken{
		Value:     tr.AccessToken,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(lifetime),
	}, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}
