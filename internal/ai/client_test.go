package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "deepseek-chat",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "人工智能是研究智能的科学。"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 120, "completion_tokens": 12, "total_tokens": 132}
}`

type fakeDeepSeek struct {
	server  *httptest.Server
	calls   atomic.Int64
	lastReq atomic.Pointer[openai.ChatCompletionRequest]
	auth    atomic.Pointer[string]
}

func newFakeDeepSeek(t *testing.T, handler http.HandlerFunc) *fakeDeepSeek {
	f := &fakeDeepSeek{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			f.lastReq.Store(&req)
		}
		auth := r.Header.Get("Authorization")
		f.auth.Store(&auth)
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func respondWith(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func newTestClient(t *testing.T, f *fakeDeepSeek, timeout time.Duration) *Client {
	c, err := NewClient(Config{
		APIKey:      "sk-test",
		BaseURL:     f.server.URL + "/v1/",
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		Timeout:     timeout,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestClient_AskSuccess(t *testing.T) {
	f := newFakeDeepSeek(t, respondWith(http.StatusOK, completionBody))
	c := newTestClient(t, f, time.Second)

	reply := c.Ask(context.Background(), "  什么是人工智能？ ")

	assert.True(t, reply.OK())
	assert.Equal(t, SourceDeepSeek, reply.Source)
	assert.Equal(t, "人工智能是研究智能的科学。", reply.Answer)
	assert.GreaterOrEqual(t, reply.ThinkingTime, 0.0)

	req := f.lastReq.Load()
	require.NotNil(t, req)
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.InDelta(t, DefaultTemperature, req.Temperature, 1e-6)
	assert.InDelta(t, DefaultTopP, req.TopP, 1e-6)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "涂序彦教授")
	assert.Equal(t, "什么是人工智能？", req.Messages[1].Content)
	assert.Equal(t, "Bearer sk-test", *f.auth.Load())

	status, elapsed := c.Thinking().Status()
	assert.Equal(t, "就绪", status)
	assert.Zero(t, elapsed)
}

func TestClient_AskFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    string
	}{
		{
			name:    "api error",
			handler: respondWith(http.StatusUnauthorized, `{"error":{"message":"invalid api key","type":"authentication_error"}}`),
			timeout: time.Second,
			want:    SourceError,
		},
		{
			name:    "no choices",
			handler: respondWith(http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`),
			timeout: time.Second,
			want:    SourceError,
		},
		{
			name: "slow upstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			want:    SourceTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeDeepSeek(t, tt.handler)
			c := newTestClient(t, f, tt.timeout)

			reply := c.Ask(context.Background(), "你好")

			assert.False(t, reply.OK())
			assert.Equal(t, tt.want, reply.Source)
			assert.Equal(t, FailureMessage(tt.want, reply.ThinkingTime), reply.Answer)
		})
	}
}

func TestClient_Ping(t *testing.T) {
	f := newFakeDeepSeek(t, respondWith(http.StatusOK, completionBody))
	c := newTestClient(t, f, time.Second)

	require.NoError(t, c.Ping(context.Background()))
	req := f.lastReq.Load()
	require.NotNil(t, req)
	assert.Equal(t, pingMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)

	down := newFakeDeepSeek(t, respondWith(http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`))
	assert.Error(t, newTestClient(t, down, time.Second).Ping(context.Background()))
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "⏰ AI正在思考中，请求超时（20.3秒），请重新提问。", FailureMessage(SourceTimeout, 20.34))
	assert.Equal(t, "❌ 抱歉，AI服务暂时无法连接，请稍后重试。", FailureMessage(SourceError, 1))
	assert.True(t, strings.HasPrefix(FailureMessage("other", 0), "❌"))
}

func TestThinkingTracker(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tr := NewThinkingTracker()
	tr.now = func() time.Time { return now }

	status, elapsed := tr.Status()
	assert.Equal(t, "就绪", status)
	assert.Zero(t, elapsed)

	first := tr.Begin()
	now = now.Add(2 * time.Second)
	second := tr.Begin()
	now = now.Add(1500 * time.Millisecond)

	status, elapsed = tr.Status()
	assert.Equal(t, "AI思考中...3.5秒", status)
	assert.InDelta(t, 3.5, elapsed, 1e-9)

	first()
	first()
	_, elapsed = tr.Status()
	assert.InDelta(t, 1.5, elapsed, 1e-9)

	second()
	status, _ = tr.Status()
	assert.Equal(t, "就绪", status)
}
