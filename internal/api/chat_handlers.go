package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"digitalhuman/internal/ai"
	"digitalhuman/internal/model"
	"digitalhuman/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// askRequest accepts both the "prompt" and "message" spellings used by
// the two frontends
type askRequest struct {
	Prompt         string `json:"prompt"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// askProfessor handles POST /ask_professor and POST /chat. Failures are
// reported in the reply's source with status 200.
func (h *Handler) askProfessor(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = strings.TrimSpace(req.Message)
	}
	if prompt == "" {
		utils.Error(c, http.StatusBadRequest, "prompt is required")
		return
	}

	h.logger.Info("question received", zap.Int("length", len([]rune(prompt))))

	reply := h.chat.Ask(c.Request.Context(), prompt)

	if h.metrics != nil {
		h.metrics.RecordChat(reply.Source, reply.ThinkingTime)
	}

	in := model.NewInteraction(model.KindChat, ai.SourceDeepSeek, prompt)
	in.ProcessingTimeMs = int(reply.ThinkingTime * 1000)
	in.Metadata["source"] = reply.Source
	if req.ConversationID != "" {
		in.ConversationID = stringPtr(req.ConversationID)
	}
	if reply.OK() {
		in.Status = model.StatusSuccess
		in.Output = stringPtr(reply.Answer)
	} else {
		in.Status = model.StatusFailed
		in.ErrorMessage = stringPtr(reply.Source)
	}
	h.record(c.Request.Context(), in)

	c.JSON(http.StatusOK, reply)
}

// thinkingStatus handles GET /thinking_status
func (h *Handler) thinkingStatus(c *gin.Context) {
	status, elapsed := h.chat.Thinking().Status()
	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"elapsed_time": elapsed,
	})
}

// apiStatus handles GET /api_status by sending a tiny probe to the model
func (h *Handler) apiStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.ProbeTimeout)
	defer cancel()

	start := time.Now()
	err := h.chat.Ping(ctx)
	latency := time.Since(start)

	speechAvailable := h.speech.Name() != "mock"
	resp := gin.H{
		"deepseek_available": err == nil,
		"speech_available":   speechAvailable,
		"speech_provider":    h.speech.Name(),
		"chat_enabled":       true,
		"asr_enabled":        true,
		"tts_enabled":        true,
		"server_version":     Version,
		"features":           []string{"chat", "speech", "asr", "tts"},
		"latency_ms":         latency.Milliseconds(),
	}
	if err != nil {
		h.logger.Warn("DeepSeek probe failed", zap.Error(err))
		resp["api_status"] = "disconnected"
		resp["message"] = "DeepSeek API连接失败: " + err.Error()
	} else {
		resp["api_status"] = "connected"
		resp["message"] = "DeepSeek API连接正常"
	}

	c.JSON(http.StatusOK, resp)
}
