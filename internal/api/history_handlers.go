package api

import (
	"errors"
	"net/http"
	"strconv"

	"digitalhuman/internal/model"
	"digitalhuman/internal/repository"
	"digitalhuman/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const previewLength = 100

// listHistory handles GET /api/history
func (h *Handler) listHistory(c *gin.Context) {
	if h.repo == nil {
		utils.Error(c, http.StatusServiceUnavailable, "history is not enabled")
		return
	}

	kind := c.Query("kind")
	if kind != "" && !model.ValidKind(kind) {
		utils.Error(c, http.StatusBadRequest, "kind must be one of chat, asr, tts")
		return
	}

	// Parse pagination parameters
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	interactions, err := h.repo.List(c.Request.Context(), repository.ListFilter{
		Kind:           kind,
		ConversationID: c.Query("conversation_id"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to retrieve history")
		return
	}

	items := make([]gin.H, 0, len(interactions))
	for _, in := range interactions {
		item := gin.H{
			"id":                 in.ID.String(),
			"kind":               in.Kind,
			"status":             in.Status,
			"provider":           in.Provider,
			"input_preview":      preview(in.Input),
			"processing_time_ms": in.ProcessingTimeMs,
			"created_at":         in.CreatedAt,
		}
		if in.ConversationID != nil {
			item["conversation_id"] = *in.ConversationID
		}
		if in.Output != nil && *in.Output != "" {
			item["output_preview"] = preview(*in.Output)
		}
		if in.ErrorCode != nil {
			item["error_code"] = *in.ErrorCode
		}
		items = append(items, item)
	}

	utils.Success(c, gin.H{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"count":  len(items),
	})
}

// getHistory handles GET /api/history/:id
func (h *Handler) getHistory(c *gin.Context) {
	if h.repo == nil {
		utils.Error(c, http.StatusServiceUnavailable, "history is not enabled")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid id format")
		return
	}

	in, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.Error(c, http.StatusNotFound, "interaction not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get interaction", zap.String("id", id.String()), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to retrieve interaction")
		return
	}

	utils.Success(c, gin.H{"interaction": in})
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewLength {
		return string(r[:previewLength]) + "..."
	}
	return s
}
