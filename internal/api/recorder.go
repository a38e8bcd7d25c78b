package api

import (
	"context"

	"digitalhuman/internal/model"

	"go.uber.org/zap"
)

// record stores an interaction in the history. Failures are logged and
// never reach the caller.
func (h *Handler) record(ctx context.Context, in *model.Interaction) {
	if h.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRecordTimeout)
	defer cancel()

	if err := h.repo.Create(ctx, in); err != nil {
		h.logger.Warn("failed to record interaction",
			zap.String("id", in.ID.String()),
			zap.String("kind", in.Kind),
			zap.Error(err))
		return
	}
	h.logger.Debug("interaction recorded", zap.String("id", in.ID.String()), zap.String("kind", in.Kind))
}

func stringPtr(s string) *string {
	return &s
}

func intPtr(n int) *int {
	return &n
}
