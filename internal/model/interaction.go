package model

import (
	"time"

	"github.com/google/uuid"
)

// Interaction kinds
const (
	KindChat = "chat"
	KindASR  = "asr"
	KindTTS  = "tts"
)

// Interaction statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Interaction represents one chat, recognition or synthesis exchange
type Interaction struct {
	ID               uuid.UUID              `json:"id"`
	Kind             string                 `json:"kind"`
	ConversationID   *string                `json:"conversation_id,omitempty"`
	Input            string                 `json:"input"`
	Output           *string                `json:"output,omitempty"`
	Provider         string                 `json:"provider"`
	Status           string                 `json:"status"`
	ErrorCode        *int                   `json:"error_code,omitempty"`
	ErrorMessage     *string                `json:"error_message,omitempty"`
	Confidence       *float64               `json:"confidence,omitempty"`
	AudioFormat      *string                `json:"audio_format,omitempty"`
	AudioSizeBytes   *int                   `json:"audio_size_bytes,omitempty"`
	ProcessingTimeMs int                    `json:"processing_time_ms"`
	Metadata         map[string]interface{} `json:"metadata"`
	CreatedAt        time.Time              `json:"created_at"`
}

// NewInteraction creates a record with a fresh id and timestamp
func NewInteraction(kind, provider, input string) *Interaction {
	return &Interaction{
		ID:        uuid.New(),
		Kind:      kind,
		Input:     input,
		Provider:  provider,
		Metadata:  make(map[string]interface{}),
		CreatedAt: time.Now().UTC(),
	}
}

// ValidKind reports whether kind names an interaction kind
func ValidKind(kind string) bool {
	switch kind {
	case KindChat, KindASR, KindTTS:
		return true
	}
	return false
}
