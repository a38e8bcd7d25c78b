package repository

import (
	"context"
	"errors"

	"digitalhuman/internal/model"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no interaction has the requested id
var ErrNotFound = errors.New("interaction not found")

// ListFilter narrows an interaction listing. An empty Kind matches all kinds.
type ListFilter struct {
	Kind           string
	ConversationID string
	Limit          int
	Offset         int
}

// InteractionRepository defines the interface for interaction history access
type InteractionRepository interface {
	// Create stores a new interaction record
	Create(ctx context.Context, in *model.Interaction) error

	// GetByID retrieves an interaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*model.Interaction, error)

	// List retrieves interactions, newest first
	List(ctx context.Context, filter ListFilter) ([]model.Interaction, error)
}
