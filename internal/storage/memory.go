package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"digitalhuman/internal/model"
	"digitalhuman/internal/repository"

	"github.com/google/uuid"
)

// DefaultCapacity bounds the in-memory history; the oldest records go first
const DefaultCapacity = 1000

// MemoryRepository keeps interaction history in process memory. It is
// used when no database is configured.
type MemoryRepository struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*model.Interaction
	order    []uuid.UUID
	capacity int
}

var _ repository.InteractionRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an in-memory repository holding at most
// capacity records
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryRepository{
		records:  make(map[uuid.UUID]*model.Interaction),
		capacity: capacity,
	}
}

// Create stores a copy of the interaction
func (r *MemoryRepository) Create(_ context.Context, in *model.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[in.ID]; exists {
		return fmt.Errorf("interaction %s already exists", in.ID)
	}

	r.records[in.ID] = copyInteraction(in)
	r.order = append(r.order, in.ID)

	for len(r.order) > r.capacity {
		delete(r.records, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

// GetByID retrieves an interaction by ID
func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid race conditions
	return copyInteraction(in), nil
}

// List retrieves interactions, newest first
func (r *MemoryRepository) List(_ context.Context, filter repository.ListFilter) ([]model.Interaction, error) {
	r.mu.Lock()
	matched := make([]model.Interaction, 0, len(r.records))
	for _, in := range r.records {
		if filter.Kind != "" && in.Kind != filter.Kind {
			continue
		}
		if filter.ConversationID != "" && (in.ConversationID == nil || *in.ConversationID != filter.ConversationID) {
			continue
		}
		matched = append(matched, *copyInteraction(in))
	}
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []model.Interaction{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Len returns the number of stored interactions
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func copyInteraction(in *model.Interaction) *model.Interaction {
	c := *in
	c.Metadata = make(map[string]interface{}, len(in.Metadata))
	for k, v := range in.Metadata {
		c.Metadata[k] = v
	}
	return &c
}
