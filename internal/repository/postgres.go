package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"digitalhuman/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const interactionColumns = `
			id, kind, conversation_id, input, output, provider, status,
			error_code, error_message, confidence, audio_format, audio_size_bytes,
			processing_time_ms, metadata, created_at`

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) InteractionRepository {
	return &postgresRepository{db: db}
}

// Create creates a new interaction record
func (r *postgresRepository) Create(ctx context.Context, in *model.Interaction) error {
	query := `
		INSERT INTO interactions (` + interactionColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		in.ID,
		in.Kind,
		in.ConversationID,
		in.Input,
		in.Output,
		in.Provider,
		in.Status,
		in.ErrorCode,
		in.ErrorMessage,
		in.Confidence,
		in.AudioFormat,
		in.AudioSizeBytes,
		in.ProcessingTimeMs,
		metadataJSON,
		in.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("interaction %s already exists: %w", in.ID, err)
		}
		return fmt.Errorf("failed to create interaction: %w", err)
	}

	return nil
}

// GetByID retrieves an interaction by ID
func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE id = $1
	`

	in, err := scanInteraction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	return in, nil
}

// List retrieves interactions with pagination, newest first
func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]model.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE ($1 = '' OR kind = $1)
		  AND ($2 = '' OR conversation_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, filter.Kind, filter.ConversationID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	interactions := []model.Interaction{}
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, *in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return interactions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInteraction(row scanner) (*model.Interaction, error) {
	var in model.Interaction
	var metadataJSON []byte

	err := row.Scan(
		&in.ID,
		&in.Kind,
		&in.ConversationID,
		&in.Input,
		&in.Output,
		&in.Provider,
		&in.Status,
		&in.ErrorCode,
		&in.ErrorMessage,
		&in.Confidence,
		&in.AudioFormat,
		&in.AudioSizeBytes,
		&in.ProcessingTimeMs,
		&metadataJSON,
		&in.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse metadata JSON
	in.Metadata = make(map[string]interface{})
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &in.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &in, nil
}
