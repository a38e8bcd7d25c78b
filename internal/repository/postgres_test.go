package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"digitalhuman/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{
	"id", "kind", "conversation_id", "input", "output", "provider", "status",
	"error_code", "error_message", "confidence", "audio_format", "audio_size_bytes",
	"processing_time_ms", "metadata", "created_at",
}

func setupMockDB(t *testing.T) (InteractionRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := setupMockDB(t)

	in := model.NewInteraction(model.KindASR, "baidu", "recording.webm")
	in.Status = model.StatusSuccess
	out := "你好世界"
	conf := 0.87
	format := "wav"
	size := 32000
	in.Output = &out
	in.Confidence = &conf
	in.AudioFormat = &format
	in.AudioSizeBytes = &size
	in.ProcessingTimeMs = 420
	in.Metadata["relabeled_from"] = "webm"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO interactions")).
		WithArgs(
			in.ID.String(), model.KindASR, nil, "recording.webm", out, "baidu", model.StatusSuccess,
			nil, nil, conf, format, int64(size), int64(420), []byte(`{"relabeled_from":"webm"}`), in.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), in))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "duplicate id", err: &pq.Error{Code: uniqueViolation}, wantMsg: "already exists"},
		{name: "connection lost", err: errors.New("bad connection"), wantMsg: "failed to create interaction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupMockDB(t)
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO interactions")).WillReturnError(tt.err)

			err := repo.Create(context.Background(), model.NewInteraction(model.KindChat, "deepseek", "hi"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_GetByID(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM interactions")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			id.String(), model.KindTTS, "conv-1", "你好", nil, "baidu", model.StatusFailed,
			int64(502), "access token invalid", nil, nil, nil,
			int64(130), []byte(`{"voice_id":4115}`), created,
		))

	in, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, in.ID)
	assert.Equal(t, model.KindTTS, in.Kind)
	require.NotNil(t, in.ConversationID)
	assert.Equal(t, "conv-1", *in.ConversationID)
	assert.Nil(t, in.Output)
	require.NotNil(t, in.ErrorCode)
	assert.Equal(t, 502, *in.ErrorCode)
	assert.Equal(t, 130, in.ProcessingTimeMs)
	assert.Equal(t, float64(4115), in.Metadata["voice_id"])
	assert.Equal(t, created, in.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM interactions")).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_List(t *testing.T) {
	repo, mock := setupMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(model.KindChat, "", 2, 0).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(uuid.New().String(), model.KindChat, nil, "q2", "a2", "deepseek", model.StatusSuccess,
				nil, nil, nil, nil, nil, int64(900), nil, now).
			AddRow(uuid.New().String(), model.KindChat, nil, "q1", nil, "deepseek", model.StatusFailed,
				nil, "timeout", nil, nil, nil, int64(25000), []byte(`{}`), now.Add(-time.Minute)))

	got, err := repo.List(context.Background(), ListFilter{Kind: model.KindChat, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].Input)
	assert.NotNil(t, got[0].Metadata)
	assert.Equal(t, "timeout", *got[1].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListEmpty(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM interactions")).
		WillReturnRows(sqlmock.NewRows(columns))

	got, err := repo.List(context.Background(), ListFilter{Limit: 20})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
