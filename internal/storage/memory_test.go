package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"digitalhuman/internal/model"
	"digitalhuman/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(kind string, at time.Time, input string) *model.Interaction {
	in := model.NewInteraction(kind, "mock", input)
	in.CreatedAt = at
	in.Status = model.StatusSuccess
	return in
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository(10)
	ctx := context.Background()

	in := newRecord(model.KindASR, time.Now(), "a.wav")
	in.Metadata["format"] = "wav"
	require.NoError(t, repo.Create(ctx, in))
	assert.Error(t, repo.Create(ctx, in), "duplicate id")

	got, err := repo.GetByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Input, got.Input)

	got.Metadata["format"] = "mp3"
	again, _ := repo.GetByID(ctx, in.ID)
	assert.Equal(t, "wav", again.Metadata["format"], "callers get copies")

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryRepository_ListFiltersAndPages(t *testing.T) {
	repo := NewMemoryRepository(10)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	conv := "conv-7"
	for i := 0; i < 5; i++ {
		in := newRecord(model.KindChat, base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("q%d", i))
		if i%2 == 0 {
			in.ConversationID = &conv
		}
		require.NoError(t, repo.Create(ctx, in))
	}
	require.NoError(t, repo.Create(ctx, newRecord(model.KindTTS, base.Add(time.Hour), "speak")))

	all, err := repo.List(ctx, repository.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "speak", all[0].Input)

	chats, err := repo.List(ctx, repository.ListFilter{Kind: model.KindChat, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "q3", chats[0].Input)
	assert.Equal(t, "q2", chats[1].Input)

	inConv, err := repo.List(ctx, repository.ListFilter{ConversationID: conv})
	require.NoError(t, err)
	assert.Len(t, inConv, 3)

	past, err := repo.List(ctx, repository.ListFilter{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestMemoryRepository_EvictsOldest(t *testing.T) {
	repo := NewMemoryRepository(3)
	ctx := context.Background()
	base := time.Now()

	var first *model.Interaction
	for i := 0; i < 5; i++ {
		in := newRecord(model.KindTTS, base.Add(time.Duration(i)*time.Second), fmt.Sprintf("t%d", i))
		if i == 0 {
			first = in
		}
		require.NoError(t, repo.Create(ctx, in))
	}

	assert.Equal(t, 3, repo.Len())
	_, err := repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryRepository_ConcurrentCreate(t *testing.T) {
	repo := NewMemoryRepository(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Create(ctx, newRecord(model.KindChat, time.Now(), fmt.Sprintf("q%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, repo.Len())
}
