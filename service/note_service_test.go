package service

import (
	"context"
	"fmt"
	"go-websecurity-api/model"
	"go-websecurity-api/repository"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedNoteService(t *testing.T) (*NoteService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewNoteService(repository.NewMemoryNoteRepository(), client, time.Minute), mr
}

func TestNoteService_ListNotesCacheAside(t *testing.T) {
	svc, mr := newCachedNoteService(t)
	ctx := context.Background()
	key := fmt.Sprintf("notes:%d", 1)

	_, err := svc.CreateNote(ctx, 1, model.NoteRequest{Title: "first", Content: "a"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	notes, err := svc.ListNotes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.True(t, mr.Exists(key), "list should populate the cache")
	assert.Equal(t, time.Minute, mr.TTL(key))

	// Writes invalidate the user's entry.
	_, err = svc.CreateNote(ctx, 1, model.NoteRequest{Title: "second", Content: "b"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	notes, err = svc.ListNotes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestNoteService_ServesFromCache(t *testing.T) {
	svc, mr := newCachedNoteService(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("notes:5", `[{"id":42,"title":"cached","content":"c"}]`))

	notes, err := svc.ListNotes(ctx, 5)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 42, notes[0].ID)
}

func TestNoteService_CacheDownFallsBackToStore(t *testing.T) {
	svc, mr := newCachedNoteService(t)
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, 1, model.NoteRequest{Title: "t", Content: "c"})
	require.NoError(t, err)
	mr.Close()

	notes, err := svc.ListNotes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestNoteService_OwnerScoping(t *testing.T) {
	svc := NewNoteService(repository.NewMemoryNoteRepository(), nil, 0)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, 1, model.NoteRequest{Title: "mine", Content: "secret"})
	require.NoError(t, err)

	_, err = svc.GetNote(ctx, 2, note.ID)
	assert.ErrorIs(t, err, ErrNoteNotFound)

	_, err = svc.UpdateNote(ctx, 2, note.ID, model.NoteRequest{Title: "stolen", Content: "x"})
	assert.ErrorIs(t, err, ErrNoteNotFound)

	assert.ErrorIs(t, svc.DeleteNote(ctx, 2, note.ID), ErrNoteNotFound)

	got, err := svc.GetNote(ctx, 1, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Title)
}

func TestNoteService_UpdateDeleteCount(t *testing.T) {
	svc := NewNoteService(repository.NewMemoryNoteRepository(), nil, 0)
	ctx := context.Background()

	a, err := svc.CreateNote(ctx, 1, model.NoteRequest{Title: "todo", Content: "a"})
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, 1, model.NoteRequest{Title: "todo", Content: "b"})
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, 2, model.NoteRequest{Title: "todo", Content: "c"})
	require.NoError(t, err)

	count, err := svc.CountByTitle(ctx, 1, "todo")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	updated, err := svc.UpdateNote(ctx, 1, a.ID, model.NoteRequest{Title: "done", Content: "a"})
	require.NoError(t, err)
	assert.Equal(t, "done", updated.Title)
	assert.False(t, updated.CreatedAt.IsZero())

	require.NoError(t, svc.DeleteNote(ctx, 1, a.ID))
	assert.ErrorIs(t, svc.DeleteNote(ctx, 1, a.ID), ErrNoteNotFound)
}
