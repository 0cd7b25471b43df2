package conversations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, "Planning my week")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)

	got, messages, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Planning my week", got.Title)
	assert.Empty(t, messages)
}

func TestAppendMessagePreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, "Skills session")
	require.NoError(t, err)

	turns := []struct{ role, content string }{
		{RoleUser, "save a reading list skill"},
		{RoleTool, `notion draft "Reading List" "..."`},
		{RoleAssistant, "Done, the draft is staged."},
	}
	for _, turn := range turns {
		_, err := store.AppendMessage(ctx, conv.ID, turn.role, turn.content)
		require.NoError(t, err)
	}

	_, messages, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, turn := range turns {
		assert.Equal(t, turn.role, messages[i].Role)
		assert.Equal(t, turn.content, messages[i].Content)
	}
}

func TestAppendToMissingConversation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendMessage(context.Background(), "no-such-id", RoleUser, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetMissingConversation(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Get(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListOrdersByRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, "First chat")
	require.NoError(t, err)
	second, err := store.Create(ctx, "Second chat")
	require.NoError(t, err)

	// Touching the first conversation makes it the most recent.
	_, err = store.AppendMessage(ctx, first.ID, RoleUser, "hello again")
	require.NoError(t, err)

	summaries, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.ID, summaries[0].ID)
	assert.Equal(t, 1, summaries[0].MessageCount)
	assert.Equal(t, second.ID, summaries[1].ID)
	assert.Equal(t, 0, summaries[1].MessageCount)
}

func TestListSearchAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "Podcast digest")
	require.NoError(t, err)
	_, err = store.Create(ctx, "Grocery run")
	require.NoError(t, err)
	_, err = store.Create(ctx, "Podcast backlog")
	require.NoError(t, err)

	summaries, err := store.List(ctx, "podcast", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	summaries, err = store.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestDeleteCascadesMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, "Disposable")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, conv.ID, RoleUser, "bye")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, conv.ID))

	_, _, err = store.Get(ctx, conv.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	var count int
	require.NoError(t, store.db.Get(&count, "SELECT COUNT(*) FROM messages"))
	assert.Zero(t, count)
}

func TestDeleteMissingConversation(t *testing.T) {
	store := newTestStore(t)

	err := store.Delete(context.Background(), "no-such-id")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreReopens(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "chat.db")

	store, err := NewStore(ctx, dbPath)
	require.NoError(t, err)
	conv, err := store.Create(ctx, "Persistent chat")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, _, err := reopened.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persistent chat", got.Title)
}
