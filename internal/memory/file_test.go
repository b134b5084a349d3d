package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Merem-Agent/internal/config"
	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

func newMemory(room uuid.UUID, text string, createdAt int64) plugin.Memory {
	return plugin.Memory{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		AgentID:   uuid.New(),
		RoomID:    room,
		Content:   plugin.Content{Text: text, Source: "test"},
		CreatedAt: createdAt,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	store, err := NewFileStore(dir, TableMessages)
	require.NoError(t, err)

	room := uuid.New()
	other := uuid.New()
	require.NoError(t, store.CreateMemory(ctx, newMemory(room, "first", 1)))
	require.NoError(t, store.CreateMemory(ctx, newMemory(room, "second", 2)))
	require.NoError(t, store.CreateMemory(ctx, newMemory(room, "third", 2)))
	require.NoError(t, store.CreateMemory(ctx, newMemory(other, "elsewhere", 3)))

	got, err := store.GetMemories(ctx, plugin.MemoryQuery{RoomID: room, Count: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Content.Text)
	assert.Equal(t, "second", got[1].Content.Text)

	count, err := store.CountMemories(ctx, room)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(dir, TableMessages)
	require.NoError(t, err)
	all, err := reopened.GetMemories(ctx, plugin.MemoryQuery{RoomID: room})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[2].Content.Text)
	assert.Equal(t, "test", all[2].Content.Source)

	facts, err := NewFileStore(dir, TableFacts)
	require.NoError(t, err)
	n, err := facts.CountMemories(ctx, room)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileStoreRejectsInvalidMemory(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir(), TableFacts)
	require.NoError(t, err)

	err = store.CreateMemory(context.Background(), plugin.Memory{ID: uuid.New()})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	_, err = NewFileStore(t.TempDir(), "accounts")
	assert.Error(t, err)
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Parallel()

	store, err := Open(context.Background(), config.MemoryConfig{Driver: "file", DataDir: t.TempDir()}, TableMessages)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = Open(context.Background(), config.MemoryConfig{Driver: "cassandra"}, TableMessages)
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	_, err = Open(context.Background(), config.MemoryConfig{Driver: "mysql"}, TableMessages)
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestRedisOptions(t *testing.T) {
	t.Parallel()

	opts, err := redisOptions("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = redisOptions("127.0.0.1:6379")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	_, err = redisOptions(" ")
	assert.Error(t, err)
}

func TestMongoDocumentConversion(t *testing.T) {
	t.Parallel()

	parent := uuid.New()
	m := newMemory(uuid.New(), "hello", 42)
	m.Content.Action = "CURRENT_NEWS_RESPONSE"
	m.Content.InReplyTo = &parent

	doc := toMongoDocument(m)
	assert.Equal(t, m.RoomID.String(), doc.RoomID)
	assert.Equal(t, parent.String(), doc.Content.InReplyTo)

	back := doc.toMemory()
	assert.Equal(t, m.ID, back.ID)
	assert.Equal(t, m.Content.Action, back.Content.Action)
	require.NotNil(t, back.Content.InReplyTo)
	assert.Equal(t, parent, *back.Content.InReplyTo)
}
