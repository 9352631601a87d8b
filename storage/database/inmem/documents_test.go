package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hoaportal/core/document"
)

func newTestDocumentStore() (*documentStore, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewDocumentStore(Open())
	store.nowFunc = func() time.Time { return now }
	return store, &now
}

func TestDocumentStore(t *testing.T) {
	store, now := newTestDocumentStore()
	ctx := context.Background()

	docs, err := store.ReadAll(ctx, "events")
	require.NoError(t, err)
	assert.Empty(t, docs)

	id1, err := store.Add(ctx, "events", document.Fields{"title": "Pool party", "price": 5})
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	id2, err := store.Add(ctx, "events", document.Fields{"title": "Board meeting"})
	require.NoError(t, err)
	_, err = store.Add(ctx, "messages", document.Fields{"body": "hi"})
	require.NoError(t, err)

	docs, err = store.ReadAll(ctx, "events")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, id1, docs[0].ID, "oldest first")
	assert.Equal(t, id2, docs[1].ID)
	assert.Equal(t, float64(5), docs[0].Fields["price"], "numbers come back as float64")

	// returned fields are copies
	docs[0].Fields["title"] = "changed"
	doc, err := store.Get(ctx, "events", id1)
	require.NoError(t, err)
	assert.Equal(t, "Pool party", doc.Fields["title"])

	*now = now.Add(time.Minute)
	require.NoError(t, store.Update(ctx, "events", id1, document.Fields{"price": 7.5, "location": "Clubhouse"}))
	doc, err = store.Get(ctx, "events", id1)
	require.NoError(t, err)
	assert.Equal(t, document.Fields{"title": "Pool party", "price": 7.5, "location": "Clubhouse"}, doc.Fields)
	assert.True(t, doc.UpdatedAt.After(doc.CreatedAt))

	require.NoError(t, store.Set(ctx, "events", id2, document.Fields{"title": "AGM"}))
	doc, err = store.Get(ctx, "events", id2)
	require.NoError(t, err)
	assert.Equal(t, document.Fields{"title": "AGM"}, doc.Fields, "set replaces")

	require.NoError(t, store.Set(ctx, "residents", "uid-1", document.Fields{"name": "Jane"}))
	doc, err = store.Get(ctx, "residents", "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", doc.ID, "set creates with the given id")

	require.NoError(t, store.Delete(ctx, "events", id1))
	_, err = store.Get(ctx, "events", id1)
	assert.ErrorIs(t, err, document.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "events", id1), document.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, "events", id1, document.Fields{"a": 1}), document.ErrNotFound)
	_, err = store.Get(ctx, "unknown", "x")
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestDocumentStore_encodeError(t *testing.T) {
	store, _ := newTestDocumentStore()
	_, err := store.Add(context.Background(), "events", document.Fields{"bad": make(chan int)})
	assert.Error(t, err)
}
