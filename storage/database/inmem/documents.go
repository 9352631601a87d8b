package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/hoaportal/core/document"
)

type documentStore struct {
	db      *documentTable
	nowFunc func() time.Time
}

var _ document.Store = (*documentStore)(nil) // interface compliance check

func NewDocumentStore(db *DB) *documentStore {
	return &documentStore{db: db.documents, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// normalize gives in-memory fields the JSON shape the postgres store returns.
func normalize(flds document.Fields) (document.Fields, error) {
	if flds == nil {
		return document.Fields{}, nil
	}
	return document.Encode(flds)
}

func (store *documentStore) ReadAll(_ context.Context, collection string) ([]document.Document, error) {
	store.db.mutex.RLock()
	defer store.db.mutex.RUnlock()

	docs := make([]document.Document, 0, len(store.db.t[collection]))
	for _, doc := range store.db.t[collection] {
		cp := *doc
		cp.Fields = doc.Fields.Clone()
		docs = append(docs, cp)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

func (store *documentStore) Get(_ context.Context, collection, id string) (document.Document, error) {
	store.db.mutex.RLock()
	defer store.db.mutex.RUnlock()

	doc, ok := store.db.t[collection][id]
	if !ok {
		return document.Document{}, document.ErrNotFound
	}
	cp := *doc
	cp.Fields = doc.Fields.Clone()
	return cp, nil
}

func (store *documentStore) Add(ctx context.Context, collection string, fields document.Fields) (string, error) {
	id := uuid.New().String()
	if err := store.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (store *documentStore) Set(_ context.Context, collection, id string, fields document.Fields) error {
	flds, err := normalize(fields)
	if err != nil {
		return err
	}

	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	now := store.nowFunc()
	coll, ok := store.db.t[collection]
	if !ok {
		coll = make(map[string]*document.Document)
		store.db.t[collection] = coll
	}
	createdAt := now
	if existing, ok := coll[id]; ok {
		createdAt = existing.CreatedAt
	}
	coll[id] = &document.Document{ID: id, Fields: flds, CreatedAt: createdAt, UpdatedAt: now}
	return nil
}

func (store *documentStore) Update(_ context.Context, collection, id string, fields document.Fields) error {
	flds, err := normalize(fields)
	if err != nil {
		return err
	}

	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	doc, ok := store.db.t[collection][id]
	if !ok {
		return document.ErrNotFound
	}
	merged := doc.Fields.Clone()
	for k, v := range flds {
		merged[k] = v
	}
	doc.Fields = merged
	doc.UpdatedAt = store.nowFunc()
	return nil
}

func (store *documentStore) Delete(_ context.Context, collection, id string) error {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	if _, ok := store.db.t[collection][id]; !ok {
		return document.ErrNotFound
	}
	delete(store.db.t[collection], id)
	return nil
}
