// Package document is the schemaless collection store the portal keeps its
// events, residents and contact messages in.
package document

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("document not found")

// Fields are the stored attributes of a document.
// Values round-trip through JSON: numbers come back as float64.
type Fields map[string]interface{}

// Document is one record of a collection.
type Document struct {
	ID        string    `db:"id"`
	Fields    Fields    `db:"-"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Decode fills dest, a pointer to a struct with json tags, from the document fields.
func (d Document) Decode(dest interface{}) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Encode turns v, a struct with json tags, into document fields.
func Encode(v interface{}) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var flds Fields
	if err = json.Unmarshal(raw, &flds); err != nil {
		return nil, err
	}
	return flds, nil
}

// Store holds named collections of documents.
type Store interface {
	// ReadAll returns the documents of collection, oldest first.
	ReadAll(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Add stores fields under a generated id and returns the id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Set creates or replaces the document id.
	Set(ctx context.Context, collection, id string, fields Fields) error
	// Update merges fields into the existing document id.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

// Clone returns a shallow copy of flds.
func (flds Fields) Clone() Fields {
	cp := make(Fields, len(flds))
	for k, v := range flds {
		cp[k] = v
	}
	return cp
}
