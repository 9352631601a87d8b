package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/document"
)

type documentRow struct {
	ID        string         `db:"id"`
	Fields    types.JSONText `db:"fields"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row documentRow) document() (document.Document, error) {
	doc := document.Document{ID: row.ID, CreatedAt: row.CreatedAt.UTC(), UpdatedAt: row.UpdatedAt.UTC()}
	if err := row.Fields.Unmarshal(&doc.Fields); err != nil {
		return document.Document{}, errors.Wrapf(err, "decoding document %s", row.ID)
	}
	if doc.Fields == nil {
		doc.Fields = document.Fields{}
	}
	return doc, nil
}

type documentStore struct {
	exec core.DBExecutor
}

var _ document.Store = (*documentStore)(nil) // interface compliance check

func NewDocumentStore(exec core.DBExecutor) *documentStore {
	return &documentStore{exec: exec}
}

func encodeFields(fields document.Fields) (types.JSONText, error) {
	if fields == nil {
		fields = document.Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "encoding fields")
	}
	return types.JSONText(raw), nil
}

func (store documentStore) ReadAll(ctx context.Context, collection string) ([]document.Document, error) {
	var rows []documentRow
	q := `SELECT id, fields, created_at, updated_at FROM documents WHERE collection = $1 ORDER BY created_at, id`
	if err := store.exec.SelectContext(ctx, &rows, q, collection); err != nil {
		return nil, errors.Wrapf(err, "reading collection %s", collection)
	}

	docs := make([]document.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (store documentStore) Get(ctx context.Context, collection, id string) (document.Document, error) {
	var row documentRow
	q := `SELECT id, fields, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	if err := store.exec.GetContext(ctx, &row, q, collection, id); err != nil {
		if err == sql.ErrNoRows {
			return document.Document{}, document.ErrNotFound
		}
		return document.Document{}, errors.Wrapf(err, "getting %s/%s", collection, id)
	}
	return row.document()
}

func (store documentStore) Add(ctx context.Context, collection string, fields document.Fields) (string, error) {
	id := uuid.New().String()
	if err := store.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (store documentStore) Set(ctx context.Context, collection, id string, fields document.Fields) error {
	flds, err := encodeFields(fields)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`
	if _, err = store.exec.ExecContext(ctx, q, collection, id, flds); err != nil {
		return errors.Wrapf(err, "setting %s/%s", collection, id)
	}
	return nil
}

func (store documentStore) Update(ctx context.Context, collection, id string, fields document.Fields) error {
	flds, err := encodeFields(fields)
	if err != nil {
		return err
	}
	q := `UPDATE documents SET fields = fields || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`
	res, err := store.exec.ExecContext(ctx, q, collection, id, flds)
	if err != nil {
		return errors.Wrapf(err, "updating %s/%s", collection, id)
	}
	return checkAffected(res, document.ErrNotFound)
}

func (store documentStore) Delete(ctx context.Context, collection, id string) error {
	q := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	res, err := store.exec.ExecContext(ctx, q, collection, id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s/%s", collection, id)
	}
	return checkAffected(res, document.ErrNotFound)
}

// checkAffected returns notFound when res touched no row.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
