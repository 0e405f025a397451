// Package sqlstore keeps documents as JSON in one SQL table, on SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/Mabu007/czane-beauty-academy/core"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqliteSchema mirrors the postgres migrations, with TEXT instead of JSONB.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

type Store struct {
	db       *sqlx.DB
	postgres bool
}

var _ core.DocumentStore = (*Store)(nil) // interface compliance check

// New wraps an open database. The documents table must exist, see OpenSQLite and the postgres migrations.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, postgres: db.DriverName() == DriverPostgres}
}

// OpenSQLite opens (creating when needed) a SQLite database at dsn, e.g. "academy.db" or "file::memory:?cache=shared".
func OpenSQLite(ctx context.Context, dsn string) (*Store, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	// SQLite allows one writer at a time: serialize on a single connection.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating documents table")
	}
	return New(db), nil
}

type docRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

func decode(row docRow) (core.Document, error) {
	var doc core.Document
	if err := json.Unmarshal(row.Data, &doc); err != nil {
		return nil, errors.Wrapf(core.ErrInvalidDocument, "decoding %s: %v", row.ID, err)
	}
	if doc == nil {
		doc = core.Document{}
	}
	doc[core.IDField] = row.ID
	return doc, nil
}

func encode(id string, doc core.Document) (string, error) {
	stored, err := core.CloneDocument(doc)
	if err != nil {
		return "", err
	}
	if stored == nil {
		stored = core.Document{}
	}
	stored[core.IDField] = id
	data, err := json.Marshal(stored)
	if err != nil {
		return "", errors.Wrap(err, "encoding document")
	}
	return string(data), nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (core.Document, error) {
	var row docRow
	q := s.db.Rebind(`SELECT id, data FROM documents WHERE collection = ? AND id = ?`)
	if err := s.db.GetContext(ctx, &row, q, coll, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrDocumentNotFound
		}
		return nil, errors.Wrap(err, "selecting document")
	}
	return decode(row)
}

// Query narrows the rows in SQL (JSONB containment on postgres) and checks every filter on the decoded documents.
func (s *Store) Query(ctx context.Context, coll string, filters ...core.Filter) ([]core.Document, error) {
	q := `SELECT id, data FROM documents WHERE collection = ?`
	args := []interface{}{coll}
	if s.postgres && len(filters) > 0 {
		containment, err := containmentDoc(filters)
		if err != nil {
			return nil, err
		}
		q += ` AND data @> ?::jsonb`
		args = append(args, containment)
	}
	q += ` ORDER BY id`

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting documents")
	}

	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decode(row)
		if err != nil {
			return nil, err
		}
		ok, err := core.MatchFilters(doc, filters...)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// containmentDoc nests the filters along their dotted paths: {"a.b": 1} becomes {"a": {"b": 1}}.
func containmentDoc(filters []core.Filter) (string, error) {
	doc := make(core.Document)
	for _, f := range filters {
		if err := core.ApplyMutations(doc, core.SetField(f.Field, f.Value)); err != nil {
			return "", err
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "encoding filters")
	}
	return string(data), nil
}

func (s *Store) Insert(ctx context.Context, coll, id string, doc core.Document) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	data, err := encode(id, doc)
	if err != nil {
		return "", err
	}

	q := s.db.Rebind(`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?) ON CONFLICT (collection, id) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, q, coll, id, data)
	if err != nil {
		return "", errors.Wrap(err, "inserting document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", errors.Wrap(err, "inserting document")
	}
	if n == 0 {
		return "", core.ErrDocumentExists
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, coll, id string, doc core.Document) error {
	data, err := encode(id, doc)
	if err != nil {
		return err
	}
	q := s.db.Rebind(`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`)
	if _, err = s.db.ExecContext(ctx, q, coll, id, data); err != nil {
		return errors.Wrap(err, "upserting document")
	}
	return nil
}

// Update is a read-modify-write inside a transaction. On postgres the row is locked with FOR UPDATE;
// on SQLite writers are serialized by the single connection.
func (s *Store) Update(ctx context.Context, coll, id string, mutations ...core.Mutation) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `SELECT id, data FROM documents WHERE collection = ? AND id = ?`
	if s.postgres {
		q += ` FOR UPDATE`
	}
	var row docRow
	if err = tx.GetContext(ctx, &row, tx.Rebind(q), coll, id); err != nil {
		if err == sql.ErrNoRows {
			err = core.ErrDocumentNotFound
			return err
		}
		return errors.Wrap(err, "selecting document")
	}

	doc, err := decode(row)
	if err != nil {
		return err
	}
	if err = core.ApplyMutations(doc, mutations...); err != nil {
		return errors.Wrap(err, "applying mutations")
	}
	data, err := encode(id, doc)
	if err != nil {
		return err
	}

	q = tx.Rebind(`UPDATE documents SET data = ? WHERE collection = ? AND id = ?`)
	if _, err = tx.ExecContext(ctx, q, data, coll, id); err != nil {
		return errors.Wrap(err, "updating document")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing update")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	q := s.db.Rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`)
	res, err := s.db.ExecContext(ctx, q, coll, id)
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if n == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
