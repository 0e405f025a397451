package sqlstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/storage/docstore/docstoretest"
)

func newSQLiteStore(t *testing.T) *Store {
	// one named in-memory database per test
	s, err := OpenSQLite(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	return s
}

func TestStore_SQLite(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) core.DocumentStore { return newSQLiteStore(t) })
}

func TestStore_InvalidDocument(t *testing.T) {
	s := newSQLiteStore(t)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `INSERT INTO documents (collection, id, data) VALUES ('courses', 'c1', '{not json')`)
	require.NoError(t, err)

	_, err = s.Get(ctx, "courses", "c1")
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestContainmentDoc(t *testing.T) {
	got, err := containmentDoc([]core.Filter{core.Where("userId", "u1"), core.Where("meta.paid", true)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u1","meta":{"paid":true}}`, got)
}
