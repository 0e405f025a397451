// Package docstoretest holds the behaviour every core.DocumentStore must have.
package docstoretest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mabu007/czane-beauty-academy/core"
)

// Run runs the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) core.DocumentStore) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s core.DocumentStore)
	}{
		{"InsertGet", testInsertGet},
		{"InsertDuplicate", testInsertDuplicate},
		{"Set", testSet},
		{"Query", testQuery},
		{"UpdateAtomic", testUpdateAtomic},
		{"UpdateUnionIdempotent", testUpdateUnionIdempotent},
		{"UpdateNullFields", testUpdateNullFields},
		{"UpdateMissing", testUpdateMissing},
		{"Delete", testDelete},
		{"ConcurrentInsert", testConcurrentInsert},
		{"ConcurrentUnion", testConcurrentUnion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer func() { _ = s.Close() }()
			tt.fn(t, s)
		})
	}
}

var ctx = context.Background()

func testInsertGet(t *testing.T, s core.DocumentStore) {
	id, err := s.Insert(ctx, "things", "", core.Document{"name": "wax", "count": 3, "tags": []string{"a"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(ctx, "things", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc[core.IDField])
	assert.Equal(t, "wax", doc["name"])
	assert.Equal(t, float64(3), doc["count"])
	assert.Equal(t, []interface{}{"a"}, doc["tags"])

	_, err = s.Get(ctx, "things", "missing")
	assert.Equal(t, core.ErrDocumentNotFound, err)
	_, err = s.Get(ctx, "other", id)
	assert.Equal(t, core.ErrDocumentNotFound, err, "collections are separate")
}

func testInsertDuplicate(t *testing.T, s core.DocumentStore) {
	_, err := s.Insert(ctx, "things", "t1", core.Document{"v": 1})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "things", "t1", core.Document{"v": 2})
	assert.Equal(t, core.ErrDocumentExists, err)

	doc, err := s.Get(ctx, "things", "t1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), doc["v"], "first insert wins")
}

func testSet(t *testing.T, s core.DocumentStore) {
	require.NoError(t, s.Set(ctx, "settings", "tpl", core.Document{"a": "x", "b": "y"}))
	require.NoError(t, s.Set(ctx, "settings", "tpl", core.Document{"a": "z"}))

	doc, err := s.Get(ctx, "settings", "tpl")
	require.NoError(t, err)
	assert.Equal(t, "z", doc["a"])
	_, ok := doc["b"]
	assert.False(t, ok, "set replaces the whole document")
}

func testQuery(t *testing.T, s core.DocumentStore) {
	for id, doc := range map[string]core.Document{
		"e1": {"userId": "u1", "courseId": "c1", "meta": map[string]interface{}{"paid": true}},
		"e2": {"userId": "u1", "courseId": "c2", "meta": map[string]interface{}{"paid": false}},
		"e3": {"userId": "u2", "courseId": "c1"},
	} {
		_, err := s.Insert(ctx, "enrollments", id, doc)
		require.NoError(t, err)
	}

	ids := func(docs []core.Document) []string {
		res := make([]string, 0, len(docs))
		for _, d := range docs {
			res = append(res, d[core.IDField].(string))
		}
		return res
	}

	docs, err := s.Query(ctx, "enrollments")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e3"}, ids(docs))

	docs, err = s.Query(ctx, "enrollments", core.Where("userId", "u1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids(docs))

	docs, err = s.Query(ctx, "enrollments", core.Where("userId", "u1"), core.Where("courseId", "c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids(docs))

	docs, err = s.Query(ctx, "enrollments", core.Where("meta.paid", true))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids(docs))

	docs, err = s.Query(ctx, "enrollments", core.Where("userId", "nobody"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testUpdateAtomic(t *testing.T, s core.DocumentStore) {
	_, err := s.Insert(ctx, "enrollments", "e1", core.Document{"completedLessons": []string{"l1"}})
	require.NoError(t, err)

	err = s.Update(ctx, "enrollments", "e1",
		core.SetField("quizResults.l2", map[string]interface{}{"score": 3, "passed": true}),
		core.UnionField("completedLessons", "l2"),
	)
	require.NoError(t, err)

	doc, err := s.Get(ctx, "enrollments", "e1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"l1", "l2"}, doc["completedLessons"])
	result, ok := doc.Lookup("quizResults.l2.score")
	require.True(t, ok)
	assert.Equal(t, float64(3), result)

	require.NoError(t, s.Update(ctx, "enrollments", "e1", core.SetField("certificateIssued", true)))
	doc, err = s.Get(ctx, "enrollments", "e1")
	require.NoError(t, err)
	assert.Equal(t, true, doc["certificateIssued"])
	assert.Len(t, doc["completedLessons"], 2, "untouched fields are kept")
}

func testUpdateUnionIdempotent(t *testing.T, s core.DocumentStore) {
	_, err := s.Insert(ctx, "enrollments", "e1", core.Document{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(ctx, "enrollments", "e1", core.UnionField("completedLessons", "l1")))
	}
	doc, err := s.Get(ctx, "enrollments", "e1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"l1"}, doc["completedLessons"])
}

func testUpdateNullFields(t *testing.T, s core.DocumentStore) {
	_, err := s.Insert(ctx, "enrollments", "e1", core.Document{"completedLessons": nil, "quizResults": nil})
	require.NoError(t, err)

	err = s.Update(ctx, "enrollments", "e1",
		core.UnionField("completedLessons", "l1"),
		core.SetField("quizResults.l1.score", 2),
	)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, "enrollments", "e1", core.UnionField("completedLessons", "l2")))

	doc, err := s.Get(ctx, "enrollments", "e1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"l1", "l2"}, doc["completedLessons"])
	score, ok := doc.Lookup("quizResults.l1.score")
	require.True(t, ok)
	assert.Equal(t, float64(2), score)
}

func testUpdateMissing(t *testing.T, s core.DocumentStore) {
	err := s.Update(ctx, "enrollments", "missing", core.SetField("a", 1))
	assert.Equal(t, core.ErrDocumentNotFound, err)
}

func testDelete(t *testing.T, s core.DocumentStore) {
	_, err := s.Insert(ctx, "courses", "c1", core.Document{"title": "x"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "courses", "c1"))
	_, err = s.Get(ctx, "courses", "c1")
	assert.Equal(t, core.ErrDocumentNotFound, err)
	assert.Equal(t, core.ErrDocumentNotFound, s.Delete(ctx, "courses", "c1"))
}

func testConcurrentInsert(t *testing.T, s core.DocumentStore) {
	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dups    int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, "enrollments", "same", core.Document{"userId": "u1"})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				created++
			case core.ErrDocumentExists:
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, dups)
}

func testConcurrentUnion(t *testing.T, s core.DocumentStore) {
	_, err := s.Insert(ctx, "enrollments", "e1", core.Document{"completedLessons": []string{}})
	require.NoError(t, err)

	lessons := []string{"l1", "l2", "l3", "l4", "l5", "l6"}
	var wg sync.WaitGroup
	for _, l := range lessons {
		wg.Add(1)
		go func(l string) {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, "enrollments", "e1", core.UnionField("completedLessons", l)))
		}(l)
	}
	wg.Wait()

	doc, err := s.Get(ctx, "enrollments", "e1")
	require.NoError(t, err)
	assert.Len(t, doc["completedLessons"], len(lessons), "no lost updates")
}
