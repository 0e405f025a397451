// Package memstore is an in-memory core.DocumentStore, used in debug and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
)

type collection map[string]core.Document

type Store struct {
	mu    sync.RWMutex
	colls map[string]collection
}

var _ core.DocumentStore = (*Store)(nil) // interface compliance check

func New() *Store {
	return &Store{colls: make(map[string]collection)}
}

func (s *Store) coll(name string) collection {
	c, ok := s.colls[name]
	if !ok {
		c = make(collection)
		s.colls[name] = c
	}
	return c
}

func (s *Store) Get(ctx context.Context, coll, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.colls[coll][id]
	if !ok {
		return nil, core.ErrDocumentNotFound
	}
	return core.CloneDocument(doc)
}

func (s *Store) Query(ctx context.Context, coll string, filters ...core.Filter) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.colls[coll]))
	for id := range s.colls[coll] {
		ids = append(ids, id)
	}
	sort.Strings(ids) // stable results

	docs := make([]core.Document, 0, len(ids))
	for _, id := range ids {
		doc := s.colls[coll][id]
		ok, err := core.MatchFilters(doc, filters...)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		clone, err := core.CloneDocument(doc)
		if err != nil {
			return nil, err
		}
		docs = append(docs, clone)
	}
	return docs, nil
}

func (s *Store) Insert(ctx context.Context, coll, id string, doc core.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	stored, err := core.CloneDocument(doc)
	if err != nil {
		return "", err
	}
	if stored == nil {
		stored = core.Document{}
	}
	stored[core.IDField] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll)
	if _, exists := c[id]; exists {
		return "", core.ErrDocumentExists
	}
	c[id] = stored
	return id, nil
}

func (s *Store) Set(ctx context.Context, coll, id string, doc core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := core.CloneDocument(doc)
	if err != nil {
		return err
	}
	if stored == nil {
		stored = core.Document{}
	}
	stored[core.IDField] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	s.coll(coll)[id] = stored
	return nil
}

// Update applies the mutations on a copy, so a failing mutation leaves the document untouched.
func (s *Store) Update(ctx context.Context, coll, id string, mutations ...core.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.colls[coll][id]
	if !ok {
		return core.ErrDocumentNotFound
	}
	updated, err := core.CloneDocument(doc)
	if err != nil {
		return err
	}
	if err = core.ApplyMutations(updated, mutations...); err != nil {
		return errors.Wrap(err, "applying mutations")
	}
	s.colls[coll][id] = updated
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.colls[coll][id]; !ok {
		return core.ErrDocumentNotFound
	}
	delete(s.colls[coll], id)
	return nil
}

func (s *Store) Close() error { return nil }
