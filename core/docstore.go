package core

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Collections
const (
	CollectionCourses     = "courses"
	CollectionEnrollments = "enrollments"
	CollectionUsers       = "users"
	CollectionSettings    = "settings"
)

// IDField holds the document identifier inside every stored document.
const IDField = "id"

type (
	// Document is a schemaless record as held by the store.
	// Values are JSON values: string, float64, bool, nil, []interface{} and map[string]interface{}.
	Document map[string]interface{}

	// Filter is an equality condition on a (possibly dotted) field path.
	Filter struct {
		Field string
		Value interface{}
	}

	MutationOp int

	// Mutation is one step of a partial update. Paths are dot separated, e.g. "quizResults.lesson-1".
	Mutation struct {
		Op     MutationOp
		Path   string
		Value  interface{}
		Values []interface{}
	}

	// DocumentStore is the shared mutable resource holding courses, enrollments, users and settings.
	// Update applies all of its mutations atomically: readers observe either none or all of them.
	DocumentStore interface {
		Get(ctx context.Context, collection, id string) (Document, error)
		// Query returns the documents matching all filters (AND). No filters returns the whole collection.
		Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
		// Insert creates a document, generating an ID when id is empty.
		// It fails with ErrDocumentExists when a document with the same id already exists.
		Insert(ctx context.Context, collection, id string, doc Document) (string, error)
		// Set creates or fully replaces a document.
		Set(ctx context.Context, collection, id string, doc Document) error
		Update(ctx context.Context, collection, id string, mutations ...Mutation) error
		Delete(ctx context.Context, collection, id string) error
		Close() error
	}
)

const (
	OpSet MutationOp = iota
	OpUnion
)

func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// SetField sets the value at path, creating intermediate maps as needed.
func SetField(path string, value interface{}) Mutation {
	return Mutation{Op: OpSet, Path: path, Value: value}
}

// UnionField adds values to the array at path, skipping those already present.
func UnionField(path string, values ...interface{}) Mutation {
	return Mutation{Op: OpUnion, Path: path, Values: values}
}

// ToDocument converts v (typically a struct with json tags) to a Document.
func ToDocument(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling document")
	}
	var doc Document
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "unmarshalling document")
	}
	return doc, nil
}

// NormalizeValue returns the JSON representation of v as produced by encoding/json.
func NormalizeValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling value")
	}
	var out interface{}
	if err = json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshalling value")
	}
	return out, nil
}

// CloneDocument deep copies doc.
func CloneDocument(doc Document) (Document, error) {
	if doc == nil {
		return nil, nil
	}
	return ToDocument(doc)
}

// Lookup returns the value at the dotted path.
func (doc Document) Lookup(path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(doc)
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// MatchFilters reports whether doc satisfies every filter.
func MatchFilters(doc Document, filters ...Filter) (bool, error) {
	for _, f := range filters {
		want, err := NormalizeValue(f.Value)
		if err != nil {
			return false, err
		}
		got, ok := doc.Lookup(f.Field)
		if !ok || !reflect.DeepEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// ApplyMutations applies mutations to doc in order. doc is changed in place.
func ApplyMutations(doc Document, mutations ...Mutation) error {
	for _, m := range mutations {
		if m.Path == "" || m.Path == IDField {
			return errors.Errorf("invalid mutation path %q", m.Path)
		}
		parent, key, err := walkToParent(doc, m.Path)
		if err != nil {
			return err
		}

		switch m.Op {
		case OpSet:
			val, err := NormalizeValue(m.Value)
			if err != nil {
				return err
			}
			parent[key] = val
		case OpUnion:
			var arr []interface{}
			if existing, ok := parent[key]; ok && existing != nil {
				if arr, ok = existing.([]interface{}); !ok {
					return errors.Errorf("field %q is not an array", m.Path)
				}
			}
			for _, v := range m.Values {
				val, err := NormalizeValue(v)
				if err != nil {
					return err
				}
				if !containsValue(arr, val) {
					arr = append(arr, val)
				}
			}
			if arr == nil {
				arr = []interface{}{}
			}
			parent[key] = arr
		default:
			return errors.Errorf("unknown mutation op %d", m.Op)
		}
	}
	return nil
}

func walkToParent(doc Document, path string) (map[string]interface{}, string, error) {
	keys := strings.Split(path, ".")
	cur := map[string]interface{}(doc)
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key]
		if !ok || next == nil {
			child := make(map[string]interface{})
			cur[key] = child
			cur = child
			continue
		}
		child, ok := asMap(next)
		if !ok {
			return nil, "", errors.Errorf("field %q of path %q is not an object", key, path)
		}
		cur[key] = child
		cur = child
	}
	return cur, keys[len(keys)-1], nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

func containsValue(arr []interface{}, val interface{}) bool {
	for _, v := range arr {
		if reflect.DeepEqual(v, val) {
			return true
		}
	}
	return false
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
