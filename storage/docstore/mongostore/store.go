// Package mongostore is a core.DocumentStore on MongoDB. Document ids are stored as _id.
package mongostore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mabu007/czane-beauty-academy/core"
)

const connectTimeout = 10 * time.Second

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ core.DocumentStore = (*Store)(nil) // interface compliance check

// Open connects to uri and waits for the server to answer.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging mongodb")
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (core.Document, error) {
	var raw bson.M
	if err := s.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, core.ErrDocumentNotFound
		}
		return nil, errors.Wrap(err, "finding document")
	}
	return fromBSON(raw), nil
}

func (s *Store) Query(ctx context.Context, coll string, filters ...core.Filter) ([]core.Document, error) {
	filter := bson.M{}
	for _, f := range filters {
		val, err := core.NormalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		filter[f.Field] = val
	}

	cur, err := s.db.Collection(coll).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "finding documents")
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []core.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err = cur.Decode(&raw); err != nil {
			return nil, errors.Wrap(err, "decoding document")
		}
		docs = append(docs, fromBSON(raw))
	}
	if err = cur.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating documents")
	}
	if docs == nil {
		docs = []core.Document{}
	}
	return docs, nil
}

func (s *Store) Insert(ctx context.Context, coll, id string, doc core.Document) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	stored, err := toBSON(id, doc)
	if err != nil {
		return "", err
	}
	if _, err = s.db.Collection(coll).InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", core.ErrDocumentExists
		}
		return "", errors.Wrap(err, "inserting document")
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, coll, id string, doc core.Document) error {
	stored, err := toBSON(id, doc)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(coll).ReplaceOne(ctx, bson.M{"_id": id}, stored, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "replacing document")
	}
	return nil
}

// Update maps the mutations to $set and $addToSet/$each operators of a single UpdateOne.
func (s *Store) Update(ctx context.Context, coll, id string, mutations ...core.Mutation) error {
	set, addToSet := bson.M{}, bson.M{}
	for _, m := range mutations {
		if m.Path == "" || m.Path == core.IDField {
			return errors.Errorf("invalid mutation path %q", m.Path)
		}
		switch m.Op {
		case core.OpSet:
			val, err := core.NormalizeValue(m.Value)
			if err != nil {
				return err
			}
			set[m.Path] = val
		case core.OpUnion:
			vals := make(bson.A, 0, len(m.Values))
			for _, v := range m.Values {
				val, err := core.NormalizeValue(v)
				if err != nil {
					return err
				}
				vals = append(vals, val)
			}
			addToSet[m.Path] = bson.M{"$each": vals}
		default:
			return errors.Errorf("unknown mutation op %d", m.Op)
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(update) == 0 {
		// still report missing documents
		_, err := s.Get(ctx, coll, id)
		return err
	}

	if err := s.fillNulls(ctx, coll, id, mutations); err != nil {
		return err
	}
	res, err := s.db.Collection(coll).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.Wrap(err, "updating document")
	}
	if res.MatchedCount == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

// fillNulls replaces null union targets with [] and null parents of nested paths with {}.
// $addToSet and dotted $set fail on a null field.
func (s *Store) fillNulls(ctx context.Context, coll, id string, mutations []core.Mutation) error {
	defaults := map[string]interface{}{}
	for _, m := range mutations {
		keys := strings.Split(m.Path, ".")
		for i := 1; i < len(keys); i++ {
			defaults[strings.Join(keys[:i], ".")] = bson.M{}
		}
		if m.Op == core.OpUnion {
			defaults[m.Path] = bson.A{}
		}
	}
	if len(defaults) == 0 {
		return nil
	}

	paths := make([]string, 0, len(defaults))
	for path := range defaults {
		paths = append(paths, path)
	}
	// parents first, one stage per path so nested paths never collide
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return paths[i] < paths[j]
	})

	nulls := make(bson.A, 0, len(paths))
	pipeline := make(mongo.Pipeline, 0, len(paths))
	for _, path := range paths {
		nulls = append(nulls, bson.M{path: bson.M{"$type": "null"}})
		pipeline = append(pipeline, bson.D{{Key: "$set", Value: bson.M{
			path: bson.M{"$ifNull": bson.A{"$" + path, bson.M{"$literal": defaults[path]}}},
		}}})
	}

	filter := bson.M{"_id": id, "$or": nulls}
	if _, err := s.db.Collection(coll).UpdateOne(ctx, filter, pipeline); err != nil {
		return errors.Wrap(err, "filling null fields")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	res, err := s.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if res.DeletedCount == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func toBSON(id string, doc core.Document) (bson.M, error) {
	stored, err := core.CloneDocument(doc)
	if err != nil {
		return nil, err
	}
	out := bson.M(stored)
	if out == nil {
		out = bson.M{}
	}
	out["_id"] = id
	out[core.IDField] = id
	return out, nil
}

func fromBSON(raw bson.M) core.Document {
	doc, _ := fromBSONValue(raw).(map[string]interface{})
	if id, ok := doc["_id"]; ok {
		doc[core.IDField] = id
		delete(doc, "_id")
	}
	return doc
}

// fromBSONValue converts decoded BSON to the JSON value types documents are made of.
func fromBSONValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return fromBSONMap(t)
	case map[string]interface{}:
		return fromBSONMap(t)
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = fromBSONValue(e.Value)
		}
		return m
	case bson.A:
		return fromBSONSlice(t)
	case []interface{}:
		return fromBSONSlice(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	}
	return v
}

func fromBSONMap(in map[string]interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(in))
	for k, v := range in {
		m[k] = fromBSONValue(v)
	}
	return m
}

func fromBSONSlice(in []interface{}) []interface{} {
	s := make([]interface{}, len(in))
	for i, v := range in {
		s[i] = fromBSONValue(v)
	}
	return s
}
