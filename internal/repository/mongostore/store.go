// Package mongostore keeps each record as a MongoDB document whose fields are
// the record body plus bookkeeping fields prefixed with an underscore.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"parking_network/internal/repository"
)

const (
	fieldID      = "_id"
	fieldVersion = "_version"
	fieldSeq     = "_seq"

	countersCollection = "_counters"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ repository.RecordStore = (*Store)(nil)

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("RecordStore.%s: %w: %w", op, repository.ErrStoreUnavailable, err)
}

// toDocument converts a JSON body into an ordered BSON document.
func toDocument(body json.RawMessage) (bson.D, error) {
	var doc bson.D
	if len(body) == 0 {
		return bson.D{}, nil
	}
	if err := bson.UnmarshalExtJSON(body, false, &doc); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return doc, nil
}

// fromDocument strips bookkeeping fields and renders the body as plain JSON.
func fromDocument(doc bson.D) (repository.Record, error) {
	rec := repository.Record{}
	body := make(bson.D, 0, len(doc))
	for _, e := range doc {
		switch e.Key {
		case fieldID:
			rec.ID = fmt.Sprint(e.Value)
		case fieldVersion:
			switch v := e.Value.(type) {
			case int64:
				rec.Version = v
			case int32:
				rec.Version = int64(v)
			case float64:
				rec.Version = int64(v)
			}
		case fieldSeq:
		default:
			body = append(body, e)
		}
	}
	raw, err := bson.MarshalExtJSON(body, false, false)
	if err != nil {
		return repository.Record{}, fmt.Errorf("encode body: %w", err)
	}
	rec.Body = raw
	return rec, nil
}

func (s *Store) nextSeq(ctx context.Context, collection string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": collection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (s *Store) find(ctx context.Context, op, collection string, filter bson.M) ([]repository.Record, error) {
	cur, err := s.db.Collection(collection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: fieldSeq, Value: 1}}))
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer cur.Close(ctx)

	out := make([]repository.Record, 0)
	for cur.Next(ctx) {
		var doc bson.D
		if err := cur.Decode(&doc); err != nil {
			return nil, unavailable(op+" (decoding)", err)
		}
		rec, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable(op+" (cursor error)", err)
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]repository.Record, error) {
	return s.find(ctx, "List", collection, bson.M{})
}

func (s *Store) Find(ctx context.Context, collection, field, value string) ([]repository.Record, error) {
	return s.find(ctx, "Find", collection, bson.M{field: value})
}

func (s *Store) Get(ctx context.Context, collection, id string) (repository.Record, error) {
	var doc bson.D
	err := s.db.Collection(collection).FindOne(ctx, bson.M{fieldID: id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.Record{}, repository.ErrNotFound
		}
		return repository.Record{}, unavailable("Get", err)
	}
	return fromDocument(doc)
}

func (s *Store) Create(ctx context.Context, collection string, rec repository.Record) (repository.Record, error) {
	body, err := toDocument(rec.Body)
	if err != nil {
		return repository.Record{}, err
	}
	seq, err := s.nextSeq(ctx, collection)
	if err != nil {
		return repository.Record{}, unavailable("Create (sequence)", err)
	}
	doc := append(bson.D{
		{Key: fieldID, Value: rec.ID},
		{Key: fieldVersion, Value: int64(1)},
		{Key: fieldSeq, Value: seq},
	}, body...)
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.Record{}, fmt.Errorf("%w: %s/%s", repository.ErrDuplicateEntry, collection, rec.ID)
		}
		return repository.Record{}, unavailable("Create", err)
	}
	rec.Version = 1
	return rec, nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, expectedVersion int64, body json.RawMessage) (repository.Record, error) {
	doc, err := toDocument(body)
	if err != nil {
		return repository.Record{}, err
	}
	var existing struct {
		Seq int64 `bson:"_seq"`
	}
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{fieldID: id}).Decode(&existing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.Record{}, repository.ErrNotFound
		}
		return repository.Record{}, unavailable("Replace", err)
	}
	replacement := append(bson.D{
		{Key: fieldID, Value: id},
		{Key: fieldVersion, Value: expectedVersion + 1},
		{Key: fieldSeq, Value: existing.Seq},
	}, doc...)
	res, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{fieldID: id, fieldVersion: expectedVersion}, replacement)
	if err != nil {
		return repository.Record{}, unavailable("Replace", err)
	}
	if res.MatchedCount == 0 {
		return repository.Record{}, s.staleOrMissing(ctx, collection, id, expectedVersion)
	}
	return repository.Record{ID: id, Version: expectedVersion + 1, Body: body}, nil
}

func (s *Store) Patch(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]any) (repository.Record, error) {
	// Round-trip through JSON so stored values match what a Replace would write.
	raw, err := json.Marshal(fields)
	if err != nil {
		return repository.Record{}, fmt.Errorf("RecordStore.Patch: %w", err)
	}
	set, err := toDocument(raw)
	if err != nil {
		return repository.Record{}, err
	}
	var doc bson.D
	err = s.db.Collection(collection).FindOneAndUpdate(ctx,
		bson.M{fieldID: id, fieldVersion: expectedVersion},
		bson.M{"$set": set, "$inc": bson.M{fieldVersion: int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.Record{}, s.staleOrMissing(ctx, collection, id, expectedVersion)
		}
		return repository.Record{}, unavailable("Patch", err)
	}
	return fromDocument(doc)
}

func (s *Store) staleOrMissing(ctx context.Context, collection, id string, expectedVersion int64) error {
	cur, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s/%s at version %d, expected %d", repository.ErrStaleWrite, collection, id, cur.Version, expectedVersion)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{fieldID: id})
	if err != nil {
		return unavailable("Delete", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }
