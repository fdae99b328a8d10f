package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/articlecrawl/internal/types"
)

// MongoRecordStore keeps records in a MongoDB collection keyed by name.
type MongoRecordStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

type mongoRecord struct {
	Name    string         `bson:"_id"`
	Version int            `bson:"version"`
	SavedAt time.Time      `bson:"saved_at"`
	Fields  map[string]any `bson:"fields"`
}

// NewMongoRecordStore connects to MongoDB and selects the record collection.
func NewMongoRecordStore(uri, database, collection string, logger *slog.Logger) (*MongoRecordStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoRecordStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_record_store"),
	}, nil
}

func (s *MongoRecordStore) Name() string { return "mongodb" }

func (s *MongoRecordStore) WriteRecord(ctx context.Context, name string, rec types.Record) error {
	doc := mongoRecord{
		Name:    name,
		Version: rec.Version,
		SavedAt: rec.SavedAt,
		Fields:  rec.Fields,
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("upsert record: %w", err)}
	}

	s.logger.Debug("record saved", "name", name)
	return nil
}

func (s *MongoRecordStore) ReadRecord(ctx context.Context, name string) (types.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var doc mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Record{}, fmt.Errorf("%w: %s", types.ErrRecordNotFound, name)
		}
		return types.Record{}, &types.StorageError{Backend: "mongodb", Err: err}
	}

	return types.Record{
		Version: doc.Version,
		SavedAt: doc.SavedAt,
		Fields:  normalizeBSON(doc.Fields),
	}, nil
}

func (s *MongoRecordStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// normalizeBSON converts driver-specific containers back to plain Go
// values so records read the same from every backend.
func normalizeBSON(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case primitive.A:
		list := make([]any, len(x))
		for i, item := range x {
			list[i] = normalizeValue(item)
		}
		return list
	case primitive.D:
		return normalizeBSON(x.Map())
	case primitive.M:
		return normalizeBSON(x)
	case map[string]any:
		return normalizeBSON(x)
	default:
		return v
	}
}
