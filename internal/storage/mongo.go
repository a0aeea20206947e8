package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// MongoSink writes each batch as a single document, so a batch is stored
// whole or not at all.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	count      atomic.Int64
	logger     *slog.Logger
}

// NewMongoSink connects to MongoDB.
func NewMongoSink(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Persist(ctx context.Context, batch types.RouteBatch) error {
	if err := checkBatch(s.Name(), batch); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, batch); err != nil {
		return persistErr(s.Name(), batch, fmt.Errorf("mongodb insert: %w", err))
	}

	total := s.count.Add(int64(batch.Len()))
	s.logger.Debug("batch stored in mongodb", "route", batch.Route.Name, "trips", batch.Len(), "total", total)
	return nil
}

func (s *MongoSink) Close() error {
	s.logger.Info("mongodb sink closing", "total_trips", s.count.Load())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
