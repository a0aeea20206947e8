// Package storage persists route batches. Every backend writes a batch
// atomically: either all of its trips are stored or none are.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/config"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// Sink is the interface for all storage backends.
type Sink interface {
	// Persist stores one route batch atomically. Failures are returned as
	// *types.PersistError.
	Persist(ctx context.Context, batch types.RouteBatch) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New creates the sink selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Sink, error) {
	if cfg.Type == "multi" {
		sinks := make([]Sink, 0, len(cfg.Backends))
		for _, backend := range cfg.Backends {
			sub := cfg
			sub.Type = backend
			s, err := newBackend(ctx, sub, logger)
			if err != nil {
				for _, opened := range sinks {
					_ = opened.Close()
				}
				return nil, err
			}
			sinks = append(sinks, s)
		}
		return NewMultiSink(sinks, logger), nil
	}
	return newBackend(ctx, cfg, logger)
}

func newBackend(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Type {
	case "mysql", "sqlite":
		return OpenSQLSink(ctx, cfg.Type, cfg.DSN, cfg.Table, logger)
	case "mongodb":
		return NewMongoSink(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	case "redis":
		return NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisMaxLen, logger)
	case "jsonl":
		return NewFileSink(cfg.OutputPath, cfg.Compress, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func persistErr(backend string, batch types.RouteBatch, err error) error {
	return &types.PersistError{Backend: backend, Route: batch.Route.Name, Err: err}
}

func checkBatch(backend string, batch types.RouteBatch) error {
	if batch.Len() == 0 {
		return persistErr(backend, batch, types.ErrEmptyBatch)
	}
	return nil
}
