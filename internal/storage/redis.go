package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// RedisSink appends each batch to a Redis stream as one entry.
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
	count  atomic.Int64
	logger *slog.Logger
}

// NewRedisSink connects to Redis. A positive maxLen caps the stream
// approximately.
func NewRedisSink(ctx context.Context, addr string, db int, stream string, maxLen int64, logger *slog.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisSinkFromClient(client, stream, maxLen, logger), nil
}

// NewRedisSinkFromClient wraps an existing client.
func NewRedisSinkFromClient(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) *RedisSink {
	return &RedisSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With("component", "redis_sink", "stream", stream),
	}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Persist(ctx context.Context, batch types.RouteBatch) error {
	if err := checkBatch(s.Name(), batch); err != nil {
		return err
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return persistErr(s.Name(), batch, fmt.Errorf("encode batch: %w", err))
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"route":  batch.Route.Name,
			"region": batch.Route.RegionTag,
			"trips":  batch.Len(),
			"batch":  payload,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return persistErr(s.Name(), batch, fmt.Errorf("xadd: %w", err))
	}

	total := s.count.Add(int64(batch.Len()))
	s.logger.Debug("batch published", "route", batch.Route.Name, "trips", batch.Len(), "total", total)
	return nil
}

func (s *RedisSink) Close() error {
	s.logger.Info("redis sink closing", "total_trips", s.count.Load())
	return s.client.Close()
}
