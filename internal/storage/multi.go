package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// MultiSink writes batches to multiple backends.
type MultiSink struct {
	backends []Sink
	logger   *slog.Logger
}

// NewMultiSink creates a sink that fans out to multiple backends.
func NewMultiSink(backends []Sink, logger *slog.Logger) *MultiSink {
	return &MultiSink{
		backends: backends,
		logger:   logger.With("component", "multi_sink"),
	}
}

func (s *MultiSink) Name() string { return "multi" }

// Persist hands the batch to every backend. Each backend is atomic on its
// own; a failure in one does not stop the others.
func (s *MultiSink) Persist(ctx context.Context, batch types.RouteBatch) error {
	var errs []error
	for _, backend := range s.backends {
		if err := backend.Persist(ctx, batch); err != nil {
			s.logger.Error("backend persist failed", "backend", backend.Name(), "route", batch.Route.Name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *MultiSink) Close() error {
	var errs []error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
