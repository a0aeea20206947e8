package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// FileSink appends batches as newline-delimited JSON, one batch per line.
// With compression on, the stream is brotli encoded and each batch is
// flushed as it is written.
type FileSink struct {
	path   string
	file   *os.File
	bw     *brotli.Writer
	w      io.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewFileSink opens the output file for appending so earlier runs survive a
// resumed crawl. A brotli stream cannot be extended, so a compressed sink
// whose path already holds data writes to the next free part file instead
// (routes.jsonl -> routes.1.jsonl).
func NewFileSink(outputPath string, compress bool, logger *slog.Logger) (*FileSink, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var (
		f    *os.File
		path = outputPath
		err  error
	)
	if compress {
		f, path, err = createPart(outputPath)
	} else {
		f, err = os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	s := &FileSink{
		path:   path,
		file:   f,
		w:      f,
		logger: logger.With("component", "file_sink"),
	}
	if compress {
		s.bw = brotli.NewWriterLevel(f, brotli.DefaultCompression)
		s.w = s.bw
	}
	return s, nil
}

// createPart creates outputPath, or the first free numbered part beside it
// when outputPath already holds data. An empty leftover file is reused.
func createPart(outputPath string) (*os.File, string, error) {
	if fi, err := os.Stat(outputPath); err == nil && fi.Size() == 0 {
		f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_TRUNC, 0o644)
		return f, outputPath, err
	}

	dir, name := filepath.Split(outputPath)
	stem, ext := name, ""
	if i := strings.Index(name, "."); i > 0 {
		stem, ext = name[:i], name[i:]
	}

	path := outputPath
	for part := 1; ; part++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s.%d%s", stem, part, ext))
	}
}

// Path returns the file the sink writes to.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Name() string { return "jsonl" }

func (s *FileSink) Persist(_ context.Context, batch types.RouteBatch) error {
	if err := checkBatch(s.Name(), batch); err != nil {
		return err
	}

	line, err := json.Marshal(batch)
	if err != nil {
		return persistErr(s.Name(), batch, fmt.Errorf("encode JSONL: %w", err))
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	// a single Write keeps the line whole
	if _, err := s.w.Write(line); err != nil {
		return persistErr(s.Name(), batch, fmt.Errorf("write JSONL: %w", err))
	}
	if s.bw != nil {
		if err := s.bw.Flush(); err != nil {
			return persistErr(s.Name(), batch, fmt.Errorf("flush brotli: %w", err))
		}
	}
	s.count += batch.Len()
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("JSONL written", "path", s.path, "trips", s.count)
	if s.bw != nil {
		if err := s.bw.Close(); err != nil {
			s.file.Close()
			return fmt.Errorf("close brotli: %w", err)
		}
	}
	return s.file.Close()
}
