package store

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atmx/settlement-analytics/internal/metrics"
	"github.com/atmx/settlement-analytics/internal/model"
)

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 1 << 20

// FileSource reads the daemon's JSONL settlement log. The parsed log is
// cached and only re-read when the file's mtime or size changes.
type FileSource struct {
	path string

	mu      sync.RWMutex
	modTime time.Time
	size    int64
	cached  []model.SettlementRecord
}

// NewFileSource creates a source for the given log path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// NewTradingDirSource creates a source for the settlement log inside the
// daemon's trading directory.
func NewTradingDirSource(tradingDir string) *FileSource {
	return NewFileSource(filepath.Join(tradingDir, SettlementLogName))
}

// Path returns the log path.
func (s *FileSource) Path() string { return s.path }

// ReadSettlements implements Source. A missing or unreadable log yields an
// empty slice. The returned slice must not be modified.
func (s *FileSource) ReadSettlements(ctx context.Context) ([]model.SettlementRecord, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("settlement log unreadable", "path", s.path, "err", err)
		}
		return []model.SettlementRecord{}, nil
	}

	s.mu.RLock()
	if info.ModTime().Equal(s.modTime) && info.Size() == s.size && s.cached != nil {
		records := s.cached
		s.mu.RUnlock()
		return records, nil
	}
	s.mu.RUnlock()

	records, err := s.load(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Warn("settlement log read failed", "path", s.path, "err", err)
		return []model.SettlementRecord{}, nil
	}

	s.mu.Lock()
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.cached = records
	s.mu.Unlock()

	metrics.SettlementsRead.Set(float64(len(records)))
	return records, nil
}

func (s *FileSource) load(ctx context.Context) ([]model.SettlementRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, malformed, err := ReadJSONL(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if malformed > 0 {
		slog.Debug("skipped malformed settlement lines", "path", s.path, "count", malformed)
	}
	return records, nil
}

// ReadJSONL parses a JSONL stream, skipping blank and malformed lines.
// Lines longer than maxLineBytes count as malformed. It returns the records
// in stream order and the number of skipped lines.
func ReadJSONL(ctx context.Context, r io.Reader) ([]model.SettlementRecord, int, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	records := []model.SettlementRecord{}
	malformed := 0
	for n := 0; ; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, malformed, err
			}
		}
		line, tooLong, err := readLine(br, maxLineBytes)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, malformed, err
		}

		line = bytes.TrimSpace(line)
		switch {
		case tooLong:
			malformed++
			metrics.MalformedLinesTotal.Inc()
		case len(line) == 0:
		default:
			rec, nerr := Normalize(line)
			if nerr != nil {
				malformed++
				metrics.MalformedLinesTotal.Inc()
			} else {
				records = append(records, rec)
			}
		}

		if errors.Is(err, io.EOF) {
			return records, malformed, nil
		}
	}
}

// readLine reads up to and including the next newline. A line over limit is
// drained and reported as tooLong with no content.
func readLine(br *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, err
	}
}
