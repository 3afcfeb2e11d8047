package reporting

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// JSONFileSink overwrites a file with the latest report on every Emit. The
// file is replaced atomically so readers never see a partial report.
type JSONFileSink struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileSink creates a sink writing to path.
func NewJSONFileSink(path string) *JSONFileSink {
	return &JSONFileSink{path: path}
}

// Emit writes report as indented JSON.
func (s *JSONFileSink) Emit(_ context.Context, report *schemas.DetectionReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".vigil-report-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace report file %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op; the file is closed after every write.
func (s *JSONFileSink) Close() error { return nil }

// JSONStreamSink writes one indented JSON document per report to a stream.
type JSONStreamSink struct {
	w  io.WriteCloser
	mu sync.Mutex
}

// NewJSONStreamSink takes ownership of w.
func NewJSONStreamSink(w io.WriteCloser) *JSONStreamSink {
	return &JSONStreamSink{w: w}
}

func (s *JSONStreamSink) Emit(_ context.Context, report *schemas.DetectionReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (s *JSONStreamSink) Close() error {
	return s.w.Close()
}
