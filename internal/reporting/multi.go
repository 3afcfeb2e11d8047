package reporting

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// Multi delivers every report to all of its sinks. A failing sink never
// prevents delivery to the others.
type Multi struct {
	logger *zap.Logger
	sinks  []schemas.ReportSink
}

// NewMulti fans out to sinks, skipping nil entries.
func NewMulti(logger *zap.Logger, sinks ...schemas.ReportSink) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Multi{logger: logger.With(zap.String("component", "report_fanout"))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Add appends a sink.
func (m *Multi) Add(sink schemas.ReportSink) {
	if sink != nil {
		m.sinks = append(m.sinks, sink)
	}
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Emit sends report to every sink and joins their errors.
func (m *Multi) Emit(ctx context.Context, report *schemas.DetectionReport) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Emit(ctx, report); err != nil {
			m.logger.Warn("Report sink failed", zap.Int("sink", i), zap.Error(err))
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
