// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
)

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// Options configures the local report sinks.
type Options struct {
	// Format is "json", "console" or "both".
	Format string
	// OutputPath is the JSON report file. Empty or "stdout" writes JSON to Console.
	OutputPath string
	Thresholds config.ThresholdsConfig
	// Console receives the human-readable report. Defaults to os.Stdout.
	Console io.Writer
}

// New creates the local report sinks for the given format. "both" fans out to
// the JSON file sink and the console sink.
func New(opts Options, logger *zap.Logger) (schemas.ReportSink, error) {
	if logger == nil {
		return nil, fmt.Errorf("cannot initialize reporting with a nil logger")
	}
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	jsonSink := func() schemas.ReportSink {
		if opts.OutputPath == "" || opts.OutputPath == "stdout" {
			return NewJSONStreamSink(&nopWriteCloser{console})
		}
		return NewJSONFileSink(opts.OutputPath)
	}

	switch opts.Format {
	case "json":
		return jsonSink(), nil
	case "console":
		return NewConsoleSink(console, opts.Thresholds), nil
	case "both", "":
		return NewMulti(logger, jsonSink(), NewConsoleSink(console, opts.Thresholds)), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}
