package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
	"github.com/xkilldash9x/vigil/internal/engine"
	"github.com/xkilldash9x/vigil/internal/observability"
	"github.com/xkilldash9x/vigil/internal/platform"
	"github.com/xkilldash9x/vigil/internal/reporting"
)

// scanDeps are the host facing collaborators of the scan command. Tests
// replace them to run scans without touching the workstation or a database.
type scanDeps struct {
	newProbes func(cfg config.Interface, logger *zap.Logger) (*platform.Probes, error)
	stores    storeProvider
	console   io.Writer
}

func defaultScanDeps() scanDeps {
	return scanDeps{
		newProbes: platform.NewProbes,
		stores:    NewStoreProvider(),
		console:   os.Stdout,
	}
}

// scanFlags hold the command line overrides for one invocation.
type scanFlags struct {
	once      bool
	interval  int
	maxCycles int
	output    string
	format    string
}

// newScanCmd creates and configures the `scan` command.
func newScanCmd(deps scanDeps) *cobra.Command {
	var flags scanFlags

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Monitors this workstation and emits a detection report every cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := applyScanFlags(cmd, cfg, flags); err != nil {
				return err
			}
			return runScan(ctx, cfg, logger, deps)
		},
	}

	scanCmd.Flags().BoolVar(&flags.once, "once", false, "Run a single scan cycle and exit.")
	scanCmd.Flags().IntVar(&flags.interval, "interval", 0, "Seconds between scan cycles. (Overrides config/env)")
	scanCmd.Flags().IntVar(&flags.maxCycles, "max-cycles", 0, "Stop after this many cycles, 0 runs until interrupted. (Overrides config/env)")
	scanCmd.Flags().StringVarP(&flags.output, "output", "o", "", "Path of the JSON report file, or 'stdout'. (Overrides config/env)")
	scanCmd.Flags().StringVarP(&flags.format, "format", "f", "", "Report format: 'json', 'console' or 'both'. (Overrides config/env)")

	return scanCmd
}

// applyScanFlags copies the flags the user actually set onto cfg and
// revalidates it.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config, flags scanFlags) error {
	if cmd.Flags().Changed("interval") {
		cfg.ScanCfg.IntervalSeconds = flags.interval
	}
	if cmd.Flags().Changed("max-cycles") {
		cfg.ScanCfg.MaxCycles = flags.maxCycles
	}
	if flags.once {
		cfg.ScanCfg.MaxCycles = 1
	}
	if cmd.Flags().Changed("output") {
		cfg.ReportCfg.OutputPath = flags.output
	}
	if cmd.Flags().Changed("format") {
		cfg.ReportCfg.Format = flags.format
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid scan options: %w", err)
	}
	return nil
}

// runScan wires the sinks, probes and engine and runs the scan loop.
func runScan(ctx context.Context, cfg config.Interface, logger *zap.Logger, deps scanDeps) error {
	sink, cleanup, err := buildSinks(ctx, cfg, logger, deps)
	if err != nil {
		return err
	}
	defer cleanup()

	probes, err := deps.newProbes(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize host probes: %w", err)
	}

	eng, err := engine.Assemble(cfg, logger, probes, sink)
	if err != nil {
		return fmt.Errorf("failed to initialize scan engine: %w", err)
	}

	logger.Info("Monitoring session started", zap.String("session_id", eng.SessionID()))
	runErr := eng.Run(ctx)
	logger.Info("Monitoring session finished",
		zap.String("session_id", eng.SessionID()),
		zap.Uint64("cycles", eng.ScanCount()))

	if errors.Is(runErr, engine.ErrHaltedOnModuleFailure) {
		logger.Error("Scan halted on module failure", zap.Error(runErr))
	}
	return runErr
}

// buildSinks creates the local report sinks and, when a database is
// configured, the postgres sink.
func buildSinks(ctx context.Context, cfg config.Interface, logger *zap.Logger, deps scanDeps) (schemas.ReportSink, func(), error) {
	rep := cfg.Report()
	local, err := reporting.New(reporting.Options{
		Format:     rep.Format,
		OutputPath: rep.OutputPath,
		Thresholds: cfg.Thresholds(),
		Console:    deps.console,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize reporter: %w", err)
	}

	multi := reporting.NewMulti(logger, local)
	var closeStore func()
	if cfg.Database().URL != "" {
		st, cleanup, err := deps.stores.Create(ctx, cfg)
		if err != nil {
			_ = multi.Close()
			return nil, nil, fmt.Errorf("failed to initialize report store: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			if cleanup != nil {
				cleanup()
			}
			_ = multi.Close()
			return nil, nil, fmt.Errorf("failed to prepare report tables: %w", err)
		}
		multi.Add(st)
		closeStore = cleanup
	}

	return multi, func() {
		if err := multi.Close(); err != nil {
			logger.Warn("Failed to close report sinks cleanly.", zap.Error(err))
		}
		if closeStore != nil {
			closeStore()
		}
	}, nil
}
