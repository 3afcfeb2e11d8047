// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
	"github.com/xkilldash9x/vigil/internal/observability"
	"github.com/xkilldash9x/vigil/internal/store"
)

// reportStore is the slice of store.Store the CLI relies on.
type reportStore interface {
	schemas.ReportSink
	Migrate(ctx context.Context) error
	ReportsBySession(ctx context.Context, sessionID string) ([]store.ReportSummary, error)
}

// storeProvider defines an interface for components that can create a data store.
// This abstraction is crucial for testing, as it allows for the injection of a
// mock store instead of a live database connection.
type storeProvider interface {
	// Create initializes and returns a store, a cleanup function to release
	// resources, and an error if the creation fails.
	Create(ctx context.Context, cfg config.Interface) (reportStore, func(), error)
}

// defaultStoreProvider is the concrete implementation of storeProvider used in
// production. It establishes a real connection to the PostgreSQL database.
type defaultStoreProvider struct{}

// NewStoreProvider is a factory function that creates a new defaultStoreProvider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the PostgreSQL database using the provided configuration,
// initializes the store service, and returns it along with a cleanup function
// to close the database connection pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (reportStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (VIGIL_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var sessionID string
	var asJSON bool

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "List the stored detection reports of a monitoring session",
		Long: `Reads the report headlines persisted by the postgres sink for one session
and prints them in scan order. Requires database.url (VIGIL_DATABASE_URL).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runReport(ctx, observability.GetLogger(), cfg, sessionID, asJSON, provider, cmd.OutOrStdout())
		},
	}

	reportCmd.Flags().StringVar(&sessionID, "session", "", "The session ID to list reports for (required)")
	_ = reportCmd.MarkFlagRequired("session")
	reportCmd.Flags().BoolVar(&asJSON, "json", false, "Print the summaries as JSON.")

	return reportCmd
}

// runReport contains the core, testable logic for listing stored reports.
func runReport(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	sessionID string,
	asJSON bool,
	provider storeProvider,
	out io.Writer,
) error {
	logger.Info("Listing stored reports", zap.String("session_id", sessionID))

	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	summaries, err := storeService.ReportsBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load reports for session %s: %w", sessionID, err)
	}

	if asJSON {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize report summaries: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	if len(summaries) == 0 {
		fmt.Fprintf(out, "No reports stored for session %s.\n", sessionID)
		return nil
	}
	for _, s := range summaries {
		verdict := "below"
		if s.ExceedsThreshold {
			verdict = "EXCEEDS"
		}
		fmt.Fprintf(out, "#%-4d %s  score %.2f  %-7s  %s", s.ScanNumber, s.ObservedAt.Format(time.RFC3339), s.OverallRiskScore, verdict, s.ReportID)
		if len(s.ModuleFailures) > 0 {
			fmt.Fprintf(out, "  failures: %s", strings.Join(s.ModuleFailures, "; "))
		}
		fmt.Fprintln(out)
	}
	return nil
}
