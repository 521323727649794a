package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dpe-match/internal/config"
	"github.com/dpe-match/internal/db"
	"github.com/dpe-match/internal/debug"
	"github.com/dpe-match/internal/match"
	"github.com/dpe-match/internal/metrics"
	"github.com/dpe-match/internal/store/postgres"
)

// app carries the process-wide dependencies, built once in PersistentPreRunE
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	conn   *db.Connection
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "dpe-matcher",
		Short:        "Energy diagnostic matching for auctions and listings",
		Long:         `Links real-estate opportunities to the energy diagnostics that most plausibly describe the same property`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.AddCommand(createMigrateCmd(a))
	rootCmd.AddCommand(createPingCmd(a))
	rootCmd.AddCommand(createImportCmd(a))
	rootCmd.AddCommand(createSearchCmd(a))
	rootCmd.AddCommand(createLinkCmd(a))
	rootCmd.AddCommand(createServeCmd(a))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger, err := debug.NewLogger(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	a.logger = logger

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.conn = conn
	return nil
}

func (a *app) close() {
	if a.conn != nil {
		a.conn.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

func (a *app) sqlDB() *sqlx.DB {
	return a.conn.DB
}

func (a *app) engineConfig() match.Config {
	return match.Config{
		MaxCandidates:    a.cfg.Match.MaxCandidates,
		MaxLinks:         a.cfg.Match.MaxLinks,
		SurfaceTolerance: a.cfg.Match.SurfaceTolerance,
		LinkWorkers:      a.cfg.Match.LinkWorkers,
	}
}

// newEngine wires the PostgreSQL registry and link stores into an engine.
// A nil reg disables metrics.
func (a *app) newEngine(reg prometheus.Registerer, extra ...match.Option) (*match.Engine, error) {
	opts := []match.Option{
		match.WithConfig(a.engineConfig()),
		match.WithLogger(a.logger),
	}
	for _, t := range match.OpportunityTypes {
		store, err := postgres.NewLinkStore(a.sqlDB(), t, a.cfg.Match.MaxLinks, a.logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, match.WithLinkStore(t, store))
	}
	if reg != nil {
		opts = append(opts, match.WithRecorder(metrics.New(reg)))
	}
	opts = append(opts, extra...)

	return match.NewEngine(postgres.NewRegistry(a.sqlDB(), a.logger), opts...)
}
