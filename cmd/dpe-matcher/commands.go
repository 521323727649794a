package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dpe-match/internal/match"
	"github.com/dpe-match/internal/normalize"
	"github.com/dpe-match/internal/store/memory"
	"github.com/dpe-match/internal/store/postgres"
	"github.com/dpe-match/internal/web"
)

// createMigrateCmd creates a command to apply the schema migrations
func createMigrateCmd(a *app) *cobra.Command {
	var version uint
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if down {
				return a.conn.Rollback(a.logger)
			}
			return a.conn.Migrate(a.logger, version)
		},
	}
	cmd.Flags().UintVar(&version, "version", 0, "Target version (0 = latest)")
	cmd.Flags().BoolVar(&down, "down", false, "Revert every migration")
	return cmd
}

// createPingCmd creates a command to test database connectivity
func createPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Database connection successful!")

			count, err := postgres.NewRegistry(a.sqlDB(), a.logger).Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Energy diagnostics loaded: %d\n", count)
			return nil
		},
	}
}

// createImportCmd creates a command loading diagnostics from a CSV file with
// the header external_id,address,zip_code,energy_class,square_footage
func createImportCmd(a *app) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "import [filename]",
		Short: "Import energy diagnostics CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			registry := postgres.NewRegistry(a.sqlDB(), a.logger)
			total := 0
			err = readDiagnostics(f, batchSize, func(batch []match.Candidate) error {
				if err := registry.Insert(cmd.Context(), batch...); err != nil {
					return err
				}
				total += len(batch)
				a.logger.Info("imported batch", zap.Int("rows", len(batch)), zap.Int("total", total))
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d diagnostics\n", total)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 1000, "Rows per insert statement")
	return cmd
}

type queryFlags struct {
	zip     string
	class   string
	surface float64
	address string
	city    string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.zip, "zip", "", "5-digit postal code")
	cmd.Flags().StringVar(&q.class, "class", "", "Energy class A..G")
	cmd.Flags().Float64Var(&q.surface, "surface", 0, "Floor area in m²")
	cmd.Flags().StringVar(&q.address, "address", "", "Free-text address")
	cmd.Flags().StringVar(&q.city, "city", "", "Commune")
	cmd.MarkFlagRequired("zip")
	cmd.MarkFlagRequired("class")
	cmd.MarkFlagRequired("surface")
}

func (q *queryFlags) query() match.AddressQuery {
	return match.AddressQuery{
		ZipCode:       q.zip,
		EnergyClass:   match.EnergyClass(strings.ToUpper(q.class)),
		SquareFootage: q.surface,
		Address:       q.address,
		City:          q.city,
	}
}

// createSearchCmd creates a command printing ranked diagnostics
func createSearchCmd(a *app) *cobra.Command {
	var flags queryFlags
	var explain bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search diagnostics for an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.newEngine(nil)
			if err != nil {
				return err
			}

			query := flags.query()
			results, err := engine.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No matching diagnostics")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCORE\tDIAGNOSTIC\tCLASS\tSURFACE\tADDRESS")
			for _, r := range results {
				fmt.Fprintf(w, "%.1f\t%s\t%s\t%.1f\t%s\n",
					r.MatchScore, r.EnergyDiagnosticID, r.EnergyClass, r.SquareFootage, r.Address)
				if explain {
					b := engine.Calculator().Explain(r.Candidate, query)
					fmt.Fprintf(w, "\t  surface -%.1f street -%.1f city -%.1f\t\t\t\n",
						b.SurfacePenalty, b.StreetPenalty, b.CityPenalty)
				}
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the penalty of each factor")
	return cmd
}

// createLinkCmd creates a command linking one opportunity
func createLinkCmd(a *app) *cobra.Command {
	var flags queryFlags
	var opportunityType string
	var id int64
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link the best diagnostics to an auction or listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := match.ParseOpportunityType(opportunityType)
			if err != nil {
				return err
			}
			ref := match.OpportunityRef{ID: id, Type: t}

			engine, err := a.newEngine(nil)
			if err != nil {
				return err
			}
			if dryRun {
				if engine, err = a.dryRunEngine(cmd, engine, flags.query()); err != nil {
					return err
				}
			}

			links, err := engine.SearchAndLink(cmd.Context(), flags.query(), ref)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("Dry run: %d links would be stored for %s\n", len(links), ref)
			} else {
				fmt.Printf("%s holds %d links\n", ref, len(links))
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCORE\tDIAGNOSTIC\tADDRESS")
			for _, l := range links {
				fmt.Fprintf(w, "%d\t%s\t%s\n", l.MatchScore, l.EnergyDiagnosticID, l.Address)
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&opportunityType, "type", "", "auction or listing")
	cmd.Flags().Int64Var(&id, "id", 0, "Opportunity id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Keep links in memory instead of the database")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("id")
	return cmd
}

// dryRunEngine copies the candidates of query into an in-memory registry so
// linking runs against the real registry data without writing links
func (a *app) dryRunEngine(cmd *cobra.Command, engine *match.Engine, query match.AddressQuery) (*match.Engine, error) {
	results, err := engine.Search(cmd.Context(), query)
	if err != nil {
		return nil, err
	}

	registry := memory.NewRegistry()
	for _, r := range results {
		registry.Add(r.Candidate)
	}

	opts := []match.Option{
		match.WithConfig(engine.Config()),
		match.WithLogger(a.logger),
	}
	for _, t := range match.OpportunityTypes {
		opts = append(opts, match.WithLinkStore(t, memory.NewLinkStore(registry, engine.Config().MaxLinks)))
	}
	return match.NewEngine(registry, opts...)
}

// createServeCmd creates a command starting the HTTP server
func createServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			engine, err := a.newEngine(reg)
			if err != nil {
				return err
			}

			cfg := web.ConfigFrom(a.cfg.Web)
			if port > 0 {
				cfg.Port = port
			}

			server := web.NewServer(cfg, engine,
				web.WithLogger(a.logger),
				web.WithGatherer(reg),
				web.WithHealthCheck(a.conn.Ping),
			)
			return server.Start(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Override WEB_PORT")
	return cmd
}

var diagnosticColumns = []string{"external_id", "address", "zip_code", "energy_class", "square_footage"}

// readDiagnostics parses a diagnostics CSV and hands rows to fn in batches
func readDiagnostics(r io.Reader, batchSize int, fn func([]match.Candidate) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(diagnosticColumns)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range diagnosticColumns {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return fmt.Errorf("unexpected column %d: got %q, want %q", i+1, header[i], col)
		}
	}

	batch := make([]match.Candidate, 0, batchSize)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		surface, err := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
		if err != nil && strings.TrimSpace(record[4]) != "" {
			return fmt.Errorf("line %d: invalid square_footage %q", line, record[4])
		}
		c := match.Candidate{
			ExternalID:    strings.TrimSpace(record[0]),
			Address:       strings.TrimSpace(record[1]),
			ZipCode:       strings.TrimSpace(record[2]),
			EnergyClass:   match.EnergyClass(strings.ToUpper(strings.TrimSpace(record[3]))),
			SquareFootage: surface,
		}
		if c.ExternalID == "" || !c.EnergyClass.Valid() || !normalize.IsZipCode(c.ZipCode) {
			return fmt.Errorf("line %d: invalid diagnostic %+v", line, c)
		}

		batch = append(batch, c)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
