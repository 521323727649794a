// Package postgres implements the diagnostic registry and the link stores on
// PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dpe-match/internal/debug"
	"github.com/dpe-match/internal/match"
)

const diagnosticsTable = "energy_diagnostics"

var tracer = otel.Tracer("github.com/dpe-match/internal/store/postgres")

// Registry reads energy diagnostics from PostgreSQL
type Registry struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ match.CandidateRepository = (*Registry)(nil)

// NewRegistry creates a registry over db
func NewRegistry(db *sqlx.DB, logger *zap.Logger) *Registry {
	return &Registry{db: db, logger: debug.OrNop(logger)}
}

// FindCandidates returns the diagnostics matching filter ordered by id
func (r *Registry) FindCandidates(ctx context.Context, filter match.CandidateFilter) ([]match.Candidate, error) {
	ctx, span := tracer.Start(ctx, "postgres.Registry.FindCandidates", trace.WithAttributes(
		attribute.String("zip_code", filter.ZipCode),
		attribute.String("energy_class", string(filter.EnergyClass)),
	))
	defer span.End()

	query, args := candidatesQuery(filter)
	r.logger.Debug("finding candidates", zap.String("query", query))

	candidates := []match.Candidate{}
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	span.SetAttributes(attribute.Int("rows", len(candidates)))
	return candidates, nil
}

// Count returns the number of diagnostics held
func (r *Registry) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+diagnosticsTable); err != nil {
		return 0, fmt.Errorf("count diagnostics: %w", err)
	}
	return count, nil
}

// Insert adds or replaces diagnostics keyed by external id
func (r *Registry) Insert(ctx context.Context, records ...match.Candidate) error {
	if len(records) == 0 {
		return nil
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(diagnosticsTable).Cols("external_id", "address", "zip_code", "energy_class", "square_footage")
	for _, rec := range records {
		ib.Values(rec.ExternalID, rec.Address, rec.ZipCode, string(rec.EnergyClass), rec.SquareFootage)
	}
	ib.SQL(`ON CONFLICT (external_id) DO UPDATE SET
		address = EXCLUDED.address,
		zip_code = EXCLUDED.zip_code,
		energy_class = EXCLUDED.energy_class,
		square_footage = EXCLUDED.square_footage`)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert diagnostics: %w", err)
	}
	return nil
}

func candidatesQuery(filter match.CandidateFilter) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"id",
		"external_id",
		"COALESCE(address, '') AS address",
		"zip_code",
		"energy_class",
		"COALESCE(square_footage, 0) AS square_footage",
	).
		From(diagnosticsTable).
		Where(
			sb.Equal("zip_code", filter.ZipCode),
			sb.Equal("energy_class", string(filter.EnergyClass)),
			sb.Between("square_footage", filter.SquareFootageMin, filter.SquareFootageMax),
		).
		OrderBy("id")
	if filter.Limit > 0 {
		sb.Limit(filter.Limit)
	}
	return sb.Build()
}
