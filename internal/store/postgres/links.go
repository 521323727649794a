package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dpe-match/internal/debug"
	"github.com/dpe-match/internal/match"
)

// linkTable names the join table and its opportunity column for one type
type linkTable struct {
	name   string
	column string
}

var linkTables = map[match.OpportunityType]linkTable{
	match.Auction: {name: "auction_energy_diagnostics", column: "auction_id"},
	match.Listing: {name: "listing_energy_diagnostics", column: "listing_id"},
}

// LinkStore persists the diagnostic links of one opportunity type
type LinkStore struct {
	db              *sqlx.DB
	table           linkTable
	opportunityType match.OpportunityType
	maxLinks        int
	logger          *zap.Logger
}

var _ match.LinkStore = (*LinkStore)(nil)

// NewLinkStore creates the link store of opportunityType. maxLinks caps the
// links held per opportunity; <= 0 disables the cap.
func NewLinkStore(db *sqlx.DB, opportunityType match.OpportunityType, maxLinks int, logger *zap.Logger) (*LinkStore, error) {
	table, ok := linkTables[opportunityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", match.ErrUnsupportedOpportunityType, opportunityType)
	}
	return &LinkStore{
		db:              db,
		table:           table,
		opportunityType: opportunityType,
		maxLinks:        maxLinks,
		logger:          debug.OrNop(logger),
	}, nil
}

// SaveLinks inserts the links not stored yet in one statement. Existing
// pairs are left untouched and new rows are taken highest score first
// while the opportunity holds fewer than maxLinks links.
func (s *LinkStore) SaveLinks(ctx context.Context, opportunityID int64, links []match.LinkInput) error {
	ctx, span := s.start(ctx, "postgres.LinkStore.SaveLinks", opportunityID)
	defer span.End()

	if len(links) == 0 {
		return nil
	}

	ids := make([]string, 0, len(links))
	diagnostics := make([]string, 0, len(links))
	scores := make([]int64, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		if seen[l.EnergyDiagnosticID] {
			continue
		}
		seen[l.EnergyDiagnosticID] = true
		ids = append(ids, uuid.NewString())
		diagnostics = append(diagnostics, l.EnergyDiagnosticID)
		scores = append(scores, int64(l.MatchScore))
	}

	limit := s.maxLinks
	if limit <= 0 {
		limit = len(diagnostics)
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (id, %[2]s, energy_diagnostic_id, match_score)
		SELECT l.id, $1::bigint, l.energy_diagnostic_id, l.match_score
		FROM unnest($2::uuid[], $3::text[], $4::int[]) AS l(id, energy_diagnostic_id, match_score)
		WHERE NOT EXISTS (
			SELECT 1 FROM %[1]s t
			WHERE t.%[2]s = $1 AND t.energy_diagnostic_id = l.energy_diagnostic_id
		)
		ORDER BY l.match_score DESC
		LIMIT GREATEST(0, $5::bigint - (SELECT COUNT(*) FROM %[1]s WHERE %[2]s = $1))
		ON CONFLICT (%[2]s, energy_diagnostic_id) DO NOTHING
	`, s.table.name, s.table.column)

	res, err := s.db.ExecContext(ctx, query,
		opportunityID, pq.Array(ids), pq.Array(diagnostics), pq.Array(scores), limit)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("insert %s links: %w", s.opportunityType, err)
	}

	if inserted, err := res.RowsAffected(); err == nil {
		span.SetAttributes(attribute.Int64("inserted", inserted))
		s.logger.Debug("links saved",
			zap.String("opportunity_type", string(s.opportunityType)),
			zap.Int64("opportunity_id", opportunityID),
			zap.Int("submitted", len(diagnostics)),
			zap.Int64("inserted", inserted))
	}
	return nil
}

// GetLinks returns the links of an opportunity joined with their
// diagnostics, highest score first
func (s *LinkStore) GetLinks(ctx context.Context, opportunityID int64) ([]match.DiagnosticLink, error) {
	ctx, span := s.start(ctx, "postgres.LinkStore.GetLinks", opportunityID)
	defer span.End()

	query, args := s.linksQuery(opportunityID)

	links := []match.DiagnosticLink{}
	if err := s.db.SelectContext(ctx, &links, query, args...); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("select %s links: %w", s.opportunityType, err)
	}
	return links, nil
}

func (s *LinkStore) linksQuery(opportunityID int64) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"l.id",
		"l."+s.table.column+" AS opportunity_id",
		"l.energy_diagnostic_id",
		"l.match_score",
		"l.created_at",
		"COALESCE(d.address, '') AS address",
		"d.zip_code",
		"d.energy_class",
		"COALESCE(d.square_footage, 0) AS square_footage",
	).
		From(s.table.name+" l").
		Join(diagnosticsTable+" d", "d.external_id = l.energy_diagnostic_id").
		Where(sb.Equal("l."+s.table.column, opportunityID)).
		OrderBy("l.match_score DESC", "l.energy_diagnostic_id ASC")
	return sb.Build()
}

func (s *LinkStore) start(ctx context.Context, name string, opportunityID int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("opportunity_type", string(s.opportunityType)),
		attribute.Int64("opportunity_id", opportunityID),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
