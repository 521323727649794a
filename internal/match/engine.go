package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dpe-match/internal/debug"
)

// Config holds the engine limits
type Config struct {
	MaxCandidates    int     // candidates fetched per search
	MaxLinks         int     // links persisted per opportunity
	SurfaceTolerance float64 // half-width of the floor-area band, as a ratio
	LinkWorkers      int     // concurrent searches in LinkAll
}

// DefaultConfig returns the production limits
func DefaultConfig() Config {
	return Config{
		MaxCandidates:    50,
		MaxLinks:         5,
		SurfaceTolerance: 0.10,
		LinkWorkers:      4,
	}
}

// Recorder receives engine measurements. See internal/metrics.
type Recorder interface {
	ObserveSearch(duration time.Duration, candidates int)
	LinksSaved(opportunityType OpportunityType, count int)
	Failure(operation string)
}

// Engine drives candidate retrieval, scoring, ranking and link persistence.
// It is stateless between calls: all state lives in the registry and the
// link stores.
type Engine struct {
	candidates CandidateRepository
	links      map[OpportunityType]LinkStore
	calculator *Calculator
	config     Config
	logger     *zap.Logger
	recorder   Recorder
	tracer     trace.Tracer
}

// Option configures an Engine
type Option func(*Engine)

// WithLinkStore binds the link store of one opportunity type
func WithLinkStore(opportunityType OpportunityType, store LinkStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.links[opportunityType] = store
		}
	}
}

// WithConfig overrides the default limits
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithCalculator replaces the default calculator
func WithCalculator(calculator *Calculator) Option {
	return func(e *Engine) {
		if calculator != nil {
			e.calculator = calculator
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = debug.OrNop(logger)
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// NewEngine creates an engine reading candidates from the given registry
func NewEngine(candidates CandidateRepository, opts ...Option) (*Engine, error) {
	if candidates == nil {
		return nil, errors.New("candidate repository is required")
	}

	e := &Engine{
		candidates: candidates,
		links:      make(map[OpportunityType]LinkStore),
		calculator: NewCalculator(),
		config:     DefaultConfig(),
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("github.com/dpe-match/internal/match"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if e.config.MaxCandidates <= 0 || e.config.MaxLinks <= 0 {
		return nil, fmt.Errorf("max candidates and max links must be positive, got %d and %d",
			e.config.MaxCandidates, e.config.MaxLinks)
	}
	if e.config.SurfaceTolerance <= 0 || e.config.SurfaceTolerance >= 1 {
		return nil, fmt.Errorf("surface tolerance must be in (0,1), got %v", e.config.SurfaceTolerance)
	}
	if e.config.LinkWorkers <= 0 {
		e.config.LinkWorkers = 1
	}

	return e, nil
}

// Config returns the limits in use
func (e *Engine) Config() Config {
	return e.config
}

// Calculator returns the calculator used to score candidates
func (e *Engine) Calculator() *Calculator {
	return e.calculator
}

// Search returns the registry candidates for query, scored and sorted
// highest first. No candidates yields an empty slice, not an error.
func (e *Engine) Search(ctx context.Context, query AddressQuery) ([]MatchResult, error) {
	ctx, span := e.tracer.Start(ctx, "match.Engine.Search", trace.WithAttributes(
		attribute.String("zip_code", query.ZipCode),
		attribute.String("energy_class", string(query.EnergyClass)),
	))
	defer span.End()
	defer debug.Timing(e.logger, "match.search", zap.String("zip_code", query.ZipCode))()

	if err := query.Validate(); err != nil {
		return nil, fail(span, err)
	}

	start := time.Now()
	filter := e.filterFor(query)

	candidates, err := e.candidates.FindCandidates(ctx, filter)
	if err != nil {
		e.failure(OpFindCandidates)
		e.logger.Error("candidate lookup failed",
			zap.String("zip_code", filter.ZipCode),
			zap.String("energy_class", string(filter.EnergyClass)),
			zap.Error(err))
		return nil, fail(span, &RepositoryError{Op: OpFindCandidates, Err: err})
	}

	results := e.calculator.ScoreCandidates(candidates, query)

	if e.recorder != nil {
		e.recorder.ObserveSearch(time.Since(start), len(results))
	}
	span.SetAttributes(attribute.Int("candidates", len(results)))

	if len(results) > 0 {
		e.logger.Debug("candidates scored",
			zap.Int("count", len(results)),
			zap.String("top_diagnostic", results[0].EnergyDiagnosticID),
			zap.Float64("top_score", results[0].MatchScore))
	}

	return results, nil
}

// SearchAndLink searches diagnostics for query and links the best ones to
// the opportunity. At most MaxLinks results are written, scores rounded to
// integers. It returns the persisted links, highest score first.
func (e *Engine) SearchAndLink(ctx context.Context, query AddressQuery, opportunity OpportunityRef) ([]DiagnosticLink, error) {
	ctx, span := e.tracer.Start(ctx, "match.Engine.SearchAndLink", trace.WithAttributes(
		attribute.String("opportunity", opportunity.String()),
	))
	defer span.End()

	store, err := e.linkStore(opportunity)
	if err != nil {
		return nil, fail(span, err)
	}

	results, err := e.Search(ctx, query)
	if err != nil {
		return nil, fail(span, err)
	}
	if len(results) == 0 {
		e.logger.Debug("no candidates, nothing linked", zap.Stringer("opportunity", opportunity))
		return []DiagnosticLink{}, nil
	}

	top := results[:min(len(results), e.config.MaxLinks)]
	inputs := make([]LinkInput, 0, len(top))
	for _, r := range top {
		inputs = append(inputs, LinkInput{
			EnergyDiagnosticID: r.EnergyDiagnosticID,
			MatchScore:         int(math.Round(r.MatchScore)),
		})
	}

	if err := store.SaveLinks(ctx, opportunity.ID, inputs); err != nil {
		e.failure(OpSaveLinks)
		e.logger.Error("saving links failed", zap.Stringer("opportunity", opportunity), zap.Error(err))
		return nil, fail(span, &RepositoryError{Op: OpSaveLinks, Err: err})
	}
	if e.recorder != nil {
		e.recorder.LinksSaved(opportunity.Type, len(inputs))
	}

	links, err := e.getLinks(ctx, store, opportunity)
	if err != nil {
		return nil, fail(span, err)
	}

	e.logger.Info("opportunity linked",
		zap.Stringer("opportunity", opportunity),
		zap.Int("submitted", len(inputs)),
		zap.Int("stored", len(links)))

	return links, nil
}

// Links returns the persisted links of an opportunity, highest score first
func (e *Engine) Links(ctx context.Context, opportunity OpportunityRef) ([]DiagnosticLink, error) {
	ctx, span := e.tracer.Start(ctx, "match.Engine.Links", trace.WithAttributes(
		attribute.String("opportunity", opportunity.String()),
	))
	defer span.End()

	store, err := e.linkStore(opportunity)
	if err != nil {
		return nil, fail(span, err)
	}

	links, err := e.getLinks(ctx, store, opportunity)
	if err != nil {
		return nil, fail(span, err)
	}
	return links, nil
}

// LinkAll runs SearchAndLink for every request on a bounded worker pool.
// Outcomes are returned in request order; a failed request only affects its
// own outcome. The returned error is non-nil only if ctx is done.
func (e *Engine) LinkAll(ctx context.Context, requests []LinkRequest) ([]LinkOutcome, error) {
	defer debug.Timing(e.logger, "match.link_all", zap.Int("requests", len(requests)))()

	outcomes := make([]LinkOutcome, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.LinkWorkers)

	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = LinkOutcome{Opportunity: req.Opportunity, Err: err}
				return err
			}
			links, err := e.SearchAndLink(gctx, req.Query, req.Opportunity)
			outcomes[i] = LinkOutcome{Opportunity: req.Opportunity, Links: links, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	e.logger.Info("batch linking complete",
		zap.Int("requests", len(requests)),
		zap.Int("failed", failed))

	return outcomes, nil
}

func (e *Engine) filterFor(query AddressQuery) CandidateFilter {
	tol := e.config.SurfaceTolerance
	return CandidateFilter{
		ZipCode:          query.ZipCode,
		EnergyClass:      query.EnergyClass,
		SquareFootageMin: query.SquareFootage * (1 - tol),
		SquareFootageMax: query.SquareFootage * (1 + tol),
		Limit:            e.config.MaxCandidates,
	}
}

func (e *Engine) linkStore(opportunity OpportunityRef) (LinkStore, error) {
	store, ok := e.links[opportunity.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOpportunityType, opportunity.Type)
	}
	if opportunity.ID <= 0 {
		return nil, fmt.Errorf("%w: opportunity id must be positive, got %d", ErrInvalidQuery, opportunity.ID)
	}
	return store, nil
}

func (e *Engine) getLinks(ctx context.Context, store LinkStore, opportunity OpportunityRef) ([]DiagnosticLink, error) {
	links, err := store.GetLinks(ctx, opportunity.ID)
	if err != nil {
		e.failure(OpGetLinks)
		e.logger.Error("reading links failed", zap.Stringer("opportunity", opportunity), zap.Error(err))
		return nil, &RepositoryError{Op: OpGetLinks, Err: err}
	}
	for i := range links {
		links[i].OpportunityType = opportunity.Type
	}
	if links == nil {
		links = []DiagnosticLink{}
	}
	return links, nil
}

func (e *Engine) failure(operation string) {
	if e.recorder != nil {
		e.recorder.Failure(operation)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
