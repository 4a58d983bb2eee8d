package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fooddiscovery/backend/internal/domain"
)

// AggregationConfig holds configuration for the aggregation service
type AggregationConfig struct {
	// SoftTimeout bounds the search phase; connectors still running when it
	// fires are reported as timed out and their results are discarded
	SoftTimeout time.Duration
	// EnrichConcurrency bounds how many records are enriched at once
	EnrichConcurrency int
	// ResultLimit is the default maximum number of merged records
	ResultLimit int
	// Matcher decides cross-provider equivalence; nil means no cross-provider merging
	Matcher            Matcher
	EnableDebugLogging bool
}

// AggregationService fans a query out to every search connector, merges the
// partial records and enriches the merged list
type AggregationService struct {
	resolver          domain.LocationResolver
	searchers         []domain.Registration
	enrichers         []domain.Registration
	merger            *Merger
	preprocessor      *QueryPreprocessor
	softTimeout       time.Duration
	enrichConcurrency int
	resultLimit       int
	debug             bool
	backoff           func(int) time.Duration
}

// NewAggregationService creates the engine. Registrations are split by
// capability while keeping their relative order.
func NewAggregationService(
	resolver domain.LocationResolver,
	registrations []domain.Registration,
	config AggregationConfig,
) *AggregationService {
	s := &AggregationService{
		resolver:          resolver,
		merger:            NewMerger(config.Matcher),
		preprocessor:      NewQueryPreprocessor(config.EnableDebugLogging),
		softTimeout:       config.SoftTimeout,
		enrichConcurrency: config.EnrichConcurrency,
		resultLimit:       config.ResultLimit,
		debug:             config.EnableDebugLogging,
		backoff:           exponentialBackoff,
	}

	if s.enrichConcurrency <= 0 {
		s.enrichConcurrency = 4
	}
	if s.resultLimit <= 0 {
		s.resultLimit = 20
	}

	for _, reg := range registrations {
		if reg.Retries < 0 {
			reg.Retries = 0
		}
		if reg.Search != nil {
			s.searchers = append(s.searchers, reg)
		}
		if reg.Enrich != nil {
			s.enrichers = append(s.enrichers, reg)
		}
	}

	return s
}

// Aggregate runs one full request: resolve location, search, merge, enrich.
// The only request-level failures are ErrInvalidRequest and ErrLocationNotFound;
// provider problems are reported in the result's diagnostics.
func (s *AggregationService) Aggregate(ctx context.Context, request *domain.SearchRequest) (*domain.AggregationResult, error) {
	if !request.Validate() {
		return nil, domain.ErrInvalidRequest
	}

	requestID := uuid.NewString()
	logger := log.With().Str("request_id", requestID).Logger()
	start := time.Now()

	coords, err := s.coordinatesFor(ctx, request)
	if err != nil {
		logger.Warn().Str("location", request.Location).Err(err).Msg("location not resolved")
		return nil, err
	}

	limit := request.Limit
	if limit <= 0 || limit > s.resultLimit {
		limit = s.resultLimit
	}

	query := domain.SearchQuery{
		Text:      s.preprocessor.PreprocessQuery(request.Query),
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Limit:     limit,
	}

	products, diagnostics := s.Search(ctx, query)
	if len(products) > limit {
		products = products[:limit]
	}
	diagnostics = append(diagnostics, s.Enrich(ctx, products)...)

	if products == nil {
		products = []domain.CanonicalProduct{}
	}
	if diagnostics == nil {
		diagnostics = []domain.Diagnostic{}
	}

	logger.Info().
		Str("query", query.Text).
		Int("products", len(products)).
		Int("diagnostics", len(diagnostics)).
		Dur("elapsed", time.Since(start)).
		Msg("aggregation complete")

	return &domain.AggregationResult{
		RequestID:   requestID,
		Products:    products,
		Diagnostics: diagnostics,
	}, nil
}

// coordinatesFor returns the request's own coordinates or resolves its location
func (s *AggregationService) coordinatesFor(ctx context.Context, request *domain.SearchRequest) (domain.Coordinates, error) {
	if request.HasCoordinates() {
		return domain.Coordinates{Latitude: *request.Lat, Longitude: *request.Lon}, nil
	}

	if s.resolver == nil {
		return domain.Coordinates{}, fmt.Errorf("%w: %q (no resolver configured)", domain.ErrLocationNotFound, request.Location)
	}

	coords, err := s.resolver.Resolve(ctx, request.Location)
	if err != nil {
		if errors.Is(err, domain.ErrLocationNotFound) {
			return domain.Coordinates{}, err
		}
		return domain.Coordinates{}, fmt.Errorf("%w: %q: %v", domain.ErrLocationNotFound, request.Location, err)
	}
	return coords, nil
}

// searchOutcome is what one search connector produced, tagged with its
// registration index
type searchOutcome struct {
	index int
	batch domain.SearchBatch
	err   error
}

// Search runs the search phase: concurrent fan-out, then a single-threaded
// reconciliation and merge in registration order
func (s *AggregationService) Search(ctx context.Context, query domain.SearchQuery) ([]domain.CanonicalProduct, []domain.Diagnostic) {
	if len(s.searchers) == 0 {
		return nil, nil
	}

	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan searchOutcome, len(s.searchers))
	for i, reg := range s.searchers {
		go func() {
			batch, err := withRetry(phaseCtx, reg.Retries, s.backoff, func() (domain.SearchBatch, error) {
				return callWithTimeout(phaseCtx, reg.Name, reg.Timeout, func(c context.Context) (domain.SearchBatch, error) {
					return reg.Search.Search(c, query)
				})
			})
			outcomes <- searchOutcome{index: i, batch: batch, err: err}
		}()
	}

	results := s.collect(ctx, outcomes)

	var diagnostics []domain.Diagnostic
	batches := make([][]domain.CanonicalProduct, len(s.searchers))

	for i, reg := range s.searchers {
		outcome := results[i]
		if outcome == nil {
			diagnostics = append(diagnostics, domain.Diagnostic{
				Connector: reg.Name,
				Phase:     domain.PhaseSearch,
				Kind:      domain.KindProviderTimeout,
				Message:   "did not finish before the search phase deadline",
			})
			log.Warn().Str("connector", reg.Name).Str("phase", string(domain.PhaseSearch)).Msg("connector abandoned at soft timeout")
			continue
		}

		if outcome.err != nil {
			kind := classifyError(outcome.err)
			diagnostics = append(diagnostics, domain.Diagnostic{
				Connector: reg.Name,
				Phase:     domain.PhaseSearch,
				Kind:      kind,
				Message:   outcome.err.Error(),
			})
			log.Warn().Str("connector", reg.Name).Str("kind", string(kind)).Err(outcome.err).Msg("search connector failed")
			continue
		}

		for _, rejected := range outcome.batch.Rejected {
			diagnostics = append(diagnostics, validationDiagnostic(reg.Name, domain.PhaseSearch, rejected))
		}

		valid := make([]domain.CanonicalProduct, 0, len(outcome.batch.Products))
		for _, product := range outcome.batch.Products {
			if err := domain.Validate(&product); err != nil {
				diagnostics = append(diagnostics, validationDiagnostic(reg.Name, domain.PhaseSearch, err))
				continue
			}
			valid = append(valid, product)
		}

		if len(outcome.batch.Products) == 0 && len(outcome.batch.Rejected) == 0 {
			diagnostics = append(diagnostics, domain.Diagnostic{
				Connector: reg.Name,
				Phase:     domain.PhaseSearch,
				Kind:      domain.KindNoResults,
			})
		}

		if s.debug {
			log.Debug().Str("connector", reg.Name).Int("records", len(valid)).Msg("search connector returned")
		}
		batches[i] = valid
	}

	return s.merger.Merge(batches), diagnostics
}

// collect gathers outcomes until every connector has reported, the soft
// timeout fires, or the caller goes away. Missing entries stay nil.
func (s *AggregationService) collect(ctx context.Context, outcomes <-chan searchOutcome) []*searchOutcome {
	results := make([]*searchOutcome, len(s.searchers))

	var soft <-chan time.Time
	if s.softTimeout > 0 {
		timer := time.NewTimer(s.softTimeout)
		defer timer.Stop()
		soft = timer.C
	}

	for received := 0; received < len(s.searchers); received++ {
		select {
		case outcome := <-outcomes:
			results[outcome.index] = &outcome
		case <-soft:
			return results
		case <-ctx.Done():
			return results
		}
	}

	return results
}

// enrichOutcome is what one enrich connector produced for one record
type enrichOutcome struct {
	data *domain.EnrichmentData
	err  error
}

// Enrich runs the enrichment phase over already merged records, filling
// only fields that are still unset. Records are never removed.
func (s *AggregationService) Enrich(ctx context.Context, products []domain.CanonicalProduct) []domain.Diagnostic {
	if len(products) == 0 || len(s.enrichers) == 0 {
		return nil
	}

	perRecord := make([][]domain.Diagnostic, len(products))

	var g errgroup.Group
	g.SetLimit(s.enrichConcurrency)
	for i := range products {
		g.Go(func() error {
			perRecord[i] = s.enrichOne(ctx, &products[i])
			return nil
		})
	}
	_ = g.Wait()

	var diagnostics []domain.Diagnostic
	for _, d := range perRecord {
		diagnostics = append(diagnostics, d...)
	}
	return diagnostics
}

// enrichOne runs every enrich connector concurrently against a snapshot of
// the record, then applies results in registration order
func (s *AggregationService) enrichOne(ctx context.Context, product *domain.CanonicalProduct) []domain.Diagnostic {
	snapshot := product.Clone()
	outcomes := make([]enrichOutcome, len(s.enrichers))

	var wg sync.WaitGroup
	for j, reg := range s.enrichers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := withRetry(ctx, reg.Retries, s.backoff, func() (*domain.EnrichmentData, error) {
				return callWithTimeout(ctx, reg.Name, reg.Timeout, func(c context.Context) (*domain.EnrichmentData, error) {
					return reg.Enrich.Enrich(c, snapshot.Clone())
				})
			})
			outcomes[j] = enrichOutcome{data: data, err: err}
		}()
	}
	wg.Wait()

	var diagnostics []domain.Diagnostic
	for j, reg := range s.enrichers {
		outcome := outcomes[j]
		if outcome.err != nil {
			kind := classifyError(outcome.err)
			diagnostics = append(diagnostics, domain.Diagnostic{
				Connector: reg.Name,
				Phase:     domain.PhaseEnrich,
				Kind:      kind,
				Message:   outcome.err.Error(),
				ProductID: product.CanonicalProductID,
			})
			log.Warn().Str("connector", reg.Name).Str("product", product.CanonicalProductID).Err(outcome.err).Msg("enrich connector failed")
			continue
		}
		if outcome.data == nil {
			continue
		}

		data := *outcome.data
		if data.Provider == "" {
			data.Provider = reg.Name
		}
		filled := applyEnrichment(product, &data)
		if s.debug && len(filled) > 0 {
			log.Debug().Str("connector", reg.Name).Str("product", product.CanonicalProductID).Strs("fields", filled).Msg("enriched")
		}
	}

	return diagnostics
}

func validationDiagnostic(connector string, phase domain.Phase, err error) domain.Diagnostic {
	d := domain.Diagnostic{
		Connector: connector,
		Phase:     phase,
		Kind:      domain.KindValidationError,
		Message:   err.Error(),
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		d.ProductID = ve.ProductID
	}
	log.Warn().Str("connector", connector).Err(err).Msg("dropped invalid record")
	return d
}
