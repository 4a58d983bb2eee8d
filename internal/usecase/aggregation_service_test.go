package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fooddiscovery/backend/internal/domain"
)

type fakeSearcher struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, q domain.SearchQuery) (domain.SearchBatch, error)
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchBatch, error) {
	f.calls.Add(1)
	return f.fn(ctx, q)
}

type fakeEnricher struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, p domain.CanonicalProduct) (*domain.EnrichmentData, error)
}

func (f *fakeEnricher) Name() string { return f.name }

func (f *fakeEnricher) Enrich(ctx context.Context, p domain.CanonicalProduct) (*domain.EnrichmentData, error) {
	f.calls.Add(1)
	return f.fn(ctx, p)
}

type fakeResolver struct {
	calls  atomic.Int32
	coords map[string]domain.Coordinates
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, location string) (domain.Coordinates, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.Coordinates{}, f.err
	}
	c, ok := f.coords[location]
	if !ok {
		return domain.Coordinates{}, domain.ErrLocationNotFound
	}
	return c, nil
}

func newResolver() *fakeResolver {
	return &fakeResolver{coords: map[string]domain.Coordinates{
		"New York": {Latitude: 40.7128, Longitude: -74.0060},
	}}
}

func returning(records ...domain.CanonicalProduct) *fakeSearcher {
	return &fakeSearcher{fn: func(context.Context, domain.SearchQuery) (domain.SearchBatch, error) {
		return domain.SearchBatch{Products: records}, nil
	}}
}

func failing(err error) *fakeSearcher {
	return &fakeSearcher{fn: func(context.Context, domain.SearchQuery) (domain.SearchBatch, error) {
		return domain.SearchBatch{}, err
	}}
}

func searchReg(name string, s *fakeSearcher) domain.Registration {
	s.name = name
	return domain.Registration{Name: name, Search: s, Timeout: time.Second}
}

func enrichReg(name string, e *fakeEnricher) domain.Registration {
	e.name = name
	return domain.Registration{Name: name, Enrich: e, Timeout: time.Second}
}

func pizzaRequest() *domain.SearchRequest {
	return &domain.SearchRequest{Query: "pizza", Location: "New York"}
}

func newTestService(resolver domain.LocationResolver, regs []domain.Registration, config AggregationConfig) *AggregationService {
	s := NewAggregationService(resolver, regs, config)
	s.backoff = noBackoff
	return s
}

func TestAggregate_InvalidRequest(t *testing.T) {
	search := returning(newRecord("alpha", "a1", "Pizza Place"))
	s := newTestService(newResolver(), []domain.Registration{searchReg("alpha", search)}, AggregationConfig{})

	testCases := []struct {
		name    string
		request *domain.SearchRequest
	}{
		{"nil request", nil},
		{"blank query", &domain.SearchRequest{Query: " ", Location: "New York"}},
		{"no location", &domain.SearchRequest{Query: "pizza"}},
		{"negative limit", &domain.SearchRequest{Query: "pizza", Location: "New York", Limit: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Aggregate(context.Background(), tc.request)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
	assert.Zero(t, search.calls.Load())
}

func TestAggregate_LocationNotFound(t *testing.T) {
	search := returning(newRecord("alpha", "a1", "Pizza Place"))
	enrich := &fakeEnricher{fn: func(context.Context, domain.CanonicalProduct) (*domain.EnrichmentData, error) {
		return nil, nil
	}}
	regs := []domain.Registration{searchReg("alpha", search), enrichReg("gp", enrich)}

	t.Run("unknown place", func(t *testing.T) {
		resolver := newResolver()
		s := newTestService(resolver, regs, AggregationConfig{})

		result, err := s.Aggregate(context.Background(), &domain.SearchRequest{Query: "pizza", Location: "Atlantis"})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrLocationNotFound)
		assert.Equal(t, int32(1), resolver.calls.Load())
	})

	t.Run("resolver transport failure", func(t *testing.T) {
		s := newTestService(&fakeResolver{err: errors.New("connection refused")}, regs, AggregationConfig{})

		_, err := s.Aggregate(context.Background(), pizzaRequest())

		assert.ErrorIs(t, err, domain.ErrLocationNotFound)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("no resolver configured", func(t *testing.T) {
		s := newTestService(nil, regs, AggregationConfig{})

		_, err := s.Aggregate(context.Background(), pizzaRequest())

		assert.ErrorIs(t, err, domain.ErrLocationNotFound)
	})

	assert.Zero(t, search.calls.Load(), "no connector may run without coordinates")
	assert.Zero(t, enrich.calls.Load())
}

func TestAggregate_CoordinatesSkipResolver(t *testing.T) {
	var got domain.SearchQuery
	search := &fakeSearcher{fn: func(_ context.Context, q domain.SearchQuery) (domain.SearchBatch, error) {
		got = q
		return domain.SearchBatch{}, nil
	}}
	resolver := newResolver()
	s := newTestService(resolver, []domain.Registration{searchReg("alpha", search)}, AggregationConfig{ResultLimit: 10})

	lat, lon := 51.5072, -0.1276
	_, err := s.Aggregate(context.Background(), &domain.SearchRequest{Query: "find me some pizza near me", Lat: &lat, Lon: &lon})

	require.NoError(t, err)
	assert.Zero(t, resolver.calls.Load())
	assert.Equal(t, domain.SearchQuery{Text: "pizza", Latitude: lat, Longitude: lon, Limit: 10}, got)
}

func TestAggregate_MergesInRegistrationOrder(t *testing.T) {
	slow := &fakeSearcher{fn: func(context.Context, domain.SearchQuery) (domain.SearchBatch, error) {
		time.Sleep(30 * time.Millisecond)
		return domain.SearchBatch{Products: []domain.CanonicalProduct{newRecord("alpha", "a1", "Pizza Place")}}, nil
	}}
	fast := returning(newRecord("beta", "b1", "Pizza Place"))
	s := newTestService(newResolver(), []domain.Registration{searchReg("alpha", slow), searchReg("beta", fast)}, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "alpha::a1", result.Products[0].CanonicalProductID)
	assert.Equal(t, "beta::b1", result.Products[1].CanonicalProductID)
	assert.Empty(t, result.Diagnostics)
	assert.NotEmpty(t, result.RequestID)
}

func TestAggregate_FailureIsolation(t *testing.T) {
	records := []domain.CanonicalProduct{
		withRating(newRecord("alpha", "a1", "Pizza Place"), 4.2),
		newRecord("alpha", "a2", "Slice Shop"),
	}

	baseline := newTestService(newResolver(), []domain.Registration{
		searchReg("alpha", returning(records...)),
	}, AggregationConfig{})
	withFailure := newTestService(newResolver(), []domain.Registration{
		searchReg("broken", failing(domain.NewProviderError("broken", 401, errors.New("invalid key")))),
		searchReg("alpha", returning(records...)),
	}, AggregationConfig{})

	want, err := baseline.Aggregate(context.Background(), pizzaRequest())
	require.NoError(t, err)
	got, err := withFailure.Aggregate(context.Background(), pizzaRequest())
	require.NoError(t, err)

	if diff := cmp.Diff(want.Products, got.Products); diff != "" {
		t.Errorf("failing connector changed the products (-want +got):\n%s", diff)
	}
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, domain.Diagnostic{
		Connector: "broken",
		Phase:     domain.PhaseSearch,
		Kind:      domain.KindProviderError,
		Message:   "broken: status 401: invalid key",
	}, got.Diagnostics[0])
}

func TestAggregate_PanickingConnector(t *testing.T) {
	panicky := &fakeSearcher{fn: func(context.Context, domain.SearchQuery) (domain.SearchBatch, error) {
		panic("nil map write")
	}}
	s := newTestService(newResolver(), []domain.Registration{
		searchReg("panicky", panicky),
		searchReg("alpha", returning(newRecord("alpha", "a1", "Pizza Place"))),
	}, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, domain.KindProviderError, result.Diagnostics[0].Kind)
	assert.Contains(t, result.Diagnostics[0].Message, "panicked")
}

func TestAggregate_ConnectorTimeout(t *testing.T) {
	hanging := &fakeSearcher{fn: func(ctx context.Context, _ domain.SearchQuery) (domain.SearchBatch, error) {
		<-ctx.Done()
		return domain.SearchBatch{}, ctx.Err()
	}}
	enrich := &fakeEnricher{fn: func(context.Context, domain.CanonicalProduct) (*domain.EnrichmentData, error) {
		return &domain.EnrichmentData{Rating: ptr(4.0)}, nil
	}}
	reg := searchReg("hanging", hanging)
	reg.Timeout = 20 * time.Millisecond
	s := newTestService(newResolver(), []domain.Registration{reg, enrichReg("gp", enrich)}, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	assert.Empty(t, result.Products)
	assert.NotNil(t, result.Products)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, domain.KindProviderTimeout, result.Diagnostics[0].Kind)
	assert.Equal(t, "hanging", result.Diagnostics[0].Connector)
	assert.Zero(t, enrich.calls.Load())
}

func TestAggregate_SoftTimeout(t *testing.T) {
	slow := &fakeSearcher{fn: func(ctx context.Context, _ domain.SearchQuery) (domain.SearchBatch, error) {
		<-ctx.Done()
		return domain.SearchBatch{Products: []domain.CanonicalProduct{newRecord("slow", "s1", "Late Pizza")}}, nil
	}}
	s := newTestService(newResolver(), []domain.Registration{
		searchReg("alpha", returning(newRecord("alpha", "a1", "Pizza Place"))),
		searchReg("slow", slow),
	}, AggregationConfig{SoftTimeout: 50 * time.Millisecond})

	start := time.Now()
	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "alpha::a1", result.Products[0].CanonicalProductID)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, domain.Diagnostic{
		Connector: "slow",
		Phase:     domain.PhaseSearch,
		Kind:      domain.KindProviderTimeout,
		Message:   "did not finish before the search phase deadline",
	}, result.Diagnostics[0])
}

func TestAggregate_Retries(t *testing.T) {
	var attempts atomic.Int32
	flaky := &fakeSearcher{fn: func(context.Context, domain.SearchQuery) (domain.SearchBatch, error) {
		if attempts.Add(1) == 1 {
			return domain.SearchBatch{}, domain.NewProviderError("flaky", 503, errors.New("unavailable"))
		}
		return domain.SearchBatch{Products: []domain.CanonicalProduct{newRecord("flaky", "f1", "Pizza Place")}}, nil
	}}
	reg := searchReg("flaky", flaky)
	reg.Retries = 1
	s := newTestService(newResolver(), []domain.Registration{reg}, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	assert.Len(t, result.Products, 1)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, int32(2), flaky.calls.Load())
}

func TestAggregate_NegativeRetriesStillCallsConnectors(t *testing.T) {
	search := returning(newRecord("alpha", "a1", "Pizza Place"))
	reg := searchReg("alpha", search)
	reg.Retries = -1

	enricher := &fakeEnricher{fn: func(context.Context, domain.CanonicalProduct) (*domain.EnrichmentData, error) {
		return nil, nil
	}}
	enrich := enrichReg("gp", enricher)
	enrich.Retries = -3

	s := newTestService(newResolver(), []domain.Registration{reg, enrich}, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	assert.Len(t, result.Products, 1)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, int32(1), search.calls.Load())
	assert.Equal(t, int32(1), enricher.calls.Load())
}

func TestAggregate_ValidationDrops(t *testing.T) {
	bad := newRecord("alpha", "a2", "")
	rejected := &domain.ValidationError{ProductID: "alpha::a3", Problems: []string{"Title failed required"}}
	search := &fakeSearcher{fn: func(context.Context, domain.SearchQuery) (domain.SearchBatch, error) {
		return domain.SearchBatch{
			Products: []domain.CanonicalProduct{newRecord("alpha", "a1", "Pizza Place"), bad},
			Rejected: []*domain.ValidationError{rejected},
		}, nil
	}}
	s := newTestService(newResolver(), []domain.Registration{searchReg("alpha", search)}, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "alpha::a1", result.Products[0].CanonicalProductID)
	require.Len(t, result.Diagnostics, 2)
	for _, d := range result.Diagnostics {
		assert.Equal(t, domain.KindValidationError, d.Kind)
		assert.Equal(t, "alpha", d.Connector)
	}
	assert.ElementsMatch(t, []string{"alpha::a2", "alpha::a3"},
		[]string{result.Diagnostics[0].ProductID, result.Diagnostics[1].ProductID})
}

func TestAggregate_NoResults(t *testing.T) {
	s := newTestService(newResolver(), []domain.Registration{searchReg("alpha", returning())}, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	assert.Empty(t, result.Products)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, domain.KindNoResults, result.Diagnostics[0].Kind)
}

func TestAggregate_Limit(t *testing.T) {
	var records []domain.CanonicalProduct
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		records = append(records, newRecord("alpha", id, "Pizza "+id))
	}

	t.Run("request limit", func(t *testing.T) {
		s := newTestService(newResolver(), []domain.Registration{searchReg("alpha", returning(records...))}, AggregationConfig{})
		req := pizzaRequest()
		req.Limit = 3

		result, err := s.Aggregate(context.Background(), req)

		require.NoError(t, err)
		require.Len(t, result.Products, 3)
		assert.Equal(t, "alpha::a3", result.Products[2].CanonicalProductID)
	})

	t.Run("configured limit caps request", func(t *testing.T) {
		s := newTestService(newResolver(), []domain.Registration{searchReg("alpha", returning(records...))}, AggregationConfig{ResultLimit: 2})
		req := pizzaRequest()
		req.Limit = 50

		result, err := s.Aggregate(context.Background(), req)

		require.NoError(t, err)
		assert.Len(t, result.Products, 2)
	})
}

func TestAggregate_EnrichmentFillsOnlyUnsetFields(t *testing.T) {
	search := returning(withRating(newRecord("alpha", "a1", "Pizza Place"), 4.5))
	enrich := &fakeEnricher{fn: func(_ context.Context, p domain.CanonicalProduct) (*domain.EnrichmentData, error) {
		p.Title = "mutated by connector"
		return &domain.EnrichmentData{
			ExternalPlaceID: "ChIJ42",
			Rating:          ptr(3.0),
			NumRatings:      ptr(812),
			Photos:          []string{"https://img.example.com/1.jpg"},
		}, nil
	}}
	s := newTestService(newResolver(), []domain.Registration{searchReg("alpha", search), enrichReg("gp", enrich)}, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	p := result.Products[0]
	assert.Equal(t, "Pizza Place", p.Title)
	assert.Equal(t, 4.5, *p.Rating)
	assert.Equal(t, 812, *p.NumRatings)
	assert.Equal(t, []string{"https://img.example.com/1.jpg"}, p.Images)
	assert.Equal(t, "ChIJ42", p.ExternalIDs["gp"])
	assert.Len(t, p.Sources, 1, "enrichment never adds sources")
}

func TestAggregate_EnrichmentPrecedenceAndFailures(t *testing.T) {
	search := returning(newRecord("alpha", "a1", "Pizza Place"), newRecord("alpha", "a2", "Slice Shop"))
	first := &fakeEnricher{fn: func(_ context.Context, p domain.CanonicalProduct) (*domain.EnrichmentData, error) {
		time.Sleep(20 * time.Millisecond)
		if p.CanonicalProductID == "alpha::a2" {
			return nil, domain.NewProviderError("first", 500, errors.New("boom"))
		}
		return &domain.EnrichmentData{Website: ptr("https://first.example.com")}, nil
	}}
	second := &fakeEnricher{fn: func(context.Context, domain.CanonicalProduct) (*domain.EnrichmentData, error) {
		return &domain.EnrichmentData{Website: ptr("https://second.example.com"), PhoneNumber: ptr("+1 555 0100")}, nil
	}}
	none := &fakeEnricher{fn: func(context.Context, domain.CanonicalProduct) (*domain.EnrichmentData, error) {
		return nil, nil
	}}
	s := newTestService(newResolver(), []domain.Registration{
		searchReg("alpha", search),
		enrichReg("first", first),
		enrichReg("second", second),
		enrichReg("none", none),
	}, AggregationConfig{EnrichConcurrency: 1})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "https://first.example.com", *result.Products[0].Website)
	assert.Equal(t, "+1 555 0100", *result.Products[0].PhoneNumber)
	assert.Equal(t, "https://second.example.com", *result.Products[1].Website)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, domain.Diagnostic{
		Connector: "first",
		Phase:     domain.PhaseEnrich,
		Kind:      domain.KindProviderError,
		Message:   "first: status 500: boom",
		ProductID: "alpha::a2",
	}, result.Diagnostics[0])
}

func TestAggregate_NoSearchConnectors(t *testing.T) {
	s := newTestService(newResolver(), nil, AggregationConfig{})

	result, err := s.Aggregate(context.Background(), pizzaRequest())

	require.NoError(t, err)
	assert.Empty(t, result.Products)
	assert.Empty(t, result.Diagnostics)
}
