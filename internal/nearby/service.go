package nearby

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nao1215/civicmap/internal/cluster"
	"github.com/nao1215/civicmap/internal/geo"
	"github.com/nao1215/civicmap/internal/model"
	"github.com/nao1215/civicmap/internal/pipeline"
)

// NewQuery validates a query. The radius must be in (0.1, 100] kilometers.
// Callers that received no radius pass model.DefaultRadiusKM.
func NewQuery(lat, lon, radiusKM float64) (model.NearbyQuery, error) {
	if err := geo.ValidateCoordinates(lat, lon); err != nil {
		return model.NearbyQuery{}, err
	}
	if math.IsNaN(radiusKM) || radiusKM <= model.MinRadiusKM || radiusKM > model.MaxRadiusKM {
		return model.NearbyQuery{}, model.NewValidationError("radius_km",
			fmt.Sprintf("%v is outside (%v, %v]", radiusKM, model.MinRadiusKM, model.MaxRadiusKM))
	}
	return model.NearbyQuery{Latitude: lat, Longitude: lon, RadiusKM: radiusKM}, nil
}

// Service runs nearby queries against a report lister.
type Service struct {
	lister      ReportLister
	engine      *cluster.Engine
	concurrency int
	logger      *slog.Logger
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithEngine replaces the default cluster engine.
func WithEngine(engine *cluster.Engine) Option {
	return func(s *Service) {
		s.engine = engine
	}
}

// WithConcurrency bounds how many queries QueryMany runs at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		s.concurrency = n
	}
}

// WithLogger sets the logger passed to every pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service.
func NewService(lister ReportLister, opts ...Option) *Service {
	s := &Service{
		lister:      lister,
		concurrency: pipeline.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = cluster.NewEngine()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Engine returns the cluster engine used by the service.
func (s *Service) Engine() *cluster.Engine {
	return s.engine
}

// newPipeline assembles the query steps.
func (s *Service) newPipeline() *pipeline.Pipeline {
	p := pipeline.New(pipeline.WithLogger(s.logger))
	p.AddSteps(
		NewFetchStep(s.lister),
		NewRadiusStep(),
		NewClusterStep(s.engine),
		NewStatisticsStep(),
	)
	return p
}

// Query answers one nearby query. q must come from NewQuery.
func (s *Service) Query(ctx context.Context, q model.NearbyQuery) (*model.NearbyResult, error) {
	result := model.NewNearbyResult(q)
	if err := s.newPipeline().Execute(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// QueryMany answers several queries concurrently and returns the results in
// query order.
func (s *Service) QueryMany(ctx context.Context, queries []model.NearbyQuery) ([]*model.NearbyResult, error) {
	bp := pipeline.NewBatchProcessor(
		s.newPipeline,
		pipeline.WithConcurrency(s.concurrency),
		pipeline.WithBatchLogger(s.logger),
	)
	return bp.ProcessBatch(ctx, queries)
}
