package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/forest-loss-pipeline/internal/config"
	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/couchcryptid/forest-loss-pipeline/internal/observability"
)

// CountySubset extracts the configured administrative units from the
// boundary layer into their own dataset.
type CountySubset struct {
	extractor BoundaryExtractor
	cfg       config.BoundaryConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewCountySubset(e BoundaryExtractor, cfg config.BoundaryConfig, logger *slog.Logger, metrics *observability.Metrics) *CountySubset {
	return &CountySubset{extractor: e, cfg: cfg, logger: logger, metrics: metrics}
}

// Run writes the subset and returns the number of features copied.
func (s *CountySubset) Run(ctx context.Context) (int, error) {
	start := domain.Now()

	n, err := s.extractor.Extract(ctx, s.cfg.Path, s.cfg.Attribute, s.cfg.Values, s.cfg.Output)
	if err != nil {
		return 0, fmt.Errorf("extract boundaries: %w", err)
	}
	if n == 0 {
		s.logger.Warn("no boundary matched", "attribute", s.cfg.Attribute, "values", s.cfg.Values)
	}

	s.logger.Info("county subset written", "features", n, "output", s.cfg.Output)
	stageSucceeded(s.metrics, StageCounties, start)
	return n, nil
}
