package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/couchcryptid/forest-loss-pipeline/internal/observability"
)

// Raster layer names used in logs and metric labels.
const (
	LayerTreeCover = "treecover"
	LayerLossYear  = "lossyear"
)

// Joiner samples the tree cover and loss-year rasters at every cleaned site
// and writes the joined table.
type Joiner struct {
	extractor CleanedExtractor
	treeCover domain.RasterSampler
	lossYear  domain.RasterSampler
	counties  []string
	loaders   []JoinedLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewJoiner creates a Joiner. Only sites whose county is listed are joined;
// an empty list joins every site. Loaders run in order, so the joined CSV
// should come before any publisher. The caller owns and closes the samplers.
func NewJoiner(
	e CleanedExtractor,
	treeCover, lossYear domain.RasterSampler,
	counties []string,
	logger *slog.Logger,
	metrics *observability.Metrics,
	loaders ...JoinedLoader,
) *Joiner {
	return &Joiner{
		extractor: e,
		treeCover: treeCover,
		lossYear:  lossYear,
		counties:  counties,
		loaders:   loaders,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run joins and writes the records, returning them.
func (j *Joiner) Run(ctx context.Context) ([]domain.GeoJoinedRecord, error) {
	start := domain.Now()

	records, err := j.extractor.ExtractCleaned(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract cleaned table: %w", err)
	}

	sites := domain.FilterByCounty(records, j.counties)
	j.logger.Info("sites selected", "sites", len(sites), "dropped", len(records)-len(sites), "counties", j.counties)

	keys, points, err := domain.KeyedPoints(sites)
	if err != nil {
		return nil, fmt.Errorf("key sites: %w", err)
	}

	treeCover, err := j.sample(ctx, LayerTreeCover, j.treeCover, keys, points)
	if err != nil {
		return nil, err
	}
	lossYear, err := j.sample(ctx, LayerLossYear, j.lossYear, keys, points)
	if err != nil {
		return nil, err
	}

	joined, err := domain.JoinSamples(sites, treeCover, lossYear)
	if err != nil {
		return nil, fmt.Errorf("join samples: %w", err)
	}

	for _, l := range j.loaders {
		if err := l.LoadJoined(ctx, joined); err != nil {
			return nil, fmt.Errorf("load joined records: %w", err)
		}
	}
	j.metrics.RecordsJoined.Add(float64(len(joined)))

	j.logger.Info("sites joined", "records", len(joined))
	stageSucceeded(j.metrics, StageJoin, start)
	return joined, nil
}

func (j *Joiner) sample(ctx context.Context, layer string, s domain.RasterSampler, keys []domain.SiteKey, points []domain.GeoPoint) (domain.SampleSet, error) {
	values, err := s.Sample(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", layer, err)
	}
	set, err := domain.NewSampleSet(keys, values)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", layer, err)
	}

	outside := 0
	for _, v := range values {
		if !v.Valid {
			outside++
		}
	}
	j.metrics.RasterSamples.WithLabelValues(layer, "value").Add(float64(len(values) - outside))
	j.metrics.RasterSamples.WithLabelValues(layer, "outside").Add(float64(outside))
	if outside > 0 {
		j.logger.Warn("sites outside raster extent", "layer", layer, "count", outside)
	}
	return set, nil
}
