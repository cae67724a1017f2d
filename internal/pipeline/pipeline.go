// Package pipeline wires the batch stages: catalog cleaning, the raster join,
// the county boundary subset and model training. Each stage runs once and
// either writes all of its output or fails before writing.
package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/couchcryptid/forest-loss-pipeline/internal/observability"
)

// Stage names used in logs and metric labels.
const (
	StageClean    = "clean"
	StageCounties = "counties"
	StageJoin     = "join"
	StageTrain    = "train"
)

// CatalogExtractor reads the raw catalog worksheets.
type CatalogExtractor interface {
	ExtractSheets(ctx context.Context) ([]domain.RawSheet, error)
}

// CleanedLoader writes the cleaned site table.
type CleanedLoader interface {
	LoadCleaned(ctx context.Context, records []domain.ForestSiteRecord) error
}

// CleanedExtractor reads the cleaned site table.
type CleanedExtractor interface {
	ExtractCleaned(ctx context.Context) ([]domain.ForestSiteRecord, error)
}

// JoinedLoader writes joined records to one destination.
type JoinedLoader interface {
	LoadJoined(ctx context.Context, records []domain.GeoJoinedRecord) error
}

// JoinedExtractor reads the joined table.
type JoinedExtractor interface {
	ExtractJoined(ctx context.Context) ([]domain.GeoJoinedRecord, error)
}

// BoundaryExtractor copies the features of a vector layer whose attribute
// matches one of values into a new dataset, returning the feature count.
type BoundaryExtractor interface {
	Extract(ctx context.Context, src, attribute string, values []string, dst string) (int, error)
}

// stageSucceeded records the duration and completion time of a stage.
func stageSucceeded(m *observability.Metrics, stage string, start time.Time) {
	now := domain.Now()
	m.StageDuration.WithLabelValues(stage).Set(now.Sub(start).Seconds())
	m.LastSuccess.WithLabelValues(stage).Set(float64(now.Unix()))
}
