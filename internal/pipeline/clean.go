package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/couchcryptid/forest-loss-pipeline/internal/observability"
)

// Cleaner turns the ministry workbook into the cleaned site table.
type Cleaner struct {
	extractor CatalogExtractor
	loader    CleanedLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewCleaner creates a Cleaner reading from e and writing to l.
func NewCleaner(e CatalogExtractor, l CleanedLoader, logger *slog.Logger, metrics *observability.Metrics) *Cleaner {
	return &Cleaner{
		extractor: e,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run cleans the catalog and writes it. Nothing is written when any sheet
// fails to parse.
func (c *Cleaner) Run(ctx context.Context) ([]domain.ForestSiteRecord, error) {
	start := domain.Now()

	sheets, err := c.extractor.ExtractSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract catalog: %w", err)
	}

	records, stats, err := domain.CleanCatalog(sheets...)
	if err != nil {
		return nil, fmt.Errorf("clean catalog: %w", err)
	}
	c.recordStats(stats)

	if err := c.loader.LoadCleaned(ctx, records); err != nil {
		return nil, fmt.Errorf("load cleaned table: %w", err)
	}
	c.metrics.RecordsCleaned.Add(float64(len(records)))

	c.logger.Info("catalog cleaned",
		"records", len(records),
		"total_rows", stats.TotalRows,
		"blank_rows", stats.BlankRows,
	)
	stageSucceeded(c.metrics, StageClean, start)
	return records, nil
}

func (c *Cleaner) recordStats(stats domain.CleanStats) {
	for sheet, n := range stats.RowsRead {
		c.metrics.RowsRead.WithLabelValues(sheet).Add(float64(n))
		c.logger.Debug("sheet read", "sheet", sheet, "rows", n)
	}
	c.metrics.RowsDropped.WithLabelValues("total_row").Add(float64(stats.TotalRows))
	c.metrics.RowsDropped.WithLabelValues("blank_id").Add(float64(stats.BlankRows))
	for field, n := range stats.MissingNumeric {
		c.metrics.MissingValues.WithLabelValues(field).Add(float64(n))
		c.logger.Debug("numeric cells coerced to missing", "field", field, "count", n)
	}
}
