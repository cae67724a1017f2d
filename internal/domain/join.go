package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrDuplicateSiteKey is returned when two records share a join key.
var ErrDuplicateSiteKey = errors.New("duplicate site key")

// RasterSampler reads one raster layer at WGS-84 points.
type RasterSampler interface {
	// Sample returns one value per point, in order. Points outside the
	// raster extent yield a missing value, not an error. Implementations
	// reproject points to the raster CRS before reading.
	Sample(ctx context.Context, points []GeoPoint) ([]OptionalFloat, error)

	// Close releases the underlying dataset.
	Close() error
}

// SampleSet maps each site to the value sampled for it from one layer.
type SampleSet map[SiteKey]OptionalFloat

// KeyedPoints returns the join key and location of every record, in order.
// Keys must be unique.
func KeyedPoints(records []ForestSiteRecord) ([]SiteKey, []GeoPoint, error) {
	keys := make([]SiteKey, 0, len(records))
	points := make([]GeoPoint, 0, len(records))
	seen := make(map[SiteKey]struct{}, len(records))
	for _, r := range records {
		k := r.Key()
		if _, dup := seen[k]; dup {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateSiteKey, k)
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
		points = append(points, r.Point())
	}
	return keys, points, nil
}

// NewSampleSet pairs keys with the values a sampler returned for their points.
func NewSampleSet(keys []SiteKey, values []OptionalFloat) (SampleSet, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("sampler returned %d values for %d points", len(values), len(keys))
	}
	set := make(SampleSet, len(keys))
	for i, k := range keys {
		set[k] = values[i]
	}
	return set, nil
}

// JoinSamples attaches tree cover and loss-year samples to records by key.
// A record absent from a sample set gets a missing value for that layer.
func JoinSamples(records []ForestSiteRecord, treeCover, lossYear SampleSet) ([]GeoJoinedRecord, error) {
	joined := make([]GeoJoinedRecord, 0, len(records))
	seen := make(map[SiteKey]struct{}, len(records))
	for _, r := range records {
		k := r.Key()
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSiteKey, k)
		}
		seen[k] = struct{}{}

		joined = append(joined, GeoJoinedRecord{
			ForestSiteRecord: r,
			TreeCover:        treeCover[k],
			LossYear:         LossYearFromSample(lossYear[k]),
		})
	}
	return joined, nil
}

// FilterByCounty keeps records whose county exactly matches one of counties.
// An empty list keeps every record.
func FilterByCounty(records []ForestSiteRecord, counties []string) []ForestSiteRecord {
	if len(counties) == 0 {
		return records
	}
	allowed := make(map[string]struct{}, len(counties))
	for _, c := range counties {
		allowed[c] = struct{}{}
	}
	out := make([]ForestSiteRecord, 0, len(records))
	for _, r := range records {
		if _, ok := allowed[r.County]; ok {
			out = append(out, r)
		}
	}
	return out
}

// SiteRadiusMeters is the radius of a circle with the given area in hectares.
func SiteRadiusMeters(hectares float64) float64 {
	return math.Sqrt(hectares * 10_000 / math.Pi)
}
