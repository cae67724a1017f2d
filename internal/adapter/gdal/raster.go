// Package gdal samples rasters and filters boundary layers through GDAL.
package gdal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/couchcryptid/forest-loss-pipeline/internal/geo"
)

// wgs84 is the CRS of catalog coordinates.
const wgs84 = 4326

var registerOnce sync.Once

func register() {
	registerOnce.Do(godal.RegisterAll)
}

// RasterSampler reads single pixels from one band of a raster dataset.
// It implements domain.RasterSampler.
type RasterSampler struct {
	path   string
	ds     *godal.Dataset
	band   godal.Band
	inv    geo.GeoTransform
	width  int
	height int

	// toRaster reprojects WGS-84 points; nil when the raster is already
	// in WGS-84.
	toRaster *godal.Transform
	logger   *slog.Logger
}

// OpenRaster opens the raster at path for sampling band (1-based).
func OpenRaster(path string, band int, logger *slog.Logger) (_ *RasterSampler, err error) {
	register()

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open raster %q: %w", path, err)
	}
	s := &RasterSampler{path: path, ds: ds, logger: logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	st := ds.Structure()
	if band < 1 || band > st.NBands {
		return nil, fmt.Errorf("open raster %q: band %d out of range 1..%d", path, band, st.NBands)
	}
	s.band = ds.Bands()[band-1]
	s.width, s.height = st.SizeX, st.SizeY

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("read geotransform of %q: %w", path, err)
	}
	if s.inv, err = geo.GeoTransform(gt).Inverse(); err != nil {
		return nil, fmt.Errorf("invert geotransform of %q: %w", path, err)
	}

	if s.toRaster, err = reprojection(ds); err != nil {
		return nil, fmt.Errorf("reproject to %q: %w", path, err)
	}

	logger.Debug("raster opened", "path", path, "band", band,
		"width", s.width, "height", s.height, "reprojected", s.toRaster != nil)
	return s, nil
}

// reprojection returns a WGS-84 to raster CRS transform, or nil when the
// raster has no CRS or is already WGS-84.
func reprojection(ds *godal.Dataset) (*godal.Transform, error) {
	if ds.Projection() == "" {
		return nil, nil
	}
	dst := ds.SpatialRef()
	defer dst.Close()

	src, err := godal.NewSpatialRefFromEPSG(wgs84)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if dst.IsSame(src) {
		return nil, nil
	}
	return godal.NewTransform(src, dst)
}

// Sample returns the band value under each point. Points outside the raster
// extent, or that fail to reproject, yield a missing value. Nodata pixels are
// returned as read.
func (s *RasterSampler) Sample(ctx context.Context, points []domain.GeoPoint) ([]domain.OptionalFloat, error) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	ok := make([]bool, len(points))
	for i, p := range points {
		xs[i], ys[i], ok[i] = p.Lon, p.Lat, true
	}

	if s.toRaster != nil && len(points) > 0 {
		zs := make([]float64, len(points))
		if err := s.toRaster.TransformEx(xs, ys, zs, ok); err != nil {
			return nil, fmt.Errorf("reproject points for %q: %w", s.path, err)
		}
	}

	out := make([]domain.OptionalFloat, len(points))
	var outside int
	buf := make([]float64, 1)
	for i := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ok[i] {
			outside++
			continue
		}
		col, row := s.inv.PixelFor(xs[i], ys[i])
		if !geo.Contains(col, row, s.width, s.height) {
			outside++
			continue
		}
		if err := s.band.Read(col, row, buf, 1, 1); err != nil {
			return nil, fmt.Errorf("read %q pixel %d,%d: %w", s.path, col, row, err)
		}
		out[i] = domain.Float(buf[0])
	}

	s.logger.Debug("raster sampled", "path", s.path, "points", len(points), "outside", outside)
	return out, nil
}

// Close releases the transform and dataset.
func (s *RasterSampler) Close() error {
	if s.toRaster != nil {
		s.toRaster.Close()
		s.toRaster = nil
	}
	if s.ds == nil {
		return nil
	}
	err := s.ds.Close()
	s.ds = nil
	if err != nil {
		return fmt.Errorf("close raster %q: %w", s.path, err)
	}
	return nil
}
