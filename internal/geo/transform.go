// Package geo holds raster georeferencing math that does not need GDAL.
package geo

import (
	"errors"
	"math"
)

// ErrDegenerateTransform is returned when a geotransform cannot be inverted.
var ErrDegenerateTransform = errors.New("degenerate geotransform")

// GeoTransform is the GDAL six-coefficient affine transform from pixel/line
// space to georeferenced space:
//
//	x = T[0] + col*T[1] + row*T[2]
//	y = T[3] + col*T[4] + row*T[5]
type GeoTransform [6]float64

// Apply maps a pixel/line position to georeferenced coordinates.
func (t GeoTransform) Apply(col, row float64) (x, y float64) {
	return t[0] + col*t[1] + row*t[2], t[3] + col*t[4] + row*t[5]
}

// Inverse returns the transform from georeferenced space back to pixel/line.
func (t GeoTransform) Inverse() (GeoTransform, error) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 || math.IsNaN(det) {
		return GeoTransform{}, ErrDegenerateTransform
	}
	inv := 1 / det
	return GeoTransform{
		(t[2]*t[3] - t[0]*t[5]) * inv,
		t[5] * inv,
		-t[2] * inv,
		(-t[1]*t[3] + t[0]*t[4]) * inv,
		-t[4] * inv,
		t[1] * inv,
	}, nil
}

// PixelFor returns the integer column and row of the pixel containing the
// georeferenced point. t must be the result of Inverse.
func (t GeoTransform) PixelFor(x, y float64) (col, row int) {
	c, r := t.Apply(x, y)
	return int(math.Floor(c)), int(math.Floor(r))
}

// Contains reports whether a pixel lies inside a width x height raster.
func Contains(col, row, width, height int) bool {
	return col >= 0 && row >= 0 && col < width && row < height
}
