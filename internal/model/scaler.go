package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrScalerNotFitted is returned by Transform before Fit.
var ErrScalerNotFitted = errors.New("scaler not fitted")

// MinMaxScaler rescales each column to [0, 1] using the minimum and maximum
// seen by Fit. Values outside the fitted range map outside [0, 1]; a column
// whose fitted range is zero maps to 0.
type MinMaxScaler struct {
	min    []float64
	max    []float64
	fitted bool
}

// Fit records per-column minima and maxima of x.
func (s *MinMaxScaler) Fit(x *mat.Dense) error {
	if x == nil {
		return ErrEmptyTrainingSet
	}
	_, c := x.Dims()
	s.min = make([]float64, c)
	s.max = make([]float64, c)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, x)
		s.min[j] = floats.Min(col)
		s.max[j] = floats.Max(col)
	}
	s.fitted = true
	return nil
}

// Transform returns a scaled copy of x using the fitted parameters.
func (s *MinMaxScaler) Transform(x *mat.Dense) (*mat.Dense, error) {
	if !s.fitted {
		return nil, ErrScalerNotFitted
	}
	if x == nil {
		return nil, ErrEmptyTrainingSet
	}
	r, c := x.Dims()
	if c != len(s.min) {
		return nil, fmt.Errorf("transform: %d columns, scaler fitted on %d", c, len(s.min))
	}

	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		span := s.max[j] - s.min[j]
		if span == 0 {
			return 0
		}
		return (v - s.min[j]) / span
	}, x)
	return out, nil
}

// FitTransform fits on x and returns x scaled.
func (s *MinMaxScaler) FitTransform(x *mat.Dense) (*mat.Dense, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

// Range returns the fitted minimum and maximum of column j.
func (s *MinMaxScaler) Range(j int) (lo, hi float64, ok bool) {
	if !s.fitted || j < 0 || j >= len(s.min) {
		return 0, 0, false
	}
	return s.min[j], s.max[j], true
}
