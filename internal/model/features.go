// Package model assembles feature matrices from joined site records and
// trains the loss-year classifier.
package model

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyTrainingSet is returned when a dataset has no usable samples.
var ErrEmptyTrainingSet = errors.New("empty training set")

// FeatureNames lists the covariates in matrix column order.
var FeatureNames = []string{
	domain.ColTreeCover,
	domain.ColLatitude,
	domain.ColLongitude,
	domain.ColArea,
	domain.ColAltitudeMin,
	domain.ColAltitudeMax,
}

// NumFeatures is the width of every feature matrix.
const NumFeatures = 6

// Dataset is a feature matrix with one loss-year label per row. X is nil
// when the dataset is empty.
type Dataset struct {
	X *mat.Dense
	Y []int
}

// Len returns the number of samples.
func (d Dataset) Len() int {
	return len(d.Y)
}

// ExclusionStats counts records left out of a dataset.
type ExclusionStats struct {
	MissingLabel     int
	MissingCovariate int
}

// BuildDataset keeps records with a loss-year label and all six covariates
// present, in input order.
func BuildDataset(records []domain.GeoJoinedRecord) (Dataset, ExclusionStats) {
	var stats ExclusionStats
	var data []float64
	var labels []int

	for _, r := range records {
		if !r.LossYear.Valid {
			stats.MissingLabel++
			continue
		}
		row, ok := featureRow(r)
		if !ok {
			stats.MissingCovariate++
			continue
		}
		data = append(data, row[:]...)
		labels = append(labels, r.LossYear.Code)
	}

	if len(labels) == 0 {
		return Dataset{}, stats
	}
	return Dataset{X: mat.NewDense(len(labels), NumFeatures, data), Y: labels}, stats
}

func featureRow(r domain.GeoJoinedRecord) ([NumFeatures]float64, bool) {
	values := [NumFeatures]domain.OptionalFloat{
		r.TreeCover,
		domain.Float(r.Latitude),
		domain.Float(r.Longitude),
		r.AreaHa,
		r.AltitudeMin,
		r.AltitudeMax,
	}
	var row [NumFeatures]float64
	for i, v := range values {
		if !v.Valid {
			return row, false
		}
		row[i] = v.Value
	}
	return row, true
}

// Subset returns the samples at idx, in that order.
func (d Dataset) Subset(idx []int) Dataset {
	if len(idx) == 0 {
		return Dataset{}
	}
	_, cols := d.X.Dims()
	x := mat.NewDense(len(idx), cols, nil)
	y := make([]int, len(idx))
	for i, j := range idx {
		x.SetRow(i, d.X.RawRowView(j))
		y[i] = d.Y[j]
	}
	return Dataset{X: x, Y: y}
}

// Concat appends the samples of b after those of a.
func Concat(a, b Dataset) (Dataset, error) {
	switch {
	case a.Len() == 0:
		return b, nil
	case b.Len() == 0:
		return a, nil
	}
	_, ca := a.X.Dims()
	_, cb := b.X.Dims()
	if ca != cb {
		return Dataset{}, fmt.Errorf("concat datasets: %d and %d features", ca, cb)
	}
	x := mat.NewDense(a.Len()+b.Len(), ca, nil)
	x.Stack(a.X, b.X)
	y := make([]int, 0, a.Len()+b.Len())
	y = append(append(y, a.Y...), b.Y...)
	return Dataset{X: x, Y: y}, nil
}

// rows returns the raw row views of m.
func rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = m.RawRowView(i)
	}
	return out
}
