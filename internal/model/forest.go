package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// ErrModelNotFitted is returned by Predict before Fit.
var ErrModelNotFitted = errors.New("model not fitted")

// RandomForest is a bagged ensemble of fully grown CART trees. Each split
// considers floor(sqrt(features)) randomly drawn features. Predictions
// average the trees' class distributions; ties go to the lowest label.
type RandomForest struct {
	trees    []*decisionTree
	classes  []int
	features int
	nTrees   int
	seed     uint64
}

// NewRandomForest returns an unfitted forest of n trees. The same seed and
// training data always produce the same model.
func NewRandomForest(n int, seed uint64) *RandomForest {
	return &RandomForest{nTrees: n, seed: seed}
}

// Fit trains the forest on d, replacing any previous fit.
func (f *RandomForest) Fit(d Dataset) error {
	if d.Len() == 0 {
		return ErrEmptyTrainingSet
	}
	if f.nTrees < 1 {
		return fmt.Errorf("fit forest: %d trees", f.nTrees)
	}

	f.classes = uniqueSorted(d.Y)
	classIndex := make(map[int]int, len(f.classes))
	for i, c := range f.classes {
		classIndex[c] = i
	}
	y := make([]int, d.Len())
	for i, label := range d.Y {
		y[i] = classIndex[label]
	}

	x := rows(d.X)
	_, f.features = d.X.Dims()
	maxFeatures := max(1, int(math.Sqrt(float64(f.features))))

	n := d.Len()
	f.trees = make([]*decisionTree, f.nTrees)
	for t := range f.trees {
		rng := rand.New(rand.NewPCG(f.seed, uint64(t)))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		f.trees[t] = growTree(x, y, sample, len(f.classes), maxFeatures, rng)
	}
	return nil
}

// Predict returns one label per row of x.
func (f *RandomForest) Predict(x *mat.Dense) ([]int, error) {
	if f.trees == nil {
		return nil, ErrModelNotFitted
	}
	if x == nil {
		return nil, ErrEmptyTrainingSet
	}
	if _, c := x.Dims(); c != f.features {
		return nil, fmt.Errorf("predict: %d features, model fitted on %d", c, f.features)
	}

	out := make([]int, 0)
	sum := make([]float64, len(f.classes))
	for _, row := range rows(x) {
		clear(sum)
		for _, t := range f.trees {
			for k, p := range t.predictProba(row) {
				sum[k] += p
			}
		}
		best := 0
		for k := 1; k < len(sum); k++ {
			if sum[k] > sum[best] {
				best = k
			}
		}
		out = append(out, f.classes[best])
	}
	return out, nil
}

// Classes returns the sorted labels seen by Fit.
func (f *RandomForest) Classes() []int {
	return slices.Clone(f.classes)
}

func uniqueSorted(values []int) []int {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
