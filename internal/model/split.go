package model

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// TrainTestSplit shuffles d deterministically from seed and holds out
// ceil(n*testFraction) samples. Both partitions must be non-empty.
func TrainTestSplit(d Dataset, testFraction float64, seed uint64) (train, test Dataset, err error) {
	n := d.Len()
	if n == 0 {
		return Dataset{}, Dataset{}, ErrEmptyTrainingSet
	}
	if testFraction <= 0 || testFraction >= 1 {
		return Dataset{}, Dataset{}, fmt.Errorf("split: test fraction %v not in (0, 1)", testFraction)
	}

	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest >= n {
		return Dataset{}, Dataset{}, fmt.Errorf("split %d samples: %w in training partition", n, ErrEmptyTrainingSet)
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	return d.Subset(perm[nTest:]), d.Subset(perm[:nTest]), nil
}
