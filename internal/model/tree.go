package model

import (
	"math/rand/v2"
	"sort"
)

// leaf marks a node without children.
const leaf = -1

type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	probs     []float64 // class distribution, leaves only
}

// decisionTree is a fully grown CART classifier over class indices
// 0..nClasses-1, split on Gini impurity.
type decisionTree struct {
	nodes       []treeNode
	nClasses    int
	maxFeatures int
}

// growTree fits a tree on the samples at idx. Duplicated indices act as
// sample weights, which is how bootstrap draws reach the tree.
func growTree(x [][]float64, y []int, idx []int, nClasses, maxFeatures int, rng *rand.Rand) *decisionTree {
	t := &decisionTree{nClasses: nClasses, maxFeatures: maxFeatures}
	t.grow(x, y, idx, rng)
	return t
}

func (t *decisionTree) grow(x [][]float64, y []int, idx []int, rng *rand.Rand) int {
	counts := classCounts(y, idx, t.nClasses)
	self := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{left: leaf, right: leaf})

	if isPure(counts) || len(idx) < 2 {
		t.nodes[self].probs = normalize(counts)
		return self
	}

	feature, threshold, ok := t.bestSplit(x, y, idx, counts, rng)
	if !ok {
		t.nodes[self].probs = normalize(counts)
		return self
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.grow(x, y, left, rng)
	r := t.grow(x, y, right, rng)
	t.nodes[self].feature = feature
	t.nodes[self].threshold = threshold
	t.nodes[self].left = l
	t.nodes[self].right = r
	return self
}

// bestSplit draws features in random order and evaluates them until
// maxFeatures non-constant features have been tried and a split was found.
func (t *decisionTree) bestSplit(x [][]float64, y []int, idx []int, parent []int, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(x[idx[0]])
	order := rng.Perm(nFeatures)

	bestFeature, bestThreshold := -1, 0.0
	bestScore := -1.0
	tried := 0

	sorted := make([]int, len(idx))
	leftCounts := make([]int, t.nClasses)
	rightCounts := make([]int, t.nClasses)

	for _, f := range order {
		if tried >= t.maxFeatures && bestFeature >= 0 {
			break
		}

		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool { return x[sorted[a]][f] < x[sorted[b]][f] })
		if x[sorted[0]][f] == x[sorted[len(sorted)-1]][f] {
			continue
		}
		tried++

		for k := range leftCounts {
			leftCounts[k] = 0
			rightCounts[k] = parent[k]
		}
		n := len(sorted)
		for pos := 0; pos < n-1; pos++ {
			c := y[sorted[pos]]
			leftCounts[c]++
			rightCounts[c]--

			v, next := x[sorted[pos]][f], x[sorted[pos+1]][f]
			if v == next {
				continue
			}
			nl, nr := pos+1, n-pos-1
			// Weighted child impurity, lower is better.
			score := float64(nl)*gini(leftCounts, nl) + float64(nr)*gini(rightCounts, nr)
			if bestScore < 0 || score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = v + (next-v)/2
				if bestThreshold == next {
					bestThreshold = v
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// predictProba returns the class distribution of the leaf row falls into.
func (t *decisionTree) predictProba(row []float64) []float64 {
	n := &t.nodes[0]
	for n.left != leaf {
		if row[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n.probs
}

func classCounts(y []int, idx []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func normalize(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	probs := make([]float64, len(counts))
	if total == 0 {
		return probs
	}
	for i, c := range counts {
		probs[i] = float64(c) / float64(total)
	}
	return probs
}
