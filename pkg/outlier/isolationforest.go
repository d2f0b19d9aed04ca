package outlier

import (
	"math"
	"math/rand"
)

// isolationTree is a single randomised isolation tree (Liu, Ting &
// Zhou, "Isolation Forest", 2008): internal nodes split on a random
// feature at a random threshold within the node's observed range;
// leaves are reached at a depth limit or when a node holds one point.
type isolationTree struct {
	splitFeature int
	splitValue   float64
	left, right  *isolationTree
	size         int // number of training points routed to this node
	isLeaf       bool
}

type isolationForest struct {
	trees      []*isolationTree
	sampleSize int
}

func buildForest(rng *rand.Rand, rows [][]float64) *isolationForest {
	n := len(rows)
	sampleSize := n
	if sampleSize > subsampleSize {
		sampleSize = subsampleSize
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2))))

	f := &isolationForest{sampleSize: sampleSize}
	for t := 0; t < numTrees; t++ {
		sample := sampleRows(rng, rows, sampleSize)
		f.trees = append(f.trees, buildTree(rng, sample, 0, maxDepth))
	}
	return f
}

func sampleRows(rng *rand.Rand, rows [][]float64, size int) [][]float64 {
	if size >= len(rows) {
		return rows
	}
	idx := rng.Perm(len(rows))[:size]
	out := make([][]float64, size)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func buildTree(rng *rand.Rand, rows [][]float64, depth, maxDepth int) *isolationTree {
	if depth >= maxDepth || len(rows) <= 1 {
		return &isolationTree{isLeaf: true, size: len(rows)}
	}

	dim := len(rows[0])
	// find a feature with non-degenerate range; give up after a few tries.
	for attempt := 0; attempt < dim; attempt++ {
		feat := rng.Intn(dim)
		lo, hi := rows[0][feat], rows[0][feat]
		for _, r := range rows {
			if r[feat] < lo {
				lo = r[feat]
			}
			if r[feat] > hi {
				hi = r[feat]
			}
		}
		if hi <= lo {
			continue
		}
		split := lo + rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, r := range rows {
			if r[feat] < split {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		return &isolationTree{
			splitFeature: feat,
			splitValue:   split,
			left:         buildTree(rng, left, depth+1, maxDepth),
			right:        buildTree(rng, right, depth+1, maxDepth),
		}
	}
	return &isolationTree{isLeaf: true, size: len(rows)}
}

// pathLength returns the isolation depth of row, adjusted at leaves by
// the average path length of an unsuccessful BST search over the
// remaining points in that leaf (the standard isolation-forest
// correction for leaves holding more than one point).
func pathLength(t *isolationTree, row []float64, depth int) float64 {
	if t.isLeaf {
		return float64(depth) + cFactor(t.size)
	}
	if row[t.splitFeature] < t.splitValue {
		return pathLength(t.left, row, depth+1)
	}
	return pathLength(t.right, row, depth+1)
}

// cFactor is the average path length of an unsuccessful BST search
// with n points (Liu et al. eq. 1).
func cFactor(n int) float64 {
	if n <= 1 {
		return 0
	}
	nf := float64(n)
	return 2*(math.Log(nf-1)+0.5772156649) - 2*(nf-1)/nf
}

// decisionFunction mirrors sklearn's IsolationForest.decision_function:
// raw = 0.5 - anomalyScore, so lower (more negative) values indicate
// anomaly, matching spec.md §4.5's "raw anomaly score where lower
// values indicate anomaly".
func (f *isolationForest) decisionFunction(row []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, row, 0)
	}
	avgPath := total / float64(len(f.trees))
	c := cFactor(f.sampleSize)
	if c == 0 {
		c = 1
	}
	anomalyScore := math.Pow(2, -avgPath/c)
	return 0.5 - anomalyScore
}
