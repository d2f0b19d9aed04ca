package unsupervised

import (
	"math"
	"math/rand"
)

// This isolation-forest implementation is deliberately separate from
// pkg/outlier's: spec.md §4.12 step 3 rescales to [0,1] (1=most
// anomalous) rather than the per-wallet detector's [0,100] min-max
// scale, and thresholds via sklearn's own "predict" convention
// (decision_function < 0) rather than a fixed percentile. See
// DESIGN.md Open Question resolution 4.

const (
	numTrees       = 100
	subsampleSize  = 256
	seed           = 7
)

type isoTree struct {
	splitFeature int
	splitValue   float64
	left, right  *isoTree
	size         int
	isLeaf       bool
}

type isoForest struct {
	trees      []*isoTree
	sampleSize int
}

func fitIsolationForest(rows [][]float64) *isoForest {
	rng := rand.New(rand.NewSource(seed))
	n := len(rows)
	sampleSize := n
	if sampleSize > subsampleSize {
		sampleSize = subsampleSize
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2))))

	f := &isoForest{sampleSize: sampleSize}
	for t := 0; t < numTrees; t++ {
		sample := sampleRows(rng, rows, sampleSize)
		f.trees = append(f.trees, buildIsoTree(rng, sample, 0, maxDepth))
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

func buildIsoTree(rng *rand.Rand, rows [][]float64, depth, maxDepth int) *isoTree {
	if depth >= maxDepth || len(rows) <= 1 {
		return &isoTree{isLeaf: true, size: len(rows)}
	}
	dim := len(rows[0])
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
		return &isoTree{
			splitFeature: feat,
			splitValue:   split,
			left:         buildIsoTree(rng, left, depth+1, maxDepth),
			right:        buildIsoTree(rng, right, depth+1, maxDepth),
		}
	}
	return &isoTree{isLeaf: true, size: len(rows)}
}

func isoPathLength(t *isoTree, row []float64, depth int) float64 {
	if t.isLeaf {
		return float64(depth) + isoCFactor(t.size)
	}
	if row[t.splitFeature] < t.splitValue {
		return isoPathLength(t.left, row, depth+1)
	}
	return isoPathLength(t.right, row, depth+1)
}

func isoCFactor(n int) float64 {
	if n <= 1 {
		return 0
	}
	nf := float64(n)
	return 2*(math.Log(nf-1)+0.5772156649) - 2*(nf-1)/nf
}

// decisionFunction mirrors sklearn: positive values are normal,
// negative values are anomalous.
func (f *isoForest) decisionFunction(row []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += isoPathLength(t, row, 0)
	}
	avgPath := total / float64(len(f.trees))
	c := isoCFactor(f.sampleSize)
	if c == 0 {
		c = 1
	}
	anomalyScore := math.Pow(2, -avgPath/c)
	return 0.5 - anomalyScore
}

// rescaleUnit maps a raw decision_function score to [0,1] where 1 is
// most anomalous: spec.md §4.12 step 3's `(1-raw)/2` over a score
// already clamped to [-1,1].
func rescaleUnit(raw float64) float64 {
	clamped := math.Max(-1, math.Min(1, raw))
	return coerce((1 - clamped) / 2)
}

func coerce(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
