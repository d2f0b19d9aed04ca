package trainer

import (
	"math"
	"math/rand"
)

// This is a third, independent isolation-forest implementation: per
// DESIGN.md Open Question resolution 4, the per-wallet Outlier
// Detector, the Unsupervised Pipeline, and the Supervised Trainer each
// define and normalise their score on a different contract
// (min-max-to-100, rescale-to-unit, decision_function-with-threshold
// respectively), so they are kept as separate small implementations
// rather than one shared package.

const (
	stage1Trees     = 300
	stage1Subsample = 256
	stage1Seed      = 42
)

// Stage1Model is the fitted isolation-forest + standardisation scaler
// (ml/train_iforest.py train_isolation_forest).
type Stage1Model struct {
	forest *trainerIsoForest
	mean   []float64
	std    []float64
}

// FitStage1 standardises a copy of rows (rows itself is not modified),
// fits the isolation forest and returns the model (ml/train_iforest.py).
func FitStage1(rows [][]float64) *Stage1Model {
	scaled, mean, std := standardiseCopy(rows)
	forest := buildTrainerForest(rand.New(rand.NewSource(stage1Seed)), scaled)
	return &Stage1Model{forest: forest, mean: mean, std: std}
}

// Score computes anomaly_score for a single raw (unscaled) row.
func (m *Stage1Model) Score(row []float64) float64 {
	scaled := make([]float64, len(row))
	for i, v := range row {
		scaled[i] = (v - m.mean[i]) / m.std[i]
	}
	return m.forest.decisionFunction(scaled)
}

// EnrichWithAnomalyFeatures computes anomaly_score/anomaly_flag for
// every row and appends them as the last two matrix columns, exactly
// as ml/train_iforest.py::compute_anomaly_features does for stage 2.
func (m *Stage1Model) EnrichWithAnomalyFeatures(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		score := m.Score(row)
		flag := 0.0
		if score < AnomalyThreshold {
			flag = 1.0
		}
		enriched := make([]float64, 0, len(row)+2)
		enriched = append(enriched, row...)
		enriched = append(enriched, score, flag)
		out[i] = enriched
	}
	return out
}

func standardiseCopy(rows [][]float64) ([][]float64, []float64, []float64) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	dim := len(rows[0])
	mean := make([]float64, dim)
	std := make([]float64, dim)
	for c := 0; c < dim; c++ {
		var sum float64
		for _, r := range rows {
			sum += r[c]
		}
		m := sum / float64(len(rows))
		var sumSq float64
		for _, r := range rows {
			d := r[c] - m
			sumSq += d * d
		}
		sd := math.Sqrt(sumSq / float64(len(rows)))
		if sd < 1e-12 {
			sd = 1
		}
		mean[c] = m
		std[c] = sd
	}

	scaled := make([][]float64, len(rows))
	for i, r := range rows {
		row := make([]float64, dim)
		for c := 0; c < dim; c++ {
			row[c] = (r[c] - mean[c]) / std[c]
		}
		scaled[i] = row
	}
	return scaled, mean, std
}

type trainerIsoTreeNode struct {
	splitFeature int
	splitValue   float64
	left, right  *trainerIsoTreeNode
	size         int
	isLeaf       bool
}

type trainerIsoForest struct {
	trees      []*trainerIsoTreeNode
	sampleSize int
}

func buildTrainerForest(rng *rand.Rand, rows [][]float64) *trainerIsoForest {
	n := len(rows)
	sampleSize := n
	if sampleSize > stage1Subsample {
		sampleSize = stage1Subsample
	}
	maxDepth := ceilLog2(maxInt(sampleSize, 2))

	f := &trainerIsoForest{sampleSize: sampleSize}
	for t := 0; t < stage1Trees; t++ {
		sample := sampleTrainerRows(rng, rows, sampleSize)
		f.trees = append(f.trees, buildTrainerTree(rng, sample, 0, maxDepth))
	}
	return f
}

func sampleTrainerRows(rng *rand.Rand, rows [][]float64, size int) [][]float64 {
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

func buildTrainerTree(rng *rand.Rand, rows [][]float64, depth, maxDepth int) *trainerIsoTreeNode {
	if depth >= maxDepth || len(rows) <= 1 {
		return &trainerIsoTreeNode{isLeaf: true, size: len(rows)}
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
		return &trainerIsoTreeNode{
			splitFeature: feat,
			splitValue:   split,
			left:         buildTrainerTree(rng, left, depth+1, maxDepth),
			right:        buildTrainerTree(rng, right, depth+1, maxDepth),
		}
	}
	return &trainerIsoTreeNode{isLeaf: true, size: len(rows)}
}

func trainerPathLength(t *trainerIsoTreeNode, row []float64, depth int) float64 {
	if t.isLeaf {
		return float64(depth) + trainerCFactor(t.size)
	}
	if row[t.splitFeature] < t.splitValue {
		return trainerPathLength(t.left, row, depth+1)
	}
	return trainerPathLength(t.right, row, depth+1)
}

func trainerCFactor(n int) float64 {
	if n <= 1 {
		return 0
	}
	nf := float64(n)
	return 2*(math.Log(nf-1)+0.5772156649) - 2*(nf-1)/nf
}

func (f *trainerIsoForest) decisionFunction(row []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += trainerPathLength(t, row, 0)
	}
	avgPath := total / float64(len(f.trees))
	c := trainerCFactor(f.sampleSize)
	if c == 0 {
		c = 1
	}
	anomalyScore := math.Pow(2, -avgPath/c)
	return 0.5 - anomalyScore
}

func ceilLog2(n int) int {
	return int(math.Ceil(math.Log2(math.Max(float64(n), 2))))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
