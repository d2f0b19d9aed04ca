// Package graphscore implements the Graph Scorer (spec.md §4.6): a
// two-layer GCN-style embedding propagation over the local
// {target ∪ neighbours} adjacency, combined with a Mahalanobis/cosine/
// degree-ratio anomaly score. Grounded in the original
// backend/ml/gnn_scorer.py (Xavier init seed=42, symmetric adjacency
// normalisation, 2-layer GCN). No corpus dependency supplies dense
// linear algebra (gonum is not part of any retrieved example's
// go.mod), so matrix operations are hand-rolled small dense helpers,
// justified in DESIGN.md.
package graphscore

import (
	"math"
	"math/rand"
	"sort"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/features"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

const (
	seed        = 42
	hiddenDim   = 32
	embeddingDim = 16
	numLayers   = 2
	covReg      = 1e-6
)

// Scorer is constructed once by the orchestrator (spec.md §9: no
// process-wide singleton) and reused across calls; its weights are
// re-initialised from the fixed seed for every Score call so that
// output is deterministic for identical input ordering, exactly as
// spec.md §4.6 requires.
type Scorer struct{}

// New constructs a Scorer.
func New() *Scorer { return &Scorer{} }

// Result is the graph anomaly outcome for the target node.
type Result struct {
	Score        float64 `json:"gnn_score"`
	Mahalanobis  float64 `json:"mahalanobis_distance"`
	CosineAnomaly float64 `json:"cosine_anomaly"`
	DegreeRatio  float64 `json:"degree_ratio"`
	DegreeAnomaly bool   `json:"degree_anomaly"`
}

// Score builds the local adjacency over target+neighbours from every
// transaction the detector has seen (target's own txns plus each
// neighbour's own txns), runs the two-layer GCN, and computes the
// anomaly combination spec.md §4.6 defines.
func (s *Scorer) Score(target chain.Address, targetTxns []fetchadapter.Transaction, neighbourTxns map[chain.Address][]fetchadapter.Transaction) Result {
	neighbours := make([]chain.Address, 0, len(neighbourTxns))
	for addr := range neighbourTxns {
		neighbours = append(neighbours, addr)
	}
	sort.Slice(neighbours, func(i, j int) bool { return neighbours[i].String() < neighbours[j].String() })

	nodes := append([]chain.Address{target}, neighbours...)
	n := len(nodes)
	idxOf := make(map[chain.Address]int, n)
	for i, a := range nodes {
		idxOf[a] = i
	}

	// feature matrix: 33-dim per node, each extracted from that node's
	// own transaction list.
	X := make([][]float64, n)
	X[0] = toSlice(features.Extract(target, targetTxns))
	for i := 1; i < n; i++ {
		X[i] = toSlice(features.Extract(nodes[i], neighbourTxns[nodes[i]]))
	}
	standardiseColumns(X)

	A := buildAdjacency(nodes, idxOf, targetTxns, neighbourTxns)
	Anorm := normaliseAdjacency(A)

	rng := rand.New(rand.NewSource(seed))
	H := X
	dims := []int{len(X[0]), hiddenDim, embeddingDim}
	for l := 0; l < numLayers; l++ {
		W := xavier(rng, dims[l], dims[l+1])
		H = relu(matmul(matmul(Anorm, H), W))
	}

	targetEmb := H[0]
	graphMean := columnMeans(H)
	cov := regularisedCovariance(H, graphMean)

	mahal := mahalanobis(targetEmb, graphMean, cov)
	cosAnomaly := 1 - cosineSimilarity(targetEmb, graphMean)

	degree := rowSum(A, 0)
	avgDegree := meanRowSum(A)
	degreeRatio := degree / math.Max(avgDegree, 1e-12)
	degreeAnomaly := degreeRatio < 0.3 || degreeRatio > 3

	degTerm := 0.0
	if degreeAnomaly {
		degTerm = 20
	}
	score := math.Min(mahal/10*50, 50) + math.Min(cosAnomaly/2*30, 30) + degTerm
	score = clamp(score, 0, 100)

	return Result{
		Score:         score,
		Mahalanobis:   mahal,
		CosineAnomaly: cosAnomaly,
		DegreeRatio:   degreeRatio,
		DegreeAnomaly: degreeAnomaly,
	}
}

func toSlice(v features.Vector) []float64 {
	out := make([]float64, features.Dimension)
	for i := range v {
		out[i] = v.Get(i)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
