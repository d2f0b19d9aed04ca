package graphscore

import (
	"math"
	"math/rand"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

// buildAdjacency builds the local weighted undirected adjacency
// A[i][j] = log(1 + total ether value between i and j) over every
// transaction the detector has seen (spec.md §4.6).
func buildAdjacency(nodes []chain.Address, idxOf map[chain.Address]int, targetTxns []fetchadapter.Transaction, neighbourTxns map[chain.Address][]fetchadapter.Transaction) [][]float64 {
	n := len(nodes)
	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = make([]float64, n)
	}

	add := func(txns []fetchadapter.Transaction) {
		for _, tx := range txns {
			i, okI := idxOf[tx.From]
			j, okJ := idxOf[tx.To]
			if !okI || !okJ || i == j {
				continue
			}
			v := math.Max(tx.ValueEth(), 0.01)
			raw[i][j] += v
			raw[j][i] += v
		}
	}
	add(targetTxns)
	for _, txns := range neighbourTxns {
		add(txns)
	}

	A := make([][]float64, n)
	for i := range A {
		A[i] = make([]float64, n)
		for j := range A[i] {
			A[i][j] = math.Log1p(raw[i][j])
		}
	}
	return A
}

// normaliseAdjacency applies symmetric normalisation
// D^{-1/2}(A+I)D^{-1/2} (spec.md §4.6).
func normaliseAdjacency(A [][]float64) [][]float64 {
	n := len(A)
	hat := make([][]float64, n)
	for i := range hat {
		hat[i] = append([]float64(nil), A[i]...)
		hat[i][i] += 1
	}
	degree := make([]float64, n)
	for i := range hat {
		var sum float64
		for _, v := range hat[i] {
			sum += v
		}
		degree[i] = 1 / math.Sqrt(math.Max(sum, 1e-12))
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = degree[i] * hat[i][j] * degree[j]
		}
	}
	return out
}

func rowSum(A [][]float64, row int) float64 {
	var sum float64
	for _, v := range A[row] {
		sum += v
	}
	return sum
}

func meanRowSum(A [][]float64) float64 {
	var total float64
	for i := range A {
		total += rowSum(A, i)
	}
	return total / float64(len(A))
}

func matmul(a, b [][]float64) [][]float64 {
	rows, inner, cols := len(a), len(b), len(b[0])
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for k := 0; k < inner; k++ {
			aik := a[i][k]
			if aik == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				out[i][j] += aik * b[k][j]
			}
		}
	}
	return out
}

func relu(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if v > 0 {
				out[i][j] = v
			}
		}
	}
	return out
}

// xavier builds a fanIn x fanOut weight matrix with Xavier/Glorot
// initialisation, as the original gnn_scorer.py does per layer.
func xavier(rng *rand.Rand, fanIn, fanOut int) [][]float64 {
	scale := math.Sqrt(2.0 / float64(fanIn+fanOut))
	W := make([][]float64, fanIn)
	for i := range W {
		W[i] = make([]float64, fanOut)
		for j := range W[i] {
			W[i][j] = rng.NormFloat64() * scale
		}
	}
	return W
}

func standardiseColumns(X [][]float64) {
	if len(X) == 0 {
		return
	}
	dim := len(X[0])
	for c := 0; c < dim; c++ {
		var sum float64
		for _, row := range X {
			sum += row[c]
		}
		m := sum / float64(len(X))
		var sumSq float64
		for _, row := range X {
			d := row[c] - m
			sumSq += d * d
		}
		std := math.Sqrt(sumSq / float64(len(X)))
		if std < 1e-12 {
			std = 1
		}
		for i := range X {
			X[i][c] = (X[i][c] - m) / std
		}
	}
}

func columnMeans(M [][]float64) []float64 {
	dim := len(M[0])
	means := make([]float64, dim)
	for _, row := range M {
		for c, v := range row {
			means[c] += v
		}
	}
	for c := range means {
		means[c] /= float64(len(M))
	}
	return means
}

// regularisedCovariance computes cov(H) + covReg*I over the rows of H.
func regularisedCovariance(H [][]float64, mean []float64) [][]float64 {
	dim := len(mean)
	n := len(H)
	cov := make([][]float64, dim)
	for i := range cov {
		cov[i] = make([]float64, dim)
	}
	if n <= 2 {
		for i := range cov {
			cov[i][i] = 1 + covReg
		}
		return cov
	}
	for _, row := range H {
		for i := 0; i < dim; i++ {
			di := row[i] - mean[i]
			for j := 0; j < dim; j++ {
				dj := row[j] - mean[j]
				cov[i][j] += di * dj
			}
		}
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			cov[i][j] /= float64(n - 1)
		}
		cov[i][i] += covReg
	}
	return cov
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na)*math.Sqrt(nb) + 1e-12
	return dot / denom
}

// mahalanobis computes sqrt((x-mean)^T cov^-1 (x-mean)), falling back
// to the L2 distance if the covariance matrix is singular (spec.md
// §4.6).
func mahalanobis(x, mean []float64, cov [][]float64) float64 {
	diff := make([]float64, len(x))
	for i := range diff {
		diff[i] = x[i] - mean[i]
	}
	inv, ok := invert(cov)
	if !ok {
		return l2norm(diff)
	}
	tmp := matVec(inv, diff)
	var d float64
	for i := range diff {
		d += diff[i] * tmp[i]
	}
	if d < 0 {
		return l2norm(diff)
	}
	return math.Sqrt(d)
}

func l2norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func matVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		var sum float64
		for j, x := range row {
			sum += x * v[j]
		}
		out[i] = sum
	}
	return out
}

// invert computes the inverse of a small square matrix via
// Gauss-Jordan elimination; returns ok=false if the matrix is
// singular to numerical precision.
func invert(m [][]float64) ([][]float64, bool) {
	n := len(m)
	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		maxVal := math.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if v := math.Abs(aug[r][col]); v > maxVal {
				pivot, maxVal = r, v
			}
		}
		if maxVal < 1e-12 {
			return nil, false
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pivotVal := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= pivotVal
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			for j := 0; j < 2*n; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}

	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = append([]float64(nil), aug[i][n:]...)
	}
	return inv, true
}
