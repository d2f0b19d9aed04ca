package unsupervised

import (
	"math"

	"github.com/riskengine/walletrisk/pkg/chain"
)

// WalletFeatures is the 7-dimension per-wallet feature row spec.md
// §4.12 step 2 defines.
type WalletFeatures struct {
	InDegree      float64
	OutDegree     float64
	TotalIn       float64
	TotalOut      float64
	PassThrough   float64 // |in - out|
	MeanGapSeconds float64
	Volume        float64
}

func (f WalletFeatures) row() []float64 {
	return []float64{f.InDegree, f.OutDegree, f.TotalIn, f.TotalOut, f.PassThrough, f.MeanGapSeconds, f.Volume}
}

// ExtractWalletFeatures computes the 7-feature row for every node in g
// (spec.md §4.12 step 2): in/out degree, total in/out value,
// pass-through, mean inter-transaction gap over the union of in and
// out timestamps, and total volume (in + out).
func ExtractWalletFeatures(g *Graph) map[chain.Address]WalletFeatures {
	out := make(map[chain.Address]WalletFeatures, len(g.Nodes))
	for _, n := range g.SortedNodes() {
		inEdges := g.In[n]
		outEdges := g.Out[n]

		var totalIn, totalOut float64
		var timestamps []int64
		for _, e := range inEdges {
			totalIn += e.ValueEth
			timestamps = append(timestamps, e.Timestamp)
		}
		for _, e := range outEdges {
			totalOut += e.ValueEth
			timestamps = append(timestamps, e.Timestamp)
		}

		out[n] = WalletFeatures{
			InDegree:       float64(len(inEdges)),
			OutDegree:      float64(len(outEdges)),
			TotalIn:        totalIn,
			TotalOut:       totalOut,
			PassThrough:    math.Abs(totalIn - totalOut),
			MeanGapSeconds: meanGap(timestamps),
			Volume:         totalIn + totalOut,
		}
	}
	return out
}

func meanGap(timestamps []int64) float64 {
	if len(timestamps) < 2 {
		return 0
	}
	sorted := append([]int64(nil), timestamps...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	var sum float64
	for i := 1; i < len(sorted); i++ {
		sum += float64(sorted[i] - sorted[i-1])
	}
	return sum / float64(len(sorted)-1)
}
