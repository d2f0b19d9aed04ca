package unsupervised

import (
	"math"
	"sort"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

const (
	clusterWeightAnomaly = 0.40
	clusterWeightRatio   = 0.35
	clusterWeightSize    = 0.25
	sizeCapForScore      = 20.0

	boostMalicious  = 0.25
	suppressBenign  = 0.30
	propagationRate = 0.10

	explainInternalRatio   = 0.5
	explainShortGapSeconds = 120
	explainPassThroughFrac = 0.40
	explainPassThroughCap  = 0.15
	explainFanDegree       = 10
)

// LabelHint is a known-good/known-bad hint fed into the hybrid
// adjustment (spec.md §4.12 step 6).
type LabelHint struct {
	Malicious  bool
	Confidence float64
}

// Cluster is one scored weakly-connected component of anomalous
// wallets.
type Cluster struct {
	ID             int
	Wallets        []chain.Address
	RiskScore      float64
	Signals        []string
	PredictedExits []chain.Address
}

// Result is the standalone pipeline's full output (spec.md §4.12).
type Result struct {
	TotalWallets     int
	AnomalousWallets int
	Clusters         []Cluster
	WalletScores     map[chain.Address]float64
}

// Run executes the full seven-step unsupervised pipeline over a flat
// transaction list, with optional known-label hints for hybrid
// adjustment (spec.md §4.12).
func Run(txns []fetchadapter.Transaction, hints map[chain.Address]LabelHint) Result {
	g := BuildGraph(txns)
	nodes := g.SortedNodes()
	wf := ExtractWalletFeatures(g)

	rows := make([][]float64, len(nodes))
	for i, n := range nodes {
		rows[i] = wf[n].row()
	}
	standardise(rows)

	forest := fitIsolationForest(rows)
	rawScores := make(map[chain.Address]float64, len(nodes))
	unitScores := make(map[chain.Address]float64, len(nodes))
	var anomalous []chain.Address
	for i, n := range nodes {
		raw := forest.decisionFunction(rows[i])
		rawScores[n] = raw
		unitScores[n] = rescaleUnit(raw)
		if raw < 0 {
			anomalous = append(anomalous, n)
		}
	}

	components := g.WeaklyConnectedComponents(anomalous)

	clusters := make([]Cluster, 0, len(components))
	for i, component := range components {
		clusters = append(clusters, scoreCluster(i, component, g, unitScores, wf))
	}

	clusters = applyHybridAdjustment(clusters, g, wf, hints)

	walletScores := make(map[chain.Address]float64, len(nodes))
	for n, s := range unitScores {
		walletScores[n] = s * 100
	}

	return Result{
		TotalWallets:     len(nodes),
		AnomalousWallets: len(anomalous),
		Clusters:         clusters,
		WalletScores:     walletScores,
	}
}

func standardise(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	dim := len(rows[0])
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
		std := math.Sqrt(sumSq / float64(len(rows)))
		if std < 1e-12 {
			std = 1
		}
		for i := range rows {
			rows[i][c] = (rows[i][c] - m) / std
		}
	}
}

// scoreCluster applies spec.md §4.12 step 5's weighted formula.
func scoreCluster(id int, wallets []chain.Address, g *Graph, unitScores map[chain.Address]float64, wf map[chain.Address]WalletFeatures) Cluster {
	member := make(map[chain.Address]struct{}, len(wallets))
	for _, w := range wallets {
		member[w] = struct{}{}
	}

	var meanAnomaly float64
	for _, w := range wallets {
		meanAnomaly += unitScores[w]
	}
	meanAnomaly /= float64(len(wallets))

	var internalEdges, totalEdges int
	for _, w := range wallets {
		for _, e := range g.Out[w] {
			totalEdges++
			if _, ok := member[e.To]; ok {
				internalEdges++
			}
		}
		for _, e := range g.In[w] {
			if _, ok := member[e.From]; !ok {
				totalEdges++
			}
		}
	}
	denom := totalEdges - internalEdges
	internalRatio := 0.0
	if denom > 0 {
		internalRatio = float64(internalEdges) / float64(denom)
	}

	sizeTerm := math.Min(float64(len(wallets)), sizeCapForScore) / sizeCapForScore

	score := clusterWeightAnomaly*meanAnomaly + clusterWeightRatio*internalRatio + clusterWeightSize*sizeTerm
	score = coerce(score * 100)

	signals := explainCluster(wallets, member, g, wf, internalRatio)
	exits := predictedExits(wallets, member, g)

	return Cluster{
		ID:             id,
		Wallets:        wallets,
		RiskScore:      clampScore(score),
		Signals:        signals,
		PredictedExits: exits,
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// explainCluster derives the named signals from spec.md §4.12 step 7.
func explainCluster(wallets []chain.Address, member map[chain.Address]struct{}, g *Graph, wf map[chain.Address]WalletFeatures, internalRatio float64) []string {
	var signals []string

	if internalRatio >= explainInternalRatio {
		signals = append(signals, "high_internal_circulation")
	}

	var gapSum float64
	var gapCount int
	for _, w := range wallets {
		if f, ok := wf[w]; ok && f.MeanGapSeconds > 0 {
			gapSum += f.MeanGapSeconds
			gapCount++
		}
	}
	if gapCount > 0 && gapSum/float64(gapCount) < explainShortGapSeconds {
		signals = append(signals, "short_inter_tx_times")
	}

	passThroughLow := 0
	for _, w := range wallets {
		f := wf[w]
		if f.Volume <= 0 {
			continue
		}
		if f.PassThrough/f.Volume <= explainPassThroughCap {
			passThroughLow++
		}
	}
	if float64(passThroughLow)/float64(len(wallets)) >= explainPassThroughFrac {
		signals = append(signals, "high_pass_through")
	}

	maxDegree := 0.0
	for _, w := range wallets {
		f := wf[w]
		maxDegree = math.Max(maxDegree, math.Max(f.InDegree, f.OutDegree))
	}
	if maxDegree >= explainFanDegree {
		signals = append(signals, "high_fan_out_in")
	}

	if len(predictedExits(wallets, member, g)) >= 2 {
		signals = append(signals, "predicted_exits")
	}

	return signals
}

// predictedExits finds wallets whose external out-degree exceeds
// internal out-degree (spec.md §4.12 step 7).
func predictedExits(wallets []chain.Address, member map[chain.Address]struct{}, g *Graph) []chain.Address {
	var exits []chain.Address
	for _, w := range wallets {
		var internal, external int
		for _, e := range g.Out[w] {
			if _, ok := member[e.To]; ok {
				internal++
			} else {
				external++
			}
		}
		if external > internal && external >= 2 {
			exits = append(exits, w)
		}
	}
	sort.Slice(exits, func(i, j int) bool { return exits[i] < exits[j] })
	return exits
}

// applyHybridAdjustment boosts/suppresses cluster scores by known
// labels and propagates a volume-weighted boost one hop to unlabelled
// wallets (spec.md §4.12 step 6).
func applyHybridAdjustment(clusters []Cluster, g *Graph, wf map[chain.Address]WalletFeatures, hints map[chain.Address]LabelHint) []Cluster {
	if len(hints) == 0 {
		return clusters
	}

	out := make([]Cluster, len(clusters))
	for i, c := range clusters {
		score := c.RiskScore
		for _, w := range c.Wallets {
			if hint, ok := hints[w]; ok {
				if hint.Malicious {
					score += boostMalicious * hint.Confidence * 100
				} else {
					score -= suppressBenign * hint.Confidence * 100
				}
			}
		}

		for _, w := range c.Wallets {
			if _, labelled := hints[w]; labelled {
				continue
			}
			var maliciousVolume, totalVolume float64
			for _, e := range append(append([]Edge{}, g.Out[w]...), g.In[w]...) {
				totalVolume += e.ValueEth
				other := e.To
				if other == w {
					other = e.From
				}
				if hint, ok := hints[other]; ok && hint.Malicious {
					maliciousVolume += e.ValueEth
				}
			}
			if totalVolume > 0 {
				score += propagationRate * (maliciousVolume / totalVolume) * 100
			}
		}

		c.RiskScore = clampScore(coerce(score))
		out[i] = c
	}
	return out
}
