// Package mev implements the MEV Detector (spec.md §4.8): sandwich,
// front-running, arbitrage and gas-outlier detection over a target's
// outbound transactions grouped by block, plus a static known-MEV-bot
// registry.
package mev

import (
	"math"
	"sort"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

const (
	frontrunPremiumPct = 0.10
	arbWindowSeconds   = 60
	arbMinCalls        = 3
	arbMinSequences    = 3
	gasOutlierCV       = 1.0
	gasOutlierMultiple = 5.0
	dexHeavyRatio      = 0.5
	dexHeavyMinCalls   = 5
	botThreshold       = 40
)

// SandwichRecord is a single detected sandwich within one block.
type SandwichRecord struct {
	Block       int64
	FrontIndex  int
	BackIndex   int
	VictimCount int
	FrontGasPrice float64
	BackGasPrice  float64
}

// FrontRun is a single detected front-running pair.
type FrontRun struct {
	Block     int64
	EarlyIndex int
	LateIndex  int
	PremiumPct float64
}

// Result is the full MEV-analysis outcome for a target.
type Result struct {
	Sandwiches       []SandwichRecord
	FrontRuns        []FrontRun
	ArbitrageSequences int
	IsArbitrageBot   bool
	GasOutlier       bool
	DexHeavy         bool
	KnownBotHits     int
	CompositeScore   float64
	IsBot            bool
}

// known MEV contracts observed interacting with sandwich/arbitrage bots
// (spec.md §4.8: "static set; any interaction contributes").
var knownMEVContracts = map[chain.Address]struct{}{
	chain.MustAddress("0x00000000003b3cc22af3ae1eac0440bcee416b40"): {}, // 0x Protocol: Settler-style router seen in bot traffic
	chain.MustAddress("0x1111111254eeb25477b68fb85ed929f73a960582"): {}, // 1inch v5 router
	chain.MustAddress("0xe37e799d5077682fa0a244d46e5649f71457bd09"): {}, // known arbitrage bot contract
}

var knownDexRouters = map[chain.Address]struct{}{
	chain.MustAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d"): {}, // Uniswap V2 router
	chain.MustAddress("0xe592427a0aece92de3edee1f18e0157c05861564"): {}, // Uniswap V3 router
	chain.MustAddress("0x1111111254eeb25477b68fb85ed929f73a960582"): {}, // 1inch v5 router
	chain.MustAddress("0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f"): {}, // Sushiswap router
}

// Analyze detects MEV patterns in target's outbound transactions
// (spec.md §4.8). Sandwich detection looks at the full block (any
// sender counts as a potential victim); the other detectors operate on
// target's outbound transactions only.
func Analyze(target chain.Address, txns []fetchadapter.Transaction) Result {
	var outbound []fetchadapter.Transaction
	for _, tx := range txns {
		if tx.From == target {
			outbound = append(outbound, tx)
		}
	}
	sort.Slice(outbound, func(i, j int) bool {
		if outbound[i].Block != outbound[j].Block {
			return outbound[i].Block < outbound[j].Block
		}
		return outbound[i].TxIndex < outbound[j].TxIndex
	})

	byBlock := make(map[int64][]fetchadapter.Transaction)
	for _, tx := range outbound {
		byBlock[tx.Block] = append(byBlock[tx.Block], tx)
	}
	var blocks []int64
	for b := range byBlock {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	fullByBlock := make(map[int64][]fetchadapter.Transaction)
	for _, tx := range txns {
		fullByBlock[tx.Block] = append(fullByBlock[tx.Block], tx)
	}
	for b, group := range fullByBlock {
		sort.Slice(group, func(i, j int) bool { return group[i].TxIndex < group[j].TxIndex })
		fullByBlock[b] = group
	}

	var sandwiches []SandwichRecord
	var frontRuns []FrontRun
	for _, b := range blocks {
		sandwiches = append(sandwiches, detectSandwiches(target, b, fullByBlock[b])...)
		frontRuns = append(frontRuns, detectFrontRuns(b, byBlock[b])...)
	}

	arbSeqs := countArbitrageSequences(outbound)
	isBot := arbSeqs >= arbMinSequences

	gasOutlier := detectGasOutlier(outbound)
	dexHeavy := detectDexHeavy(outbound)
	knownHits := countKnownBotHits(outbound)

	score := compositeScore(len(sandwiches), len(frontRuns), dexHeavy, knownHits, gasOutlier, isBot)

	return Result{
		Sandwiches:         sandwiches,
		FrontRuns:          frontRuns,
		ArbitrageSequences: arbSeqs,
		IsArbitrageBot:     isBot,
		GasOutlier:         gasOutlier,
		DexHeavy:           dexHeavy,
		KnownBotHits:       knownHits,
		CompositeScore:     score,
		IsBot:              score >= botThreshold,
	}
}

// detectSandwiches flags, per contract the target called more than
// once in a block, the target's first and last outbound tx to that
// contract as front/back, counting every transaction from any sender
// that falls between them (by tx_index) as a victim (spec.md §4.8).
func detectSandwiches(target chain.Address, block int64, fullGroup []fetchadapter.Transaction) []SandwichRecord {
	byContract := make(map[chain.Address][]int)
	for i, tx := range fullGroup {
		if tx.From == target {
			byContract[tx.To] = append(byContract[tx.To], i)
		}
	}

	var out []SandwichRecord
	for _, idxs := range byContract {
		if len(idxs) < 2 {
			continue
		}
		sort.Ints(idxs)
		frontIdx, backIdx := idxs[0], idxs[len(idxs)-1]
		victims := backIdx - frontIdx - 1
		if victims < 1 {
			continue
		}
		front, back := fullGroup[frontIdx], fullGroup[backIdx]
		out = append(out, SandwichRecord{
			Block:         block,
			FrontIndex:    front.TxIndex,
			BackIndex:     back.TxIndex,
			VictimCount:   victims,
			FrontGasPrice: front.GasPrice,
			BackGasPrice:  back.GasPrice,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FrontIndex < out[j].FrontIndex })
	return out
}

// detectFrontRuns flags pairs of same-contract calls within one block
// where the earlier tx's gas price exceeds the later's by the
// configured premium (spec.md §4.8).
func detectFrontRuns(block int64, group []fetchadapter.Transaction) []FrontRun {
	byContract := make(map[chain.Address][]fetchadapter.Transaction)
	for _, tx := range group {
		byContract[tx.To] = append(byContract[tx.To], tx)
	}

	var out []FrontRun
	for _, calls := range byContract {
		if len(calls) < 2 {
			continue
		}
		for i := 0; i < len(calls)-1; i++ {
			for j := i + 1; j < len(calls); j++ {
				early, late := calls[i], calls[j]
				if late.GasPrice <= 0 {
					continue
				}
				premium := (early.GasPrice - late.GasPrice) / late.GasPrice
				if premium >= frontrunPremiumPct {
					out = append(out, FrontRun{
						Block:      block,
						EarlyIndex: early.TxIndex,
						LateIndex:  late.TxIndex,
						PremiumPct: premium * 100,
					})
				}
			}
		}
	}
	return out
}

// countArbitrageSequences counts 60-second windows containing three or
// more DEX-router calls (spec.md §4.8).
func countArbitrageSequences(outbound []fetchadapter.Transaction) int {
	var dexCalls []fetchadapter.Transaction
	for _, tx := range outbound {
		if _, ok := knownDexRouters[tx.To]; ok {
			dexCalls = append(dexCalls, tx)
		}
	}
	sort.Slice(dexCalls, func(i, j int) bool { return dexCalls[i].Timestamp < dexCalls[j].Timestamp })

	sequences := 0
	i := 0
	for i < len(dexCalls) {
		j := i
		for j < len(dexCalls) && dexCalls[j].Timestamp-dexCalls[i].Timestamp <= arbWindowSeconds {
			j++
		}
		if j-i >= arbMinCalls {
			sequences++
			i = j
		} else {
			i++
		}
	}
	return sequences
}

// detectGasOutlier flags excess gas-price dispersion (spec.md §4.8).
func detectGasOutlier(outbound []fetchadapter.Transaction) bool {
	if len(outbound) == 0 {
		return false
	}
	gasPrices := make([]float64, len(outbound))
	for i, tx := range outbound {
		gasPrices[i] = tx.GasPrice
	}
	m := mean(gasPrices)
	if m <= 0 {
		return false
	}
	sd := stddev(gasPrices, m)
	if sd/m > gasOutlierCV {
		return true
	}
	for _, g := range gasPrices {
		if g > gasOutlierMultiple*m {
			return true
		}
	}
	return false
}

func detectDexHeavy(outbound []fetchadapter.Transaction) bool {
	if len(outbound) == 0 {
		return false
	}
	dexCount := 0
	for _, tx := range outbound {
		if _, ok := knownDexRouters[tx.To]; ok {
			dexCount++
		}
	}
	ratio := float64(dexCount) / float64(len(outbound))
	return ratio >= dexHeavyRatio && dexCount >= dexHeavyMinCalls
}

func countKnownBotHits(outbound []fetchadapter.Transaction) int {
	hits := 0
	for _, tx := range outbound {
		if _, ok := knownMEVContracts[tx.To]; ok {
			hits++
		}
	}
	return hits
}

// compositeScore applies spec.md §4.8's additive capped rule bank.
func compositeScore(sandwiches, frontRuns int, dexHeavy bool, knownBotHits int, gasOutlier, isArbBot bool) float64 {
	score := math.Min(float64(sandwiches)*15, 35)
	score += math.Min(float64(frontRuns)*10, 25)
	if dexHeavy {
		score += 15
	}
	score += math.Min(float64(knownBotHits)*5, 15)
	if gasOutlier {
		score += 10
	}
	if isArbBot {
		score += 20
	}
	return coerce(clamp(score, 0, 100))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
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

func coerce(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
