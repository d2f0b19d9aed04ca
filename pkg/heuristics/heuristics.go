// Package heuristics implements the Heuristic Rules bank (spec.md
// §4.4): a deterministic, additive, capped-at-100 rule bank over a
// FeatureVector. Grounded on the original backend/ml/scorer.py
// `_compute_heuristic_boost` function and the teacher's
// pkg/analyzer.go additive `scoreXxx` idiom.
package heuristics

import "github.com/riskengine/walletrisk/pkg/features"

// Score applies the rule bank in the order spec.md §4.4 lists (hard
// thresholds, no interpolation) and returns a value in [0,100].
func Score(v features.Vector) float64 {
	var score float64

	roundValueRatio := v.Get(features.IdxRoundValueRatio)
	switch {
	case roundValueRatio > 0.6:
		score += 20
	case roundValueRatio > 0.3:
		score += 10
	}

	burstRatio := v.Get(features.IdxBurstRatio)
	switch {
	case burstRatio > 0.5:
		score += 25
	case burstRatio > 0.2:
		score += 10
	}

	selfTransfers := v.Get(features.IdxSelfTransfers)
	switch {
	case selfTransfers > 3:
		score += 15
	case selfTransfers >= 1:
		score += 5
	}

	flowRatio := v.Get(features.IdxFlowRatio)
	switch {
	case flowRatio > 5:
		score += 20
	case flowRatio > 2:
		score += 10
	}

	if v.Get(features.IdxFailedTxRatio) > 0.3 {
		score += 15
	}

	if v.Get(features.IdxTxCount) > 20 && v.Get(features.IdxUniqueCounterparties) < 5 {
		score += 15
	}

	lifespanDays := v.Get(features.IdxLifespanDays)
	txCount := v.Get(features.IdxTxCount)
	if lifespanDays < 7 && txCount > 30 {
		score += 20
	}
	if lifespanDays < 3 && v.Get(features.IdxMaxValue) > 10 {
		score += 15
	}

	if score > 100 {
		score = 100
	}
	return score
}

// Flags produces the human-readable explanations for a scored vector,
// mirroring backend/ml/scorer.py::_generate_flags's threshold set.
func Flags(v features.Vector, score float64) []string {
	var flags []string

	if v.Get(features.IdxBurstRatio) > 0.3 {
		flags = append(flags, "High frequency of rapid consecutive transactions")
	}
	if v.Get(features.IdxRoundValueRatio) > 0.5 {
		flags = append(flags, "Unusually high proportion of round-number transfers")
	}
	if v.Get(features.IdxSelfTransfers) > 0 {
		flags = append(flags, "Self-transfers detected")
	}
	if v.Get(features.IdxFlowRatio) > 3 {
		flags = append(flags, "Outflow significantly exceeds inflow")
	}
	if v.Get(features.IdxFailedTxRatio) > 0.2 {
		flags = append(flags, "Elevated failed-transaction ratio")
	}
	if v.Get(features.IdxTxCount) > 20 && v.Get(features.IdxUniqueCounterparties) < 5 {
		flags = append(flags, "High transaction volume concentrated among few counterparties")
	}
	if v.Get(features.IdxLifespanDays) < 7 && v.Get(features.IdxTxCount) > 30 {
		flags = append(flags, "Short-lived wallet with high transaction count")
	}
	if v.Get(features.IdxContractCallRatio) > 0.8 {
		flags = append(flags, "Predominantly contract-interaction wallet")
	}
	if score < 25 {
		flags = append(flags, "No significant anomalies")
	}
	return flags
}
