package heuristics

import (
	"testing"

	"github.com/riskengine/walletrisk/pkg/features"
)

func TestScoreWithinBoundsForFiniteVector(t *testing.T) {
	var v features.Vector
	v[features.IdxRoundValueRatio] = 1.0
	v[features.IdxBurstRatio] = 1.0
	v[features.IdxSelfTransfers] = 10
	v[features.IdxFlowRatio] = 10
	v[features.IdxFailedTxRatio] = 1.0
	v[features.IdxTxCount] = 100
	v[features.IdxUniqueCounterparties] = 1
	v[features.IdxLifespanDays] = 1
	v[features.IdxMaxValue] = 100

	score := Score(v)
	if score < 0 || score > 100 {
		t.Fatalf("score out of bounds: %v", score)
	}
	if score != 100 {
		t.Fatalf("expected saturated score of 100 for maximal feature vector, got %v", score)
	}
}

func TestScoreZeroVector(t *testing.T) {
	var v features.Vector
	if got := Score(v); got != 0 {
		t.Fatalf("expected 0 for zero vector, got %v", got)
	}
}

func TestRoundValueLaunderingScenario(t *testing.T) {
	// 40 outbound txs of exactly 1.0 to 2 counterparties over 2 days
	// (spec.md §8 scenario 4): round_value +20, cycling(tx_count>20 &&
	// counterparties<5) +15, lifespan<7&&tx_count>30 +20 = 55.
	var v features.Vector
	v[features.IdxRoundValueRatio] = 1.0
	v[features.IdxTxCount] = 40
	v[features.IdxUniqueCounterparties] = 2
	v[features.IdxLifespanDays] = 2

	score := Score(v)
	if score < 55 {
		t.Fatalf("expected heuristic score >= 55, got %v", score)
	}
}
