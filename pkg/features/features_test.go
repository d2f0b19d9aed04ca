package features

import (
	"math"
	"testing"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

func TestExtractEmptyIsAllZero(t *testing.T) {
	target := chain.MustAddress("0x1111111111111111111111111111111111111111")
	v := Extract(target, nil)
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector for empty history, slot %d (%s) = %v", i, Columns[i], x)
		}
	}
}

func TestExtractNeverProducesNonFinite(t *testing.T) {
	target := chain.MustAddress("0x2222222222222222222222222222222222222222")
	other := chain.MustAddress("0x3333333333333333333333333333333333333333")
	txns := []fetchadapter.Transaction{
		{From: target, To: other, Value: 0, Timestamp: 1000},
		{From: other, To: target, Value: 1e18, Timestamp: 1000},
	}
	v := Extract(target, txns)
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatalf("slot %d (%s) is non-finite: %v", i, Columns[i], x)
		}
	}
	if v[IdxTxCount] != 2 {
		t.Fatalf("expected tx_count=2, got %v", v[IdxTxCount])
	}
}

func TestRoundValueRatioAndBurst(t *testing.T) {
	target := chain.MustAddress("0x4444444444444444444444444444444444444444")
	other := chain.MustAddress("0x5555555555555555555555555555555555555555")
	txns := []fetchadapter.Transaction{
		{From: target, To: other, Value: 1e18, Timestamp: 1000},
		{From: target, To: other, Value: 1e18, Timestamp: 1100}, // 100s gap, burst
		{From: target, To: other, Value: 1e18, Timestamp: 2100}, // 1000s gap, not burst
	}
	v := Extract(target, txns)
	if v[IdxRoundValueRatio] != 1.0 {
		t.Fatalf("expected all-round values, got %v", v[IdxRoundValueRatio])
	}
	if v[IdxBurstRatio] != 0.5 {
		t.Fatalf("expected burst_ratio=0.5 (1 of 2 gaps < 300s), got %v", v[IdxBurstRatio])
	}
}
