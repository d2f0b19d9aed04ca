package temporal

import (
	"testing"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

func addr(t *testing.T, hex string) chain.Address {
	t.Helper()
	a, err := chain.ParseAddress(hex)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", hex, err)
	}
	return a
}

func TestAnalyzeEmptyHistoryIsZero(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	res := Analyze(target, nil)
	if res.CompositeScore != 0 {
		t.Fatalf("expected zero composite score for empty history, got %v", res.CompositeScore)
	}
	if len(res.Buckets) != 0 {
		t.Fatalf("expected no buckets for empty history, got %d", len(res.Buckets))
	}
}

func TestAnalyzeZeroFillsCalendarGaps(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	other := addr(t, "0x2222222222222222222222222222222222222222")

	day0 := int64(1_700_000_000)
	day2 := day0 + 2*86400

	txns := []fetchadapter.Transaction{
		{From: target, To: other, Timestamp: day0, Value: 1e18},
		{From: other, To: target, Timestamp: day2, Value: 2e18},
	}

	res := Analyze(target, txns)
	if len(res.Buckets) != 3 {
		t.Fatalf("expected 3 buckets (day0, day1 zero-filled, day2), got %d: %+v", len(res.Buckets), res.Buckets)
	}
	if res.Buckets[1].TxCount != 0 {
		t.Fatalf("expected zero-filled middle day, got %+v", res.Buckets[1])
	}
}

func TestAnalyzeBurstDetectionOnTightGaps(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	other := addr(t, "0x2222222222222222222222222222222222222222")

	base := int64(1_700_000_000)
	var txns []fetchadapter.Transaction
	for i := 0; i < 10; i++ {
		txns = append(txns, fetchadapter.Transaction{
			From:      target,
			To:        other,
			Timestamp: base + int64(i)*30,
			Value:     1e18,
		})
	}

	res := Analyze(target, txns)
	if res.Bursts.Count == 0 {
		t.Fatalf("expected burst gaps to be detected for 30s spacing, got %+v", res.Bursts)
	}
	if res.Bursts.Percent != 100 {
		t.Fatalf("expected 100%% of gaps to qualify as bursts, got %v", res.Bursts.Percent)
	}
	if res.CompositeScore < 0 || res.CompositeScore > 100 {
		t.Fatalf("composite score out of bounds: %v", res.CompositeScore)
	}
}

func TestAnalyzeNeverProducesNonFiniteScore(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	res := Analyze(target, []fetchadapter.Transaction{
		{From: target, To: target, Timestamp: 1_700_000_000, Value: 0},
	})
	if res.CompositeScore < 0 || res.CompositeScore > 100 {
		t.Fatalf("score out of bounds: %v", res.CompositeScore)
	}
}
