package mev

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

func TestAnalyzeEmptyIsNotBot(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	res := Analyze(target, nil)
	if res.IsBot {
		t.Fatalf("empty history should never be flagged a bot: %+v", res)
	}
	if res.CompositeScore != 0 {
		t.Fatalf("expected zero score for empty history, got %v", res.CompositeScore)
	}
}

func TestAnalyzeDetectsSandwichPattern(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	victimContract := addr(t, "0x9999999999999999999999999999999999999999")

	txns := []fetchadapter.Transaction{
		{From: target, To: victimContract, Block: 100, TxIndex: 1, GasPrice: 50e9},
		{From: addr(t, "0x2222222222222222222222222222222222222222"), To: victimContract, Block: 100, TxIndex: 2, GasPrice: 20e9},
		{From: target, To: victimContract, Block: 100, TxIndex: 3, GasPrice: 10e9},
	}

	res := Analyze(target, txns)
	if len(res.Sandwiches) != 1 {
		t.Fatalf("expected one sandwich, got %+v", res.Sandwiches)
	}
	if res.Sandwiches[0].VictimCount != 1 {
		t.Fatalf("expected 1 victim tx between front/back, got %+v", res.Sandwiches[0])
	}
}

func TestAnalyzeScoreNeverExceedsBounds(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	dex := addr(t, "0x7a250d5630b4cf539739df2c5dacb4c659f2488d")

	var txns []fetchadapter.Transaction
	for i := 0; i < 20; i++ {
		txns = append(txns, fetchadapter.Transaction{
			From:      target,
			To:        dex,
			Block:     int64(100 + i),
			TxIndex:   1,
			Timestamp: int64(i * 10),
			GasPrice:  float64(10+i) * 1e9,
		})
	}

	res := Analyze(target, txns)
	if res.CompositeScore < 0 || res.CompositeScore > 100 {
		t.Fatalf("composite score out of bounds: %v", res.CompositeScore)
	}
}
