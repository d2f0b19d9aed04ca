package unsupervised

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

func TestRunEmptyTxnsProducesEmptyResult(t *testing.T) {
	res := Run(nil, nil)
	if res.TotalWallets != 0 || res.AnomalousWallets != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestWeaklyConnectedComponentsGroupsLinkedWallets(t *testing.T) {
	a := addr(t, "0x1111111111111111111111111111111111111111")
	b := addr(t, "0x2222222222222222222222222222222222222222")
	c := addr(t, "0x3333333333333333333333333333333333333333")
	isolated := addr(t, "0x4444444444444444444444444444444444444444")

	txns := []fetchadapter.Transaction{
		{From: a, To: b, Value: 1e18, Timestamp: 1000},
		{From: b, To: c, Value: 1e18, Timestamp: 2000},
	}
	g := BuildGraph(txns)
	components := g.WeaklyConnectedComponents([]chain.Address{a, b, c, isolated})
	if len(components) != 2 {
		t.Fatalf("expected 2 components (one of size 3, one isolated), got %d: %+v", len(components), components)
	}
}

func TestRunScoresClusterWithinBounds(t *testing.T) {
	var txns []fetchadapter.Transaction
	addrs := make([]chain.Address, 6)
	for i := range addrs {
		hex := "0x" + string(rune('1'+i)) + "000000000000000000000000000000000000000"
		hex = hex[:42]
		addrs[i] = addr(t, hex)
	}
	base := int64(1_700_000_000)
	for i := 0; i < len(addrs)-1; i++ {
		txns = append(txns, fetchadapter.Transaction{
			From: addrs[i], To: addrs[i+1], Value: float64(i+1) * 1e18, Timestamp: base + int64(i)*60,
		})
	}

	res := Run(txns, nil)
	if res.TotalWallets != len(addrs) {
		t.Fatalf("expected %d wallets, got %d", len(addrs), res.TotalWallets)
	}
	for _, c := range res.Clusters {
		if c.RiskScore < 0 || c.RiskScore > 100 {
			t.Fatalf("cluster score out of bounds: %+v", c)
		}
	}
	for _, s := range res.WalletScores {
		if s < 0 || s > 100 {
			t.Fatalf("wallet score out of bounds: %v", s)
		}
	}
}

func TestApplyHybridAdjustmentBoostsKnownMalicious(t *testing.T) {
	a := addr(t, "0x1111111111111111111111111111111111111111")
	b := addr(t, "0x2222222222222222222222222222222222222222")
	g := BuildGraph([]fetchadapter.Transaction{{From: a, To: b, Value: 1e18, Timestamp: 1000}})
	wf := ExtractWalletFeatures(g)

	base := []Cluster{{ID: 0, Wallets: []chain.Address{a, b}, RiskScore: 10}}
	hints := map[chain.Address]LabelHint{a: {Malicious: true, Confidence: 1.0}}

	adjusted := applyHybridAdjustment(base, g, wf, hints)
	if adjusted[0].RiskScore <= base[0].RiskScore {
		t.Fatalf("expected boosted score for cluster containing known-malicious wallet, got %+v", adjusted[0])
	}
}
