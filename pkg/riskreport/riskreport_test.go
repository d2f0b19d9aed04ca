package riskreport

import (
	"testing"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
	"github.com/riskengine/walletrisk/pkg/labels"
)

func addr(t *testing.T, hex string) chain.Address {
	t.Helper()
	a, err := chain.ParseAddress(hex)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", hex, err)
	}
	return a
}

func TestDeriveLabelBanding(t *testing.T) {
	cases := []struct {
		score int
		want  Label
	}{
		{0, LabelLow}, {39, LabelLow}, {40, LabelMedium}, {74, LabelMedium}, {75, LabelHigh}, {100, LabelHigh},
	}
	for _, c := range cases {
		if got := DeriveLabel(c.score); got != c.want {
			t.Errorf("DeriveLabel(%d) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestClampScoreBounds(t *testing.T) {
	if ClampScore(-5) != 0 {
		t.Fatalf("expected clamp to 0")
	}
	if ClampScore(150) != 100 {
		t.Fatalf("expected clamp to 100")
	}
	if ClampScore(50) != 50 {
		t.Fatalf("expected passthrough")
	}
}

func TestBuildCounterpartiesAggregatesAndRanksTop10(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	cpBig := addr(t, "0x2222222222222222222222222222222222222222")
	cpSmall := addr(t, "0x3333333333333333333333333333333333333333")
	txns := []fetchadapter.Transaction{
		{From: target, To: cpBig, Value: 5e18},
		{From: cpBig, To: target, Value: 3e18},
		{From: target, To: cpSmall, Value: 1e18},
	}

	out := BuildCounterparties(target, txns, nil)
	if len(out) != 2 {
		t.Fatalf("expected 2 counterparties, got %d", len(out))
	}
	if out[0].Address != cpBig {
		t.Fatalf("expected %s ranked first by total value, got %s", cpBig, out[0].Address)
	}
	if out[0].TxCount != 2 || out[0].Sent != 5 || out[0].Received != 3 {
		t.Fatalf("unexpected aggregate: %+v", out[0])
	}
}

func TestBuildTimelineBucketsByUTCDay(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	cp := addr(t, "0x2222222222222222222222222222222222222222")
	txns := []fetchadapter.Transaction{
		{From: target, To: cp, Value: 1e18, Timestamp: 1_700_000_000},
		{From: cp, To: target, Value: 2e18, Timestamp: 1_700_000_100},
		{From: target, To: cp, Value: 1e18, Timestamp: 1_700_100_000},
	}
	out := BuildTimeline(target, txns)
	if len(out) != 2 {
		t.Fatalf("expected 2 day buckets, got %d: %+v", len(out), out)
	}
	if out[0].TxCount != 2 || out[0].InCount != 1 || out[0].OutCount != 1 {
		t.Fatalf("unexpected first bucket: %+v", out[0])
	}
}

func TestBuildGraphIncludesTargetAndNeighbours(t *testing.T) {
	target := addr(t, "0x1111111111111111111111111111111111111111")
	cp := addr(t, "0x2222222222222222222222222222222222222222")
	txns := []fetchadapter.Transaction{{From: target, To: cp, Value: 1e18}}

	g := BuildGraph(target, txns, nil, map[chain.Address]labels.Entry{})
	if len(g.Nodes) != 2 {
		t.Fatalf("expected target + 1 neighbour node, got %d", len(g.Nodes))
	}
	if len(g.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(g.Links))
	}
}
