package bridge

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

func TestAnalyzeNoHitsIsZero(t *testing.T) {
	r := New()
	target := addr(t, "0x1111111111111111111111111111111111111111")
	res := r.Analyze(target, nil)
	if res.CompositeScore != 0 {
		t.Fatalf("expected zero score with no bridge hits, got %v", res.CompositeScore)
	}
	if len(res.Hits) != 0 {
		t.Fatalf("expected no hits, got %+v", res.Hits)
	}
}

func TestAnalyzeClassifiesDepositAndWithdrawal(t *testing.T) {
	r := New()
	target := addr(t, "0x1111111111111111111111111111111111111111")
	wormhole := addr(t, "0x3ee18b2214aff97000d974cf647e7c347e8fa585")

	txns := []fetchadapter.Transaction{
		{Hash: "0xdep", From: target, To: wormhole, Value: 1e18, Timestamp: 1000},
		{Hash: "0xwd", From: wormhole, To: target, Value: 1e18, Timestamp: 2000},
	}

	res := r.Analyze(target, txns)
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 bridge hits, got %+v", res.Hits)
	}
	if res.Hits[0].Direction != DirectionDeposit {
		t.Fatalf("expected first hit to be a deposit, got %+v", res.Hits[0])
	}
	if res.Hits[1].Direction != DirectionWithdrawal {
		t.Fatalf("expected second hit to be a withdrawal, got %+v", res.Hits[1])
	}
}

func TestAnalyzeSkipsBridgeToBridgeTransfers(t *testing.T) {
	r := New()
	target := addr(t, "0x1111111111111111111111111111111111111111")
	wormhole := addr(t, "0x3ee18b2214aff97000d974cf647e7c347e8fa585")
	hop := addr(t, "0x6b175474e89094c44da98b954eedeac495271d0f")

	txns := []fetchadapter.Transaction{
		{Hash: "0xbb", From: wormhole, To: hop, Value: 1e18, Timestamp: 1000},
	}

	res := r.Analyze(target, txns)
	if len(res.Hits) != 0 {
		t.Fatalf("expected bridge-to-bridge transfer to be skipped (not classifiable for target), got %+v", res.Hits)
	}
}

func TestAnalyzeMultiProtocolObfuscationScore(t *testing.T) {
	r := New()
	target := addr(t, "0x1111111111111111111111111111111111111111")

	protocols := []string{
		"0x3ee18b2214aff97000d974cf647e7c347e8fa585",
		"0x40ec5b33f54e0e8a33a975908c5ba1c14e5bbbdf",
		"0x99c9fc46f92e8a1c0dec1b1747d010903e884be1",
		"0x5a7749f83b81b301cab5f48eb8516b986daef23d",
	}
	var txns []fetchadapter.Transaction
	for i, p := range protocols {
		txns = append(txns, fetchadapter.Transaction{
			Hash:      "0x" + string(rune('a'+i)),
			From:      target,
			To:        addr(t, p),
			Value:     1e18,
			Timestamp: int64(1000 * i),
		})
	}

	res := r.Analyze(target, txns)
	if res.CompositeScore < 25 {
		t.Fatalf("expected obfuscation bonus for 4+ protocols, got score %v", res.CompositeScore)
	}
	if res.CompositeScore > 100 {
		t.Fatalf("score exceeds cap: %v", res.CompositeScore)
	}
}
