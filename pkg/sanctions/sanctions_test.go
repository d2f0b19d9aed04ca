package sanctions

import (
	"testing"

	"github.com/riskengine/walletrisk/pkg/chain"
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

func TestCheckCleanAddressIsZero(t *testing.T) {
	e := New(labels.New())
	res := e.Check(addr(t, "0x1111111111111111111111111111111111111111"))
	if res.RiskModifier != 0 || res.Sanctioned || res.Scam || res.Mixer {
		t.Fatalf("expected clean result, got %+v", res)
	}
}

func TestCheckSanctionedAddressScoresFortyAndFlags(t *testing.T) {
	e := New(labels.New())
	res := e.Check(addr(t, "0xd90e2f925da726b50c4ed8d0fb90ad053324f31b"))
	if !res.Sanctioned {
		t.Fatalf("expected sanctioned=true")
	}
	if res.RiskModifier != 40 {
		t.Fatalf("expected risk modifier 40 for sanctioned-only hit, got %v", res.RiskModifier)
	}
}

func TestCheckModifierCapsAtFifty(t *testing.T) {
	e := New(labels.New())
	// this sanctioned address is also a registry mixer; flagged scam too
	// it would sum to 95 (40 + 30 + 25) uncapped.
	e.scam[chain.MustAddress("0x8589427373d6d84e98730d7795d8f6f8731fda09")] = struct{}{}
	res := e.Check(addr(t, "0x8589427373d6d84e98730d7795d8f6f8731fda09"))
	if res.RiskModifier != maxModifier {
		t.Fatalf("expected modifier capped at %v, got %v", maxModifier, res.RiskModifier)
	}
}

func TestCheckCounterpartiesLevelEscalation(t *testing.T) {
	e := New(labels.New())
	addrs := []chain.Address{
		addr(t, "0x1111111111111111111111111111111111111111"),
		addr(t, "0x8589427373d6d84e98730d7795d8f6f8731fda09"),
	}
	res := e.CheckCounterparties(addrs)
	if res.Level != LevelCritical {
		t.Fatalf("expected critical level when any counterparty is sanctioned, got %v", res.Level)
	}
	if res.SanctionedCount != 1 {
		t.Fatalf("expected 1 sanctioned counterparty, got %d", res.SanctionedCount)
	}
}
