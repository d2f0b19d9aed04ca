package labels

import (
	"testing"

	"github.com/riskengine/walletrisk/pkg/chain"
)

func chainAddr(t *testing.T, raw string) chain.Address {
	t.Helper()
	addr, err := chain.ParseAddress(raw)
	if err != nil {
		t.Fatalf("invalid test address %q: %v", raw, err)
	}
	return addr
}

func TestLookupKnownMixer(t *testing.T) {
	r := New()
	mixer := chainAddr(t, "0x8589427373D6D84E98730D7795D8f6f8731FDA09")
	if !r.IsMixer(mixer) {
		t.Fatalf("expected known mixer address to be flagged")
	}
	if r.IsExchange(mixer) {
		t.Fatalf("mixer should not be classified exchange")
	}
}

func TestPutRuntimeAddsLookupEntry(t *testing.T) {
	r := New()
	addr := chainAddr(t, "0x1234567890123456789012345678901234567890")
	if _, ok := r.Lookup(addr); ok {
		t.Fatalf("unexpected static entry for fresh address")
	}
	r.PutRuntime(addr, Entry{Label: "community flagged", Category: CategoryScam, Confidence: 0.8, Source: "report:123"})
	e, ok := r.Lookup(addr)
	if !ok || e.Category != CategoryScam {
		t.Fatalf("expected runtime entry to be found, got %+v ok=%v", e, ok)
	}
}
