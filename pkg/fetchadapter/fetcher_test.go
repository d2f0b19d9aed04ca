package fetchadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskengine/walletrisk/pkg/chain"
)

type stubRemote struct {
	txns []Transaction
	err  error
	calls int
}

func (s *stubRemote) FetchRaw(ctx context.Context, address chain.Address, chainID int64, kind Kind, maxResults int) ([]Transaction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.txns, nil
}

func (s *stubRemote) FetchBalance(ctx context.Context, address chain.Address, chainID int64) (float64, error) {
	return 1.5e18, s.err
}

func TestFetchTransactionsCachesResults(t *testing.T) {
	target := chain.MustAddress("0x1111111111111111111111111111111111111111")
	remote := &stubRemote{txns: []Transaction{{Hash: "0xabc"}}}
	f := New(remote, t.TempDir(), time.Millisecond, time.Minute)

	got := f.FetchTransactions(context.Background(), target, 1, KindNormal, 10)
	if len(got) != 1 || got[0].Hash != "0xabc" {
		t.Fatalf("unexpected first fetch: %+v", got)
	}
	if remote.calls != 1 {
		t.Fatalf("expected 1 remote call, got %d", remote.calls)
	}

	got2 := f.FetchTransactions(context.Background(), target, 1, KindNormal, 10)
	if len(got2) != 1 {
		t.Fatalf("unexpected cached fetch: %+v", got2)
	}
	if remote.calls != 1 {
		t.Fatalf("expected cache hit to avoid remote call, calls=%d", remote.calls)
	}
}

func TestFetchTransactionsFailsOpenOnRepeatedErrors(t *testing.T) {
	target := chain.MustAddress("0x2222222222222222222222222222222222222222")
	remote := &stubRemote{err: errors.New("boom")}
	f := New(remote, t.TempDir(), time.Millisecond, time.Minute)

	var got []Transaction
	for i := 0; i < 6; i++ {
		got = f.FetchTransactions(context.Background(), target, 1, KindNormal, 10)
	}
	if got != nil {
		t.Fatalf("expected empty result on persistent errors, got %+v", got)
	}
	if f.limiter.consecutiveErrors < 5 {
		t.Fatalf("expected limiter to record >=5 consecutive errors, got %d", f.limiter.consecutiveErrors)
	}
}

func TestDiscoverNeighboursOrdersByValueFloored(t *testing.T) {
	target := chain.MustAddress("0x3333333333333333333333333333333333333333")
	a := chain.MustAddress("0x4444444444444444444444444444444444444444")
	b := chain.MustAddress("0x5555555555555555555555555555555555555555")

	txns := []Transaction{
		{From: target, To: a, Value: 0}, // floored to 0.001
		{From: b, To: target, Value: 5e18},
	}
	neighbours := DiscoverNeighbours(target, txns, 5)
	if len(neighbours) != 2 || neighbours[0] != b || neighbours[1] != a {
		t.Fatalf("unexpected neighbour order: %+v", neighbours)
	}
}
