package fetchadapter

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/riskengine/walletrisk/pkg/chain"
)

// RemoteClient is the one collaborator the core depends on (spec.md
// §6): a function fetching raw transaction lists and balances from
// whatever remote blockchain API the caller wires in. The core never
// self-locates an HTTP implementation (spec.md §9) — it is injected.
type RemoteClient interface {
	FetchRaw(ctx context.Context, address chain.Address, chainID int64, kind Kind, maxResults int) ([]Transaction, error)
	FetchBalance(ctx context.Context, address chain.Address, chainID int64) (float64, error)
}

// Fetcher wraps a RemoteClient with the rate-limiting and caching
// behaviour mandated by spec.md §4.1.
type Fetcher struct {
	remote  RemoteClient
	limiter *rateLimiter
	cache   *fileCache
}

// New constructs a Fetcher. rateLimitInterval and cacheTTL come from
// Config (RateLimitSeconds, CacheTTLSeconds).
func New(remote RemoteClient, cacheDir string, rateLimitInterval time.Duration, cacheTTL time.Duration) *Fetcher {
	return &Fetcher{
		remote:  remote,
		limiter: newRateLimiter(rateLimitInterval),
		cache:   newFileCache(cacheDir, cacheTTL),
	}
}

// FetchTransactions implements fetch_transactions(address, chain_id,
// kind, max_results) -> list<Transaction> (spec.md §4.1). Failures of
// any kind degrade to an empty list; they are never propagated.
func (f *Fetcher) FetchTransactions(ctx context.Context, address chain.Address, chainID int64, kind Kind, maxResults int) []Transaction {
	if cached, ok := f.cache.Get(string(address), chainID, kind); ok {
		if len(cached) > maxResults {
			cached = cached[:maxResults]
		}
		return cached
	}

	if ctx.Err() != nil {
		return nil
	}

	f.limiter.Wait()
	txns, err := f.remote.FetchRaw(ctx, address, chainID, kind, maxResults)
	if err != nil {
		f.limiter.RecordError()
		log.Warn().Err(err).Str("address", string(address)).Str("kind", string(kind)).Msg("transient fetch error, returning empty result")
		return nil
	}
	f.limiter.RecordSuccess()

	if len(txns) > maxResults {
		txns = txns[:maxResults]
	}
	f.cache.Put(string(address), chainID, kind, txns)
	return txns
}

// FetchBalance implements fetch_balance(address, chain_id) (spec.md
// §4.1). The balance is returned as a float64, not an integer, so
// amounts above 2^53 are not exact. On error it returns 0 and logs.
func (f *Fetcher) FetchBalance(ctx context.Context, address chain.Address, chainID int64) float64 {
	f.limiter.Wait()
	bal, err := f.remote.FetchBalance(ctx, address, chainID)
	if err != nil {
		f.limiter.RecordError()
		log.Warn().Err(err).Str("address", string(address)).Msg("balance fetch failed")
		return 0
	}
	f.limiter.RecordSuccess()
	return bal
}

// DiscoverNeighbours produces the top-k counterparties ordered by
// total absolute value transacted, flooring each tx at 0.001 to avoid
// zero-value dominance, ties broken by insertion (first-seen) order
// (spec.md §4.1).
func DiscoverNeighbours(target chain.Address, txns []Transaction, k int) []chain.Address {
	totals := make(map[chain.Address]float64)
	order := make([]chain.Address, 0)
	seen := make(map[chain.Address]bool)

	addCounterparty := func(addr chain.Address, value float64) {
		if addr == "" || addr == target {
			return
		}
		if value < 0.001 {
			value = 0.001
		}
		if !seen[addr] {
			seen[addr] = true
			order = append(order, addr)
		}
		totals[addr] += value
	}

	for _, tx := range txns {
		v := tx.ValueEth()
		if tx.From == target {
			addCounterparty(tx.To, v)
		} else {
			addCounterparty(tx.From, v)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return totals[order[i]] > totals[order[j]]
	})

	if k > len(order) {
		k = len(order)
	}
	return order[:k]
}

// FetchNeighbourTransactions fetches up to maxPerNeighbour normal
// transactions for each supplied neighbour address.
func (f *Fetcher) FetchNeighbourTransactions(ctx context.Context, neighbours []chain.Address, chainID int64, maxPerNeighbour int) map[chain.Address][]Transaction {
	out := make(map[chain.Address][]Transaction, len(neighbours))
	for _, n := range neighbours {
		if ctx.Err() != nil {
			return out
		}
		out[n] = f.FetchTransactions(ctx, n, chainID, KindNormal, maxPerNeighbour)
	}
	return out
}
