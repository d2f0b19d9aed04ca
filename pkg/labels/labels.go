// Package labels implements the Label Registry (spec.md §4.2): a
// compile-time static lookup table by category plus a runtime overlay
// of community-added labels. Grounded in the original
// backend/ml/known_labels.py static table and the teacher's
// pkg/config KnownEVMAddresses map idiom.
package labels

import (
	"sync"

	"github.com/riskengine/walletrisk/pkg/chain"
)

// Category is one of the normative categories spec.md §3 enumerates.
type Category string

const (
	CategoryExchange   Category = "exchange"
	CategoryBridge     Category = "bridge"
	CategoryDEX        Category = "dex"
	CategoryDeFi       Category = "defi"
	CategoryNFT        Category = "nft"
	CategoryMixer      Category = "mixer"
	CategoryStablecoin Category = "stablecoin"
	CategorySanctioned Category = "sanctioned"
	CategoryScam       Category = "scam"
	CategoryMEVBot     Category = "mev-bot"
	CategoryOther      Category = "other"
)

// Entry is a LabelEntry (spec.md §3): a compile-time entry has no
// Confidence/Source; runtime community entries populate both.
type Entry struct {
	Label      string   `json:"label"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// Registry is the read-only-after-init static table plus a
// mutex-guarded runtime overlay (spec.md §5: "Label registry: read-only
// after init; no synchronisation needed" for the static part — the
// overlay is the one mutable piece and gets its own lock).
type Registry struct {
	static map[chain.Address]Entry

	mu      sync.RWMutex
	runtime map[chain.Address]Entry
}

// New constructs a Registry pre-populated with the compiled-in static
// table. It is constructed once by the orchestrator and passed by
// reference to every component that needs label lookups (spec.md §9 —
// no self-locating singletons).
func New() *Registry {
	return &Registry{
		static:  staticTable(),
		runtime: make(map[chain.Address]Entry),
	}
}

// Lookup implements lookup(address) -> LabelEntry? (spec.md §4.2).
// Runtime (community) entries take precedence over the static table.
func (r *Registry) Lookup(address chain.Address) (Entry, bool) {
	r.mu.RLock()
	if e, ok := r.runtime[address]; ok {
		r.mu.RUnlock()
		return e, true
	}
	r.mu.RUnlock()
	e, ok := r.static[address]
	return e, ok
}

// LookupBatch implements lookup_batch (spec.md §4.2).
func (r *Registry) LookupBatch(addresses []chain.Address) map[chain.Address]Entry {
	out := make(map[chain.Address]Entry, len(addresses))
	for _, a := range addresses {
		if e, ok := r.Lookup(a); ok {
			out[a] = e
		}
	}
	return out
}

// IsMixer implements is_mixer (spec.md §4.2).
func (r *Registry) IsMixer(address chain.Address) bool {
	e, ok := r.Lookup(address)
	return ok && e.Category == CategoryMixer
}

// IsExchange implements is_exchange (spec.md §4.2).
func (r *Registry) IsExchange(address chain.Address) bool {
	e, ok := r.Lookup(address)
	return ok && e.Category == CategoryExchange
}

// PutRuntime adds or replaces a community-sourced label. This is the
// only mutation path into the registry after boot.
func (r *Registry) PutRuntime(address chain.Address, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime[address] = e
}

func a(hex string) chain.Address { return chain.MustAddress(hex) }

// staticTable is the compile-time constant label set, grounded on
// backend/ml/known_labels.py's KNOWN_ADDRESSES.
func staticTable() map[chain.Address]Entry {
	t := map[chain.Address]Entry{
		// exchanges
		a("0x28C6c06298d514Db089934071355E5743bf21d60"): {Label: "Binance Hot Wallet", Category: CategoryExchange},
		a("0x503828976D22510aad0201ac7EC88293211D23Da"): {Label: "Coinbase", Category: CategoryExchange},
		a("0x2910543Af39abA0Cd09dBb2D50200b3E800A63D2"): {Label: "Kraken", Category: CategoryExchange},
		a("0x0D0707963952f2fBA59dD06f2b425ace40b492Fe"): {Label: "Gate.io", Category: CategoryExchange},
		a("0x876EabF441B2EE5B5b0554Fd502a8E0600950cFa"): {Label: "Bitfinex", Category: CategoryExchange},
		// dex
		a("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"): {Label: "Uniswap V2 Router", Category: CategoryDEX},
		a("0xE592427A0AEce92De3Edee1F18E0157C05861564"): {Label: "Uniswap V3 Router", Category: CategoryDEX},
		a("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"): {Label: "SushiSwap Router", Category: CategoryDEX},
		a("0x1111111254EEB25477B68fb85Ed929f73A960582"): {Label: "1inch Router", Category: CategoryDEX},
		a("0xDef1C0ded9bec7F1a1670819833240f027b25EfF"): {Label: "0x Exchange Proxy", Category: CategoryDEX},
		// bridges
		a("0x8EB8a3b98659Cce290402893d0123abb75E3ab28"): {Label: "Avalanche Bridge", Category: CategoryBridge},
		a("0x3ee18B2214AFF97000D974cf647E7C347E8fa585"): {Label: "Wormhole Token Bridge", Category: CategoryBridge},
		a("0x99C9fc46f92E8a1c0deC1b1747d010903E884bE1"): {Label: "Optimism Gateway", Category: CategoryBridge},
		a("0x8315177aB297bA92A06054cE80a67Ed4DBd7ed3a"): {Label: "Arbitrum Inbox", Category: CategoryBridge},
		// defi
		a("0x7d2768dE32b0b80b7a3454c06BdAc94A69DDc7A9"): {Label: "Aave Lending Pool", Category: CategoryDeFi},
		a("0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"): {Label: "Lido stETH", Category: CategoryDeFi},
		// stablecoin
		a("0xdAC17F958D2ee523a2206206994597C13D831ec7"): {Label: "Tether USD", Category: CategoryStablecoin},
		a("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"): {Label: "USD Coin", Category: CategoryStablecoin},
		// mixers
		a("0x8589427373D6D84E98730D7795D8f6f8731FDA09"): {Label: "Tornado Cash 1 ETH", Category: CategoryMixer},
		a("0x722122dF12D4e14e13Ac3b6895a86e84145b6967"): {Label: "Tornado Cash 10 ETH", Category: CategoryMixer},
		a("0xDD4c48C0B24039969fC16D1cdF626eaB821d3384"): {Label: "Tornado Cash 100 ETH", Category: CategoryMixer},
		// other
		a("0x0000000000000000000000000000000000000000"): {Label: "Null Address", Category: CategoryOther},
		a("0x000000000000000000000000000000000000dEaD"): {Label: "Dead Address", Category: CategoryOther},
	}
	return t
}
