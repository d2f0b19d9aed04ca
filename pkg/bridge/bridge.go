// Package bridge implements the Bridge Tracker (spec.md §4.9): a
// static registry of bridge contracts, per-transaction direction
// classification, and a composite risk score over per-protocol
// aggregates. The registry can be extended at init from an optional
// YAML overlay (spec.md's DOMAIN STACK: yaml.v3), with the compiled-in
// table as source of truth for tests.
package bridge

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

// Direction classifies a bridge interaction from the target's view.
type Direction string

const (
	DirectionDeposit    Direction = "deposit"
	DirectionWithdrawal Direction = "withdrawal"
)

// ContractInfo describes one bridge endpoint.
type ContractInfo struct {
	Protocol string `yaml:"protocol" json:"protocol"`
	Type     string `yaml:"type" json:"type"`
}

// Registry holds the bridge-contract table and the set of protocols
// considered compromised (spec.md §4.9).
type Registry struct {
	contracts   map[chain.Address]ContractInfo
	compromised map[string]struct{}
}

// New builds the default compiled-in registry.
func New() *Registry {
	return &Registry{
		contracts:   defaultContracts(),
		compromised: defaultCompromised(),
	}
}

// overlayFile mirrors the optional YAML registry extension shape.
type overlayFile struct {
	Contracts   map[string]ContractInfo `yaml:"contracts"`
	Compromised []string                `yaml:"compromised"`
}

// LoadOverlay extends r with additional bridge contracts and
// compromised protocols from a YAML file, leaving the compiled-in
// entries untouched if a key collides with one already present.
func (r *Registry) LoadOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay overlayFile
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return err
	}
	for hex, info := range overlay.Contracts {
		a, err := chain.ParseAddress(hex)
		if err != nil {
			continue
		}
		if _, exists := r.contracts[a]; !exists {
			r.contracts[a] = info
		}
	}
	for _, protocol := range overlay.Compromised {
		r.compromised[protocol] = struct{}{}
	}
	return nil
}

func defaultContracts() map[chain.Address]ContractInfo {
	return map[chain.Address]ContractInfo{
		chain.MustAddress("0x3ee18b2214aff97000d974cf647e7c347e8fa585"): {Protocol: "wormhole", Type: "lock_mint"},
		chain.MustAddress("0x40ec5b33f54e0e8a33a975908c5ba1c14e5bbbdf"): {Protocol: "polygon_pos", Type: "plasma"},
		chain.MustAddress("0xa0c68c638235ee32657e8f720a23cec1bfc77c77"): {Protocol: "polygon_pos", Type: "erc20_bridge"},
		chain.MustAddress("0x88ad09518695c6c3712ac10a214be5109a655671"): {Protocol: "poly_bridge", Type: "heco_bridge"},
		chain.MustAddress("0x99c9fc46f92e8a1c0dec1b1747d010903e884be1"): {Protocol: "optimism_gateway", Type: "l2_bridge"},
		chain.MustAddress("0x5a7749f83b81b301cab5f48eb8516b986daef23d"): {Protocol: "arbitrum_bridge", Type: "l2_bridge"},
		chain.MustAddress("0x8484ef722627bf18ca5ae6bcf031c23e6e922b30"): {Protocol: "stargate", Type: "liquidity_bridge"},
		chain.MustAddress("0x6b175474e89094c44da98b954eedeac495271d0f"): {Protocol: "hop", Type: "liquidity_bridge"},
		chain.MustAddress("0x2796317b0ff8538f253012862c06787adfb8ceb6"): {Protocol: "ronin_bridge", Type: "lock_mint"},
	}
}

// compromised protocols: historical bridge exploits (Ronin 2022,
// Multichain 2023) used as the spec's "compromised" rule-bank flag.
func defaultCompromised() map[string]struct{} {
	return map[string]struct{}{
		"ronin_bridge": {},
		"multichain":   {},
	}
}

// lookup returns the registered contract info for addr, or
// (ContractInfo{}, false) if addr is not a bridge.
func (r *Registry) lookup(addr chain.Address) (ContractInfo, bool) {
	info, ok := r.contracts[addr]
	return info, ok
}

// Hit is a single transaction that touched exactly one bridge
// endpoint.
type Hit struct {
	TxHash    string
	Protocol  string
	Type      string
	Direction Direction
	ValueEth  float64
	Timestamp int64
	Contract  chain.Address
}

// ProtocolAggregate summarises activity against one bridge protocol.
type ProtocolAggregate struct {
	Protocol   string
	TxCount    int
	Volume     float64
	Contracts  map[chain.Address]struct{}
	Directions map[Direction]struct{}
}

// Result is the full bridge-tracker outcome for a target.
type Result struct {
	Hits           []Hit
	Aggregates     map[string]*ProtocolAggregate
	CompositeScore float64
	Flags          []string
}

// Analyze classifies every transaction where exactly one endpoint
// matches a registered bridge contract and computes the composite
// score spec.md §4.9 defines.
func (r *Registry) Analyze(target chain.Address, txns []fetchadapter.Transaction) Result {
	aggregates := make(map[string]*ProtocolAggregate)
	hits := []Hit{}

	for _, tx := range txns {
		fromInfo, fromIsBridge := r.lookup(tx.From)
		toInfo, toIsBridge := r.lookup(tx.To)
		if fromIsBridge == toIsBridge {
			continue // neither or both endpoints are bridges: not classifiable
		}

		var info ContractInfo
		var contractAddr chain.Address
		var direction Direction
		if toIsBridge {
			info, contractAddr, direction = toInfo, tx.To, DirectionDeposit
		} else {
			info, contractAddr, direction = fromInfo, tx.From, DirectionWithdrawal
		}

		hits = append(hits, Hit{
			TxHash:    tx.Hash,
			Protocol:  info.Protocol,
			Type:      info.Type,
			Direction: direction,
			ValueEth:  tx.ValueEth(),
			Timestamp: tx.Timestamp,
			Contract:  contractAddr,
		})

		agg, ok := aggregates[info.Protocol]
		if !ok {
			agg = &ProtocolAggregate{
				Protocol:   info.Protocol,
				Contracts:  make(map[chain.Address]struct{}),
				Directions: make(map[Direction]struct{}),
			}
			aggregates[info.Protocol] = agg
		}
		agg.TxCount++
		agg.Volume += tx.ValueEth()
		agg.Contracts[contractAddr] = struct{}{}
		agg.Directions[direction] = struct{}{}
	}

	score := r.compositeScore(hits, aggregates)

	return Result{Hits: hits, Aggregates: aggregates, CompositeScore: score, Flags: r.buildFlags(hits, aggregates)}
}

// buildFlags derives the human-readable bridge flags the orchestrator
// surfaces on the report (spec.md §8 scenario 5).
func (r *Registry) buildFlags(hits []Hit, aggregates map[string]*ProtocolAggregate) []string {
	flags := []string{}
	if len(aggregates) >= 4 {
		flags = append(flags, "Funds routed through 4+ distinct bridge protocols")
	}
	if rapidWindowHit(hits) {
		flags = append(flags, "Rapid successive bridge transactions (< 1 hour apart)")
	}
	for protocol := range aggregates {
		if _, compromised := r.compromised[protocol]; compromised {
			flags = append(flags, fmt.Sprintf("Used bridge protocol with known exploit history: %s", protocol))
		}
	}
	sort.Strings(flags)
	return flags
}

func (r *Registry) compositeScore(hits []Hit, aggregates map[string]*ProtocolAggregate) float64 {
	var score float64

	protocolCount := len(aggregates)
	switch {
	case protocolCount >= 4:
		score += 25
	case protocolCount >= 2:
		score += 10
	}

	var totalVolume float64
	totalTx := len(hits)
	depositOnly := true
	usedCompromised := 0
	for _, agg := range aggregates {
		totalVolume += agg.Volume
		if _, ok := agg.Directions[DirectionWithdrawal]; ok {
			depositOnly = false
		}
		if _, compromised := r.compromised[agg.Protocol]; compromised {
			usedCompromised++
		}
	}

	switch {
	case totalVolume > 100:
		score += 20
	case totalVolume > 10:
		score += 10
	}

	switch {
	case totalTx > 20:
		score += 15
	case totalTx > 5:
		score += 5
	}

	if rapidWindowHit(hits) {
		score += 20
	}

	if protocolCount > 0 && depositOnly {
		score += 10
	}

	score += float64(usedCompromised) * 10

	return coerce(clamp(score, 0, 100))
}

// rapidWindowHit reports whether 3+ bridge transactions fall within
// any 1-hour window (spec.md §4.9).
func rapidWindowHit(hits []Hit) bool {
	if len(hits) < 3 {
		return false
	}
	ts := make([]int64, len(hits))
	for i, h := range hits {
		ts[i] = h.Timestamp
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	const window = 3600
	for i := 0; i+2 < len(ts); i++ {
		if ts[i+2]-ts[i] <= window {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func coerce(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
