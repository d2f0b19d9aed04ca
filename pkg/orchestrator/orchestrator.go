// Package orchestrator implements the Orchestrator (spec.md §4 intro,
// §5, §9): it composes every other package into a single RiskReport
// per call, and runs batch analyses over a bounded worker pool.
// Grounded in the original backend/main.py::analyze_wallet step
// ordering and the teacher's cmd/tracker worker-fan-out idiom.
package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/riskengine/walletrisk/pkg/bridge"
	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/community"
	"github.com/riskengine/walletrisk/pkg/config"
	"github.com/riskengine/walletrisk/pkg/features"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
	"github.com/riskengine/walletrisk/pkg/graphscore"
	"github.com/riskengine/walletrisk/pkg/heuristics"
	"github.com/riskengine/walletrisk/pkg/labels"
	"github.com/riskengine/walletrisk/pkg/mev"
	"github.com/riskengine/walletrisk/pkg/outlier"
	"github.com/riskengine/walletrisk/pkg/riskreport"
	"github.com/riskengine/walletrisk/pkg/sanctions"
	"github.com/riskengine/walletrisk/pkg/temporal"
)

const (
	criticalMixerScoreThreshold = 80 // spec.md §9 Open Question / DESIGN.md resolution 3
	defaultNeighbourCount       = 8
	maxNormalTxns               = 200
	maxInternalTxns              = 100
	maxTokenTxns                 = 100
	maxPerNeighbourTxns          = 50
)

// Orchestrator owns every long-lived collaborator, constructed once
// and passed by reference (spec.md §9 — no self-locating singletons).
type Orchestrator struct {
	cfg       *config.Config
	fetcher   *fetchadapter.Fetcher
	labels    *labels.Registry
	outlier   *outlier.Detector
	graph     *graphscore.Scorer
	sanctions *sanctions.Engine
	bridges   *bridge.Registry
	community *community.Journal
}

// New constructs an Orchestrator from its collaborators. None of them
// are self-located; all are injected by the caller (cmd/riskengine).
func New(cfg *config.Config, fetcher *fetchadapter.Fetcher, labelRegistry *labels.Registry, sanctionsEngine *sanctions.Engine, bridgeRegistry *bridge.Registry, communityJournal *community.Journal) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		labels:    labelRegistry,
		outlier:   outlier.New(),
		graph:     graphscore.New(),
		sanctions: sanctionsEngine,
		bridges:   bridgeRegistry,
		community: communityJournal,
	}
}

// CancelledError is returned when ctx is done before or during
// analysis (spec.md §7 Cancelled taxonomy entry) — it propagates to
// the caller; no partial report is emitted.
type CancelledError struct {
	Address chain.Address
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("analysis of %s cancelled", e.Address)
}

// AnalyzeWallet runs the full single-wallet pipeline in the strict
// order spec.md §5 mandates: fetch → label → features →
// outlier+heuristic → detectors → compose.
func (o *Orchestrator) AnalyzeWallet(ctx context.Context, address chain.Address, chainID int64) (riskreport.RiskReport, error) {
	if err := ctx.Err(); err != nil {
		return riskreport.RiskReport{}, &CancelledError{Address: address}
	}

	descriptor := chain.Lookup(chainID)
	directSanctions := o.sanctions.Check(address)

	normalTxns := o.fetcher.FetchTransactions(ctx, address, chainID, fetchadapter.KindNormal, maxNormalTxns)
	internalTxns := o.fetcher.FetchTransactions(ctx, address, chainID, fetchadapter.KindInternal, maxInternalTxns)
	tokenTxns := o.fetcher.FetchTransactions(ctx, address, chainID, fetchadapter.KindToken, maxTokenTxns)

	allTargetTxns := append(append([]fetchadapter.Transaction{}, normalTxns...), internalTxns...)

	if len(allTargetTxns) == 0 {
		return o.noDataReport(address, descriptor, directSanctions, len(tokenTxns)), nil
	}

	if err := ctx.Err(); err != nil {
		return riskreport.RiskReport{}, &CancelledError{Address: address}
	}

	counterpartyAddrs := collectCounterparties(address, normalTxns)
	knownLabels := o.labels.LookupBatch(counterpartyAddrs)
	var targetEntry *labels.Entry
	if e, ok := o.labels.Lookup(address); ok {
		targetEntry = &e
	}

	neighbours := fetchadapter.DiscoverNeighbours(address, allTargetTxns, defaultNeighbourCount)
	neighbourTxns := o.fetcher.FetchNeighbourTransactions(ctx, neighbours, chainID, maxPerNeighbourTxns)

	if err := ctx.Err(); err != nil {
		return riskreport.RiskReport{}, &CancelledError{Address: address}
	}

	targetVector := features.Extract(address, allTargetTxns)
	neighbourVectors := make([]features.Vector, 0, len(neighbourTxns))
	for neighbour, txns := range neighbourTxns {
		neighbourVectors = append(neighbourVectors, features.Extract(neighbour, txns))
	}

	outlierResult := o.safeOutlierScore(targetVector, neighbourVectors)
	heuristicScore := heuristics.Score(targetVector)
	flags := heuristics.Flags(targetVector, heuristicScore)

	riskScoreF := 0.7*outlierResult.MLScore + 0.3*heuristicScore
	riskScore := riskreport.ClampScore(int(riskScoreF + 0.5))
	riskLabel := riskreport.DeriveLabel(riskScore)

	graphResult := o.safeGraphScore(address, allTargetTxns, neighbourTxns)
	temporalResult := temporal.Analyze(address, normalTxns)
	mevResult := mev.Analyze(address, normalTxns)
	bridgeResult := o.bridges.Analyze(address, append(append([]fetchadapter.Transaction{}, normalTxns...), tokenTxns...))

	if mevResult.IsBot {
		flags = append(flags, fmt.Sprintf("MEV bot detected (score: %.0f)", mevResult.CompositeScore))
	}
	for i, bf := range bridgeResult.Flags {
		if i >= 3 {
			break
		}
		flags = append(flags, bf)
	}

	counterpartySanctions := o.sanctions.CheckCounterparties(counterpartyAddrs)
	for _, s := range counterpartySanctions.Sanctioned {
		flags = append(flags, fmt.Sprintf("Transacted with OFAC-sanctioned address: %s", s))
	}
	for _, m := range counterpartySanctions.Mixer {
		flags = append(flags, fmt.Sprintf("Interacted with mixer: %s", m))
	}

	if directSanctions.RiskModifier > 0 {
		riskScore = riskreport.ClampScore(riskScore + int(directSanctions.RiskModifier+0.5))
		if directSanctions.Sanctioned {
			flags = append([]string{sanctions.OFACFlag}, flags...)
			riskLabel = riskreport.LabelCritical
		} else if directSanctions.Mixer && riskScore >= criticalMixerScoreThreshold {
			riskLabel = riskreport.LabelCritical
		}
	}

	communityModifier := 0.0
	if o.community != nil {
		modifier, _, err := o.community.RiskModifier(address)
		if err == nil && modifier > 0 {
			communityModifier = modifier
			riskScore = riskreport.ClampScore(riskScore + int(modifier+0.5))
			flags = append(flags, fmt.Sprintf("Community flagged (+%.0f risk modifier)", modifier))
		}
	}

	balance := o.fetcher.FetchBalance(ctx, address, chainID)

	featureSummary := make(map[string]float64, features.Dimension)
	for i, name := range features.Columns {
		featureSummary[name] = targetVector.Get(i)
	}

	report := riskreport.RiskReport{
		Address:            address,
		ChainDescriptor:    descriptor,
		RiskScore:          riskScore,
		RiskLabel:          riskLabel,
		MLRawScore:         int(outlierResult.MLScore + 0.5),
		HeuristicScore:     int(heuristicScore + 0.5),
		Flags:              flags,
		FeatureSummary:      featureSummary,
		Counterparties:     riskreport.BuildCounterparties(address, normalTxns, knownLabels),
		Timeline:           riskreport.BuildTimeline(address, normalTxns),
		GNN:                graphResult,
		Temporal:           temporalResult,
		MEV:                mevResult,
		Bridges:            bridgeResult,
		Sanctions:          directSanctions,
		CommunityModifier:  communityModifier,
		Graph:              riskreport.BuildGraph(address, normalTxns, targetEntry, knownLabels),
		Balance:            balance,
		TxCount:            len(normalTxns),
		InternalTxCount:    len(internalTxns),
		TokenTransferCount: len(tokenTxns),
		NeighborsAnalyzed:  len(neighbourTxns),
	}
	return report, nil
}

// noDataReport implements spec.md §4 / §7's "empty history" path: the
// sanctions pre-check still applies even when the chain has no
// transaction history for this address.
func (o *Orchestrator) noDataReport(address chain.Address, descriptor chain.Descriptor, direct sanctions.CheckResult, tokenCount int) riskreport.RiskReport {
	score := riskreport.ClampScore(int(direct.RiskModifier + 0.5))
	flags := []string{"No transactions found on this chain for this address"}
	label := riskreport.LabelNoData

	switch {
	case direct.Sanctioned:
		flags = append([]string{sanctions.OFACFlag}, flags...)
		label = riskreport.LabelCritical
	case direct.Mixer:
		flags = append([]string{"Address is a known mixer/tumbler"}, flags...)
		if score >= 40 {
			label = riskreport.LabelHigh
		}
	}

	return riskreport.RiskReport{
		Address:            address,
		ChainDescriptor:    descriptor,
		RiskScore:          score,
		RiskLabel:          label,
		Flags:              flags,
		FeatureSummary:      map[string]float64{},
		Sanctions:          direct,
		Graph:              riskreport.Graph{Nodes: []riskreport.GraphNode{{ID: address, Group: "suspect", Val: 20}}},
		TokenTransferCount: tokenCount,
	}
}

// safeOutlierScore implements the DetectorInternalError taxonomy entry
// (spec.md §7): numerical failure degrades to a zero score, never
// aborts the orchestration. The hand-rolled isolation forest does not
// panic on well-formed input, so this is a defensive boundary around
// the one component spec.md explicitly calls out as failure-prone.
func (o *Orchestrator) safeOutlierScore(target features.Vector, neighbours []features.Vector) (result outlier.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = outlier.Result{MLScore: 0}
		}
	}()
	return o.outlier.Score(target, neighbours)
}

func (o *Orchestrator) safeGraphScore(target chain.Address, targetTxns []fetchadapter.Transaction, neighbourTxns map[chain.Address][]fetchadapter.Transaction) (result graphscore.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = graphscore.Result{}
		}
	}()
	return o.graph.Score(target, targetTxns, neighbourTxns)
}

func collectCounterparties(target chain.Address, txns []fetchadapter.Transaction) []chain.Address {
	seen := make(map[chain.Address]struct{})
	var out []chain.Address
	add := func(a chain.Address) {
		if a == "" || a == target {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, tx := range txns {
		add(tx.From)
		add(tx.To)
	}
	return out
}

// BatchResult pairs an analysed address with its outcome.
type BatchResult struct {
	Address chain.Address
	Report  riskreport.RiskReport
	Err     error
}

// AnalyzeBatch runs N parallel workers (bounded by cfg.BatchWorkers)
// cooperating on the shared rate-limited fetcher (spec.md §5). A
// per-address timeout of BatchAddressTO applies to each analysis.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, addresses []chain.Address, chainID int64) []BatchResult {
	results := make([]BatchResult, len(addresses))

	// Batch-wide coarse rate guard on top of the Fetcher's own
	// single-slot limiter (spec.md §5): keeps dispatch of new worker
	// analyses from bursting ahead of the configured interval even
	// though each analysis makes several independent fetch calls.
	dispatchLimiter := rate.NewLimiter(rate.Limit(1/o.cfg.RateLimitSeconds), 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.BatchWorkers)

	for i, addr := range addresses {
		i, addr := i, addr
		g.Go(func() error {
			if err := dispatchLimiter.Wait(gctx); err != nil {
				results[i] = BatchResult{Address: addr, Err: &CancelledError{Address: addr}}
				return nil
			}
			addrCtx, cancel := context.WithTimeout(gctx, o.cfg.BatchAddressTO)
			defer cancel()
			report, err := o.AnalyzeWallet(addrCtx, addr, chainID)
			results[i] = BatchResult{Address: addr, Report: report, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
