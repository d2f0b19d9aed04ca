// Package riskreport defines the RiskReport type (spec.md §3) and the
// pure assembly helpers the orchestrator uses to build its
// counterparty breakdown, daily timeline, and visualization graph,
// grounded in the original backend/main.py response-building code.
package riskreport

import (
	"sort"
	"time"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
	"github.com/riskengine/walletrisk/pkg/labels"
)

// Label is one of the five normative risk labels (spec.md §3).
type Label string

const (
	LabelNoData   Label = "No Data"
	LabelLow      Label = "Low Risk"
	LabelMedium   Label = "Medium Risk"
	LabelHigh     Label = "High Risk"
	LabelCritical Label = "Critical Risk"
)

const weiPerEther = 1e18

// CounterpartyBreakdown is one row of the RiskReport.counterparties list.
type CounterpartyBreakdown struct {
	Address    chain.Address `json:"address"`
	Label      string        `json:"label,omitempty"`
	Category   string        `json:"category,omitempty"`
	TotalValue float64       `json:"total_value"`
	TxCount    int           `json:"tx_count"`
	Sent       float64       `json:"sent"`
	Received   float64       `json:"received"`
}

// DailyBucket is one row of the RiskReport.timeline list.
type DailyBucket struct {
	Date     string  `json:"date"`
	TxCount  int     `json:"tx_count"`
	Volume   float64 `json:"volume"`
	InCount  int     `json:"in_count"`
	OutCount int     `json:"out_count"`
}

// GraphNode and GraphLink make up RiskReport.graph, the force-directed
// visualization payload (spec.md §3 GraphSubject, rendered form).
type GraphNode struct {
	ID    chain.Address `json:"id"`
	Group string        `json:"group"`
	Val   int           `json:"val"`
	Label string        `json:"label,omitempty"`
}

type GraphLink struct {
	Source chain.Address `json:"source"`
	Target chain.Address `json:"target"`
	Value  float64       `json:"value"`
	Type   string        `json:"type"`
}

// Graph is RiskReport.graph.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// RiskReport is the orchestrator's sole output type (spec.md §3). Every
// field is required per §6's "Report JSON schema" even when empty.
type RiskReport struct {
	Address             chain.Address            `json:"address"`
	ChainDescriptor     chain.Descriptor         `json:"chain_descriptor"`
	RiskScore           int                      `json:"risk_score"`
	RiskLabel           Label                    `json:"risk_label"`
	MLRawScore          int                      `json:"ml_raw_score"`
	HeuristicScore      int                      `json:"heuristic_score"`
	Flags               []string                 `json:"flags"`
	FeatureSummary      map[string]float64       `json:"feature_summary"`
	Counterparties      []CounterpartyBreakdown  `json:"counterparties"`
	Timeline            []DailyBucket            `json:"timeline"`
	GNN                 any                      `json:"gnn"`
	Temporal            any                      `json:"temporal"`
	MEV                 any                      `json:"mev"`
	Bridges             any                      `json:"bridges"`
	Sanctions           any                      `json:"sanctions"`
	CommunityModifier   float64                  `json:"community_risk_modifier"`
	Graph               Graph                    `json:"graph"`
	Balance             float64                  `json:"balance"`
	TxCount             int                      `json:"tx_count"`
	InternalTxCount     int                      `json:"internal_tx_count"`
	TokenTransferCount  int                      `json:"token_transfers"`
	NeighborsAnalyzed   int                      `json:"neighbors_analyzed"`
}

// DeriveLabel implements spec.md §4.5's banding: <40 Low, <75 Medium,
// >=75 High. Critical-Risk promotion is the orchestrator's
// responsibility (sanctions/community signal is not visible here).
func DeriveLabel(score int) Label {
	switch {
	case score < 40:
		return LabelLow
	case score < 75:
		return LabelMedium
	default:
		return LabelHigh
	}
}

// ClampScore implements I2.
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// BuildCounterparties aggregates normal transactions by counterparty
// and returns the top 10 by total value, descending
// (backend/main.py Step 6).
func BuildCounterparties(target chain.Address, txns []fetchadapter.Transaction, known map[chain.Address]labels.Entry) []CounterpartyBreakdown {
	byAddr := make(map[chain.Address]*CounterpartyBreakdown)
	order := make([]chain.Address, 0)

	for _, tx := range txns {
		var counterparty chain.Address
		var sent bool
		switch {
		case tx.From == target:
			counterparty = tx.To
			sent = true
		case tx.To == target:
			counterparty = tx.From
		default:
			continue
		}
		if counterparty == "" || counterparty == target {
			continue
		}

		entry, ok := byAddr[counterparty]
		if !ok {
			entry = &CounterpartyBreakdown{Address: counterparty}
			if l, found := known[counterparty]; found {
				entry.Label = l.Label
				entry.Category = string(l.Category)
			}
			byAddr[counterparty] = entry
			order = append(order, counterparty)
		}

		value := tx.Value / weiPerEther
		entry.TotalValue += value
		entry.TxCount++
		if sent {
			entry.Sent += value
		} else {
			entry.Received += value
		}
	}

	out := make([]CounterpartyBreakdown, 0, len(order))
	for _, a := range order {
		out = append(out, *byAddr[a])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalValue > out[j].TotalValue })
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// BuildTimeline buckets transactions by UTC calendar day, sorted
// ascending (backend/main.py Step 7). Unlike pkg/temporal's analysis
// series, gaps here are not zero-filled — this is a display timeline,
// not an anomaly-detection input.
func BuildTimeline(target chain.Address, txns []fetchadapter.Transaction) []DailyBucket {
	buckets := make(map[string]*DailyBucket)
	order := make([]string, 0)

	for _, tx := range txns {
		if tx.Timestamp == 0 {
			continue
		}
		day := dayKeyUTC(tx.Timestamp)
		b, ok := buckets[day]
		if !ok {
			b = &DailyBucket{Date: day}
			buckets[day] = b
			order = append(order, day)
		}
		b.TxCount++
		b.Volume += tx.Value / weiPerEther
		if tx.From == target {
			b.OutCount++
		} else {
			b.InCount++
		}
	}

	sort.Strings(order)
	out := make([]DailyBucket, 0, len(order))
	for _, d := range order {
		out = append(out, *buckets[d])
	}
	return out
}

// BuildGraph assembles the force-directed visualization payload
// (backend/main.py Step 2): the target plus every direct counterparty
// as nodes, one link per transaction with a resolvable neighbour.
func BuildGraph(target chain.Address, txns []fetchadapter.Transaction, targetEntry *labels.Entry, known map[chain.Address]labels.Entry) Graph {
	seen := map[chain.Address]struct{}{target: {}}

	targetGroup := "suspect"
	var targetLabel string
	if targetEntry != nil {
		targetGroup = string(targetEntry.Category)
		targetLabel = targetEntry.Label
	}

	nodes := []GraphNode{{ID: target, Group: targetGroup, Val: 20, Label: targetLabel}}
	var links []GraphLink

	for _, tx := range txns {
		if tx.To == "" {
			continue
		}
		var neighbour chain.Address
		var direction string
		if tx.From == target {
			neighbour = tx.To
			direction = "out"
		} else {
			neighbour = tx.From
			direction = "in"
		}
		if neighbour == "" {
			continue
		}
		if _, ok := seen[neighbour]; !ok {
			group := "neighbor"
			var label string
			if l, found := known[neighbour]; found {
				group = string(l.Category)
				label = l.Label
			}
			nodes = append(nodes, GraphNode{ID: neighbour, Group: group, Val: 10, Label: label})
			seen[neighbour] = struct{}{}
		}
		links = append(links, GraphLink{Source: tx.From, Target: tx.To, Value: tx.Value / weiPerEther, Type: direction})
	}

	return Graph{Nodes: nodes, Links: links}
}

func dayKeyUTC(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
