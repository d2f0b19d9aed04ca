// Package unsupervised implements the Unsupervised Pipeline (spec.md
// §4.12): a standalone corpus-level entry point that builds a directed
// multigraph from a transaction list, extracts a 7-feature-per-wallet
// matrix, runs an isolation-based outlier detector, clusters the
// anomalous subgraph by weak connectivity, scores each cluster, and
// applies hybrid label adjustment with one-hop propagation.
package unsupervised

import (
	"sort"

	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
)

// Edge is one directed transaction edge; parallel edges between the
// same pair are preserved (spec.md §4.12 step 1).
type Edge struct {
	From, To  chain.Address
	ValueEth  float64
	Timestamp int64
}

// Graph is a directed multigraph keyed by node address.
type Graph struct {
	Nodes map[chain.Address]struct{}
	Out   map[chain.Address][]Edge
	In    map[chain.Address][]Edge
}

// BuildGraph constructs the directed multigraph from a flat
// transaction list (spec.md §4.12 step 1).
func BuildGraph(txns []fetchadapter.Transaction) *Graph {
	g := &Graph{
		Nodes: make(map[chain.Address]struct{}),
		Out:   make(map[chain.Address][]Edge),
		In:    make(map[chain.Address][]Edge),
	}
	for _, tx := range txns {
		e := Edge{From: tx.From, To: tx.To, ValueEth: tx.ValueEth(), Timestamp: tx.Timestamp}
		g.Nodes[tx.From] = struct{}{}
		g.Nodes[tx.To] = struct{}{}
		g.Out[tx.From] = append(g.Out[tx.From], e)
		g.In[tx.To] = append(g.In[tx.To], e)
	}
	return g
}

// SortedNodes returns every node address in deterministic order.
func (g *Graph) SortedNodes() []chain.Address {
	nodes := make([]chain.Address, 0, len(g.Nodes))
	for n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// undirectedNeighbours returns every node reachable from n via either
// an inbound or outbound edge, used by weakly-connected-component
// discovery.
func (g *Graph) undirectedNeighbours(n chain.Address) []chain.Address {
	var out []chain.Address
	for _, e := range g.Out[n] {
		out = append(out, e.To)
	}
	for _, e := range g.In[n] {
		out = append(out, e.From)
	}
	return out
}

// WeaklyConnectedComponents partitions a node subset into components
// reachable via undirected adjacency within the full graph g (spec.md
// §4.12 step 4: "induce the subgraph of anomalous wallets; compute
// weakly connected components" — adjacency is restricted to edges
// between two members of the subset).
func (g *Graph) WeaklyConnectedComponents(subset []chain.Address) [][]chain.Address {
	inSubset := make(map[chain.Address]struct{}, len(subset))
	for _, n := range subset {
		inSubset[n] = struct{}{}
	}

	visited := make(map[chain.Address]bool)
	var components [][]chain.Address

	sorted := append([]chain.Address(nil), subset...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, start := range sorted {
		if visited[start] {
			continue
		}
		var component []chain.Address
		queue := []chain.Address{start}
		visited[start] = true
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			component = append(component, n)
			for _, nb := range g.undirectedNeighbours(n) {
				if _, ok := inSubset[nb]; !ok || visited[nb] {
					continue
				}
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
		sort.Slice(component, func(i, j int) bool { return component[i] < component[j] })
		components = append(components, component)
	}
	return components
}
