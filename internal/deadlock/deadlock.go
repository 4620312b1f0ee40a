// Package deadlock finds circular waits among workers.
//
// The wait-for graph is built from the event log: each worker's most recent
// BLOCKED message names the single worker it waits for. Every node therefore
// has at most one outgoing edge, and a cycle search is a walk along edges.
package deadlock

import (
	"strings"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// Graph is a wait-for graph with out-degree at most one.
// Nodes are ordered by the first BLOCKED message of each source.
type Graph struct {
	order []string
	edges map[string]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string]string)}
}

// Wait records that from waits for to, replacing any earlier edge of from.
func (g *Graph) Wait(from, to string) {
	if !g.known(from) {
		g.order = append(g.order, from)
	}
	g.edges[from] = to
}

// Clear removes the outgoing edge of from. Its position in the order is kept.
func (g *Graph) Clear(from string) {
	delete(g.edges, from)
}

// WaitsFor returns the worker from waits for.
func (g *Graph) WaitsFor(from string) (string, bool) {
	to, ok := g.edges[from]
	return to, ok
}

// Sources returns nodes with an outgoing edge in construction order.
func (g *Graph) Sources() []string {
	out := make([]string, 0, len(g.edges))
	for _, n := range g.order {
		if _, ok := g.edges[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	return len(g.edges)
}

func (g *Graph) known(n string) bool {
	for _, o := range g.order {
		if o == n {
			return true
		}
	}
	return false
}

// BuildWaitFor folds the event log into a wait-for graph.
//
// A BLOCKED message sets its source's edge, an UNBLOCKED message from the same
// source removes it. Sources whose registry status is DONE or FAILED contribute
// no edge. statuses may be nil.
func BuildWaitFor(messages []bus.Message, statuses map[string]bus.WorkerStatus) *Graph {
	g := NewGraph()
	for i := range messages {
		msg := &messages[i]
		if msg.Source == "" {
			continue
		}
		switch msg.Type {
		case bus.TypeBlocked:
			if p, ok := msg.Blocked(); ok && p.WaitingFor != "" {
				g.Wait(msg.Source, p.WaitingFor)
			}
		case bus.TypeUnblocked:
			g.Clear(msg.Source)
		}
	}

	for source := range g.edges {
		if ws, ok := statuses[source]; ok && ws.Status.Terminal() {
			g.Clear(source)
		}
	}
	return g
}

// FindCycle returns the first cycle reached when walking from each source in
// construction order, listed from the node where the walk entered it.
// Returns nil when the graph is acyclic.
func FindCycle(g *Graph) []string {
	cleared := make(map[string]bool)

	for _, start := range g.Sources() {
		if cleared[start] {
			continue
		}

		var path []string
		onPath := make(map[string]int)
		node := start
		for {
			if idx, seen := onPath[node]; seen {
				cycle := make([]string, len(path)-idx)
				copy(cycle, path[idx:])
				return cycle
			}
			if cleared[node] {
				break
			}
			onPath[node] = len(path)
			path = append(path, node)

			next, ok := g.WaitsFor(node)
			if !ok {
				break
			}
			node = next
		}

		for _, n := range path {
			cleared[n] = true
		}
	}
	return nil
}

// Detect builds the wait-for graph and returns its first cycle, or nil.
func Detect(messages []bus.Message, statuses map[string]bus.WorkerStatus) []string {
	return FindCycle(BuildWaitFor(messages, statuses))
}

// Format renders a cycle closed on its first node: "A -> B -> C -> A".
// An empty cycle formats as "".
func Format(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " -> ") + " -> " + cycle[0]
}
