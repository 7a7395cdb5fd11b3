package reachability

import "sort"

// Edge is one activity-labeled transition between two markings.
type Edge struct {
	Source   int
	Target   int
	Activity string
}

// Graph is a reachability graph over markings. Node and edge ids are dense
// indices assigned in insertion order.
type Graph struct {
	markings []Marking
	edges    []Edge

	keyToNode map[string]int
	incoming  [][]int
	outgoing  [][]int

	// Initial is the node holding the model's initial marking.
	Initial int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{keyToNode: make(map[string]int)}
}

// AddNode inserts a marking and returns its node id. Adding a marking that
// is already present returns the existing node.
func (g *Graph) AddNode(m Marking) int {
	key := m.Key()
	if id, ok := g.keyToNode[key]; ok {
		return id
	}
	id := len(g.markings)
	g.markings = append(g.markings, m.Clone())
	g.keyToNode[key] = id
	g.incoming = append(g.incoming, nil)
	g.outgoing = append(g.outgoing, nil)
	return id
}

// AddEdge inserts a transition and returns its edge id. Incoming edge lists
// stay sorted by edge id, which makes the first-match scan over a node's
// incoming edges deterministic.
func (g *Graph) AddEdge(source, target int, activity string) int {
	id := len(g.edges)
	g.edges = append(g.edges, Edge{Source: source, Target: target, Activity: activity})
	g.incoming[target] = append(g.incoming[target], id)
	g.outgoing[source] = append(g.outgoing[source], id)
	return id
}

// NodeByKey looks up the node holding the marking with the canonical key.
func (g *Graph) NodeByKey(key string) (int, bool) {
	id, ok := g.keyToNode[key]
	return id, ok
}

// NodeByMarking looks up the node holding the given marking.
func (g *Graph) NodeByMarking(m Marking) (int, bool) {
	return g.NodeByKey(m.Key())
}

// MarkingOf returns the marking stored at a node.
func (g *Graph) MarkingOf(node int) Marking {
	return g.markings[node]
}

// IncomingEdges returns the ids of edges targeting the node, ascending.
func (g *Graph) IncomingEdges(node int) []int {
	return g.incoming[node]
}

// OutgoingEdges returns the ids of edges leaving the node, ascending.
func (g *Graph) OutgoingEdges(node int) []int {
	return g.outgoing[node]
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id int) Edge {
	return g.edges[id]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.markings) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Activities returns the distinct activity labels appearing on edges,
// sorted.
func (g *Graph) Activities() []string {
	seen := make(map[string]struct{})
	for _, e := range g.edges {
		seen[e.Activity] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
