// Package ngram maps a prefix of executed activity labels to the most
// plausible current marking of a reachability graph. The index stores, for
// every node, the label sequences (up to a configured length) of paths that
// end in that node; a query matches the longest indexed suffix of the trace
// and widens the suffix until the candidate set is unambiguous.
package ngram

import (
	"strings"

	"github.com/caseflow/caseflow/pkg/reachability"
)

// TraceStart is the sentinel label prefixed to every trace so that empty
// and near-empty prefixes can anchor at the initial marking.
const TraceStart = "__trace_start__"

// DefaultSizeLimit bounds how many trailing labels a query considers.
const DefaultSizeLimit = 5

const keySep = "\x1f"

// Index is the built n-gram index. It is immutable after Build and safe
// for concurrent queries.
type Index struct {
	graph *reachability.Graph
	limit int
	label func(string) string

	// entries maps an n-gram key to candidate target nodes, ascending by
	// node id.
	entries map[string][]int
}

// Build constructs the index over the graph, indexing edge activity ids
// verbatim. limit <= 0 falls back to DefaultSizeLimit.
func Build(g *reachability.Graph, limit int) *Index {
	return BuildWithLabels(g, limit, nil)
}

// BuildWithLabels constructs the index with edge activity ids translated
// through label before indexing. Event logs reference activities by name
// while graph edges carry task ids; the translation lets queries use the
// log's labels directly. A nil label indexes ids verbatim.
func BuildWithLabels(g *reachability.Graph, limit int, label func(activityID string) string) *Index {
	if limit <= 0 {
		limit = DefaultSizeLimit
	}
	if label == nil {
		label = func(id string) string { return id }
	}
	idx := &Index{graph: g, limit: limit, label: label, entries: make(map[string][]int)}

	for target := 0; target < g.NodeCount(); target++ {
		idx.walk(target, target, nil)
	}
	return idx
}

// walk enumerates label paths of length up to limit that end at target,
// extending backwards from node. The initial node contributes the
// TraceStart sentinel as a virtual incoming label; paths never extend past
// the start of the trace.
func (i *Index) walk(target, node int, suffix []string) {
	if node == i.graph.Initial {
		i.register(prepend(TraceStart, suffix), target)
	}
	if len(suffix) >= i.limit {
		return
	}
	for _, edgeID := range i.graph.IncomingEdges(node) {
		e := i.graph.Edge(edgeID)
		labels := prepend(i.label(e.Activity), suffix)
		i.register(labels, target)
		i.walk(target, e.Source, labels)
	}
}

func (i *Index) register(labels []string, target int) {
	key := strings.Join(labels, keySep)
	nodes := i.entries[key]
	// Outer build loop visits targets in ascending order, so a linear
	// dedup check against the tail suffices.
	if len(nodes) > 0 && nodes[len(nodes)-1] == target {
		return
	}
	i.entries[key] = append(nodes, target)
}

// SizeLimit returns the configured n-gram length bound.
func (i *Index) SizeLimit() int { return i.limit }

// BestMarkingFor returns the marking of the node best matching the trace,
// which must begin with TraceStart. The shortest suffix of the trace is
// matched first and widened while the candidate set stays ambiguous; ties
// that survive the widening resolve to the lowest node id. A trace whose
// last label is not indexed yields nil.
func (i *Index) BestMarkingFor(trace []string) reachability.Marking {
	if len(trace) == 0 {
		return nil
	}

	n := 1
	candidates, ok := i.entries[suffixKey(trace, n)]
	if !ok {
		return nil
	}
	for len(candidates) > 1 && n < i.limit && n < len(trace) {
		n++
		wider, ok := i.entries[suffixKey(trace, n)]
		if !ok {
			break
		}
		candidates = wider
	}
	return i.graph.MarkingOf(candidates[0]).Clone()
}

func suffixKey(trace []string, n int) string {
	return strings.Join(trace[len(trace)-n:], keySep)
}

func prepend(label string, suffix []string) []string {
	out := make([]string, 0, len(suffix)+1)
	out = append(out, label)
	out = append(out, suffix...)
	return out
}
