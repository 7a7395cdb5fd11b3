// Package reachability provides the read model for a precomputed
// reachability graph: nodes are markings (sets of flow tokens), edges are
// activity-labeled transitions between them. The graph is consumed by state
// reconstruction; building it from a process model is a concern of the
// tooling that produced the graph file.
package reachability

import (
	"sort"
	"strings"
)

// Marking is a set of sequence-flow ids holding tokens. Markings compare by
// value regardless of insertion order.
type Marking map[string]struct{}

// NewMarking builds a marking from flow ids.
func NewMarking(flows ...string) Marking {
	m := make(Marking, len(flows))
	for _, f := range flows {
		m[f] = struct{}{}
	}
	return m
}

// Contains reports membership of a flow id.
func (m Marking) Contains(flow string) bool {
	_, ok := m[flow]
	return ok
}

// Clone returns a copy of the marking.
func (m Marking) Clone() Marking {
	out := make(Marking, len(m))
	for f := range m {
		out[f] = struct{}{}
	}
	return out
}

// Intersect returns the flows present in both markings.
func (m Marking) Intersect(other Marking) Marking {
	out := make(Marking)
	for f := range m {
		if _, ok := other[f]; ok {
			out[f] = struct{}{}
		}
	}
	return out
}

// Sorted returns the member flow ids in ascending order.
func (m Marking) Sorted() []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Key returns the canonical key of the marking: the sorted member ids
// joined by a separator that cannot appear in an XML id.
func (m Marking) Key() string {
	return strings.Join(m.Sorted(), "\x1f")
}
