package reachability

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrInvalidGraph is returned when a serialized graph fails validation.
var ErrInvalidGraph = errors.New("reachability: invalid graph")

// graphDoc is the on-disk JSON layout of a reachability graph.
type graphDoc struct {
	Markings [][]string `json:"markings"`
	Edges    []edgeDoc  `json:"edges"`
	Initial  int        `json:"initial"`
}

type edgeDoc struct {
	Source   int    `json:"source"`
	Target   int    `json:"target"`
	Activity string `json:"activity"`
}

// ReadJSON loads a graph from its JSON form and validates edge endpoints
// and the initial-node index.
func ReadJSON(r io.Reader) (*Graph, error) {
	var doc graphDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	g := NewGraph()
	for i, flows := range doc.Markings {
		id := g.AddNode(NewMarking(flows...))
		if id != i {
			return nil, fmt.Errorf("%w: duplicate marking at index %d", ErrInvalidGraph, i)
		}
	}
	for i, e := range doc.Edges {
		if e.Source < 0 || e.Source >= g.NodeCount() || e.Target < 0 || e.Target >= g.NodeCount() {
			return nil, fmt.Errorf("%w: edge %d endpoint out of range", ErrInvalidGraph, i)
		}
		if e.Activity == "" {
			return nil, fmt.Errorf("%w: edge %d without activity label", ErrInvalidGraph, i)
		}
		g.AddEdge(e.Source, e.Target, e.Activity)
	}
	if doc.Initial < 0 || doc.Initial >= g.NodeCount() {
		return nil, fmt.Errorf("%w: initial node %d out of range", ErrInvalidGraph, doc.Initial)
	}
	g.Initial = doc.Initial
	return g, nil
}

// ReadFile loads a graph from a JSON file.
func ReadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// WriteJSON serializes the graph.
func (g *Graph) WriteJSON(w io.Writer) error {
	doc := graphDoc{
		Markings: make([][]string, g.NodeCount()),
		Edges:    make([]edgeDoc, g.EdgeCount()),
		Initial:  g.Initial,
	}
	for i := 0; i < g.NodeCount(); i++ {
		doc.Markings[i] = g.MarkingOf(i).Sorted()
	}
	for i, e := range g.edges {
		doc.Edges[i] = edgeDoc{Source: e.Source, Target: e.Target, Activity: e.Activity}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
