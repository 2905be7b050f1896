// Package dsep decides d-separation in directed acyclic graphs.
//
// IsDSep (moralization of the ancestral graph) is the reference method.
// IsDSepBlocked walks active trails directly and is kept as an independent
// check of the former; both must agree on every input.
package dsep

import (
	"gocausal/internal/graph"
)

// ReduceThreshold is the graph size above which IsDSepBlocked first prunes
// barren nodes and filiform chains.
const ReduceThreshold = 170

// IsDSep reports whether x and y are d-separated by z in g
func IsDSep(g graph.Directed, x, y, z graph.NodeSet) bool {
	if x.Intersects(y) {
		return false
	}
	x, y = x.Minus(z), y.Minus(z)
	if x.IsEmpty() || y.IsEmpty() {
		return true
	}
	anc := graph.AncestralSet(g, x.Union(y).Union(z))
	moral := Moralize(graph.Induced(g, anc))
	for id := range z {
		moral.EraseNode(id)
	}
	if len(y) < len(x) {
		x, y = y, x
	}
	return !moral.Connected(x, y)
}

// Moralize links the parents of every node and drops arc directions
func Moralize(g graph.Directed) *graph.UndiGraph {
	u := graph.NewUndiGraph()
	for _, id := range g.Nodes().Sorted() {
		u.AddNode(id)
		parents := g.Parents(id).Sorted()
		for i, p := range parents {
			u.AddEdge(p, id)
			for _, q := range parents[i+1:] {
				u.AddEdge(p, q)
			}
		}
	}
	return u
}
