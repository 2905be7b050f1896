package graph

import (
	"slices"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Directed is the minimal capability set the causal algorithms need from a
// directed graph. Returned sets are owned by the caller.
type Directed interface {
	Nodes() NodeSet
	Parents(id int64) NodeSet
	Children(id int64) NodeSet
}

// arcFilter hides every arc entering a node of into and every arc leaving a
// node of outOf. The base graph is never modified.
type arcFilter struct {
	base  Directed
	into  NodeSet
	outOf NodeSet
}

// WithoutArcs returns a view of g without arcs into `into` and arcs out of
// `outOf` (the mutilated graphs G_{\bar X} and G_{\underline Z}).
func WithoutArcs(g Directed, into, outOf NodeSet) Directed {
	if into == nil {
		into = NewNodeSet()
	}
	if outOf == nil {
		outOf = NewNodeSet()
	}
	return &arcFilter{base: g, into: into, outOf: outOf}
}

func (f *arcFilter) Nodes() NodeSet { return f.base.Nodes() }

func (f *arcFilter) Parents(id int64) NodeSet {
	if f.into.Has(id) {
		return NewNodeSet()
	}
	ps := f.base.Parents(id)
	for p := range ps {
		if f.outOf.Has(p) {
			delete(ps, p)
		}
	}
	return ps
}

func (f *arcFilter) Children(id int64) NodeSet {
	if f.outOf.Has(id) {
		return NewNodeSet()
	}
	cs := f.base.Children(id)
	for c := range cs {
		if f.into.Has(c) {
			delete(cs, c)
		}
	}
	return cs
}

// induced keeps only the nodes of keep and the arcs between them
type induced struct {
	base Directed
	keep NodeSet
}

// Induced returns the subgraph of g induced by keep
func Induced(g Directed, keep NodeSet) Directed {
	return &induced{base: g, keep: keep.Intersect(g.Nodes())}
}

func (v *induced) Nodes() NodeSet { return v.keep.Clone() }

func (v *induced) Parents(id int64) NodeSet {
	if !v.keep.Has(id) {
		return NewNodeSet()
	}
	return v.base.Parents(id).Intersect(v.keep)
}

func (v *induced) Children(id int64) NodeSet {
	if !v.keep.Has(id) {
		return NewNodeSet()
	}
	return v.base.Children(id).Intersect(v.keep)
}

// AncestralSet returns of together with every ancestor of a node in of
func AncestralSet(g Directed, of NodeSet) NodeSet {
	return closure(of, g.Parents)
}

// Ancestors returns the strict ancestors of id
func Ancestors(g Directed, id int64) NodeSet {
	return closure(g.Parents(id), g.Parents)
}

// Descendants returns every node reachable from a node of of by at least one arc
func Descendants(g Directed, of NodeSet) NodeSet {
	start := NewNodeSet()
	for id := range of {
		start = start.Union(g.Children(id))
	}
	return closure(start, g.Children)
}

// closure walks next from seed, seed included. Works on any Directed view,
// which gonum traversals cannot do without materialising the view.
func closure(seed NodeSet, next func(int64) NodeSet) NodeSet {
	seen := seed.Clone()
	stack := seed.Sorted()
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for n := range next(id) {
			if !seen.Has(n) {
				seen.Add(n)
				stack = append(stack, n)
			}
		}
	}
	return seen
}

// ToGonum materialises a view as a gonum directed graph
func ToGonum(g Directed) *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	nodes := g.Nodes()
	for _, id := range nodes.Sorted() {
		dg.AddNode(simple.Node(id))
	}
	for _, id := range nodes.Sorted() {
		for _, c := range g.Children(id).Sorted() {
			if nodes.Has(c) && c != id {
				dg.SetEdge(dg.NewEdge(simple.Node(id), simple.Node(c)))
			}
		}
	}
	return dg
}

// TopologicalOrder sorts the nodes of g, breaking ties with less. A nil less
// orders ties by id.
func TopologicalOrder(g Directed, less func(a, b int64) bool) ([]int64, error) {
	if less == nil {
		less = func(a, b int64) bool { return a < b }
	}
	sorted, err := topo.SortStabilized(ToGonum(g), func(nodes []gonumgraph.Node) {
		slices.SortFunc(nodes, func(a, b gonumgraph.Node) int {
			switch {
			case less(a.ID(), b.ID()):
				return -1
			case less(b.ID(), a.ID()):
				return 1
			default:
				return 0
			}
		})
	})
	if err != nil {
		return nil, err
	}
	order := make([]int64, len(sorted))
	for i, n := range sorted {
		order[i] = n.ID()
	}
	return order, nil
}

// DirectedPathExists reports whether to is reachable from from following arcs
func DirectedPathExists(g Directed, from, to int64) bool {
	dg := ToGonum(g)
	f, t := dg.Node(from), dg.Node(to)
	if f == nil || t == nil {
		return false
	}
	return topo.PathExistsIn(dg, f, t)
}
