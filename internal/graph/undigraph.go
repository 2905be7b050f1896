package graph

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// UndiGraph is an undirected graph over node ids
type UndiGraph struct {
	g *simple.UndirectedGraph
}

func NewUndiGraph() *UndiGraph {
	return &UndiGraph{g: simple.NewUndirectedGraph()}
}

// AddNode inserts id if absent
func (u *UndiGraph) AddNode(id int64) {
	if u.g.Node(id) == nil {
		u.g.AddNode(simple.Node(id))
	}
}

// AddEdge links a and b, adding missing nodes. Self loops are ignored.
func (u *UndiGraph) AddEdge(a, b int64) {
	u.AddNode(a)
	u.AddNode(b)
	if a == b {
		return
	}
	u.g.SetEdge(u.g.NewEdge(simple.Node(a), simple.Node(b)))
}

func (u *UndiGraph) HasNode(id int64) bool {
	return u.g.Node(id) != nil
}

func (u *UndiGraph) ExistsEdge(a, b int64) bool {
	return u.g.HasEdgeBetween(a, b)
}

func (u *UndiGraph) EraseNode(id int64) {
	u.g.RemoveNode(id)
}

func (u *UndiGraph) Nodes() NodeSet {
	s := NewNodeSet()
	it := u.g.Nodes()
	for it.Next() {
		s.Add(it.Node().ID())
	}
	return s
}

func (u *UndiGraph) Neighbours(id int64) NodeSet {
	s := NewNodeSet()
	if u.g.Node(id) == nil {
		return s
	}
	it := u.g.From(id)
	for it.Next() {
		s.Add(it.Node().ID())
	}
	return s
}

// ConnectedComponents returns the components ordered by their smallest id
func (u *UndiGraph) ConnectedComponents() []NodeSet {
	comps := topo.ConnectedComponents(u.g)
	out := make([]NodeSet, 0, len(comps))
	for _, c := range comps {
		s := NewNodeSet()
		for _, n := range c {
			s.Add(n.ID())
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b NodeSet) int {
		return cmp.Compare(a.Min(), b.Min())
	})
	return out
}

// Connected reports whether some node of x and some node of y share a component
func (u *UndiGraph) Connected(x, y NodeSet) bool {
	for _, comp := range u.ConnectedComponents() {
		if comp.Intersects(x) && comp.Intersects(y) {
			return true
		}
	}
	return false
}
