package graph

import (
	"fmt"

	"gocausal/domain/core"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Arc is a directed edge between two node ids
type Arc struct {
	From int64
	To   int64
}

// DAG is a directed acyclic graph. AddArc refuses any arc closing a cycle,
// so the graph stays acyclic through every mutation.
type DAG struct {
	g *simple.DirectedGraph
}

// NewDAG creates an empty DAG
func NewDAG() *DAG {
	return &DAG{g: simple.NewDirectedGraph()}
}

// AddNode inserts id; inserting an existing id is an error
func (d *DAG) AddNode(id int64) error {
	if d.g.Node(id) != nil {
		return fmt.Errorf("node %d already exists", id)
	}
	d.g.AddNode(simple.Node(id))
	return nil
}

// HasNode reports whether id is in the graph
func (d *DAG) HasNode(id int64) bool {
	return d.g.Node(id) != nil
}

// EraseNode removes id and all its arcs
func (d *DAG) EraseNode(id int64) {
	d.g.RemoveNode(id)
}

// AddArc inserts from->to. The graph is left unchanged on error.
func (d *DAG) AddArc(from, to int64) error {
	f, t := d.g.Node(from), d.g.Node(to)
	if f == nil || t == nil {
		return fmt.Errorf("%w: %d->%d references an unknown node", core.ErrInvalidArc, from, to)
	}
	if from == to {
		return fmt.Errorf("%w: self loop on %d", core.ErrCycle, from)
	}
	if d.g.HasEdgeFromTo(from, to) {
		return nil
	}
	if topo.PathExistsIn(d.g, t, f) {
		return fmt.Errorf("%w: %d->%d", core.ErrCycle, from, to)
	}
	d.g.SetEdge(d.g.NewEdge(f, t))
	return nil
}

// EraseArc removes from->to if present
func (d *DAG) EraseArc(from, to int64) {
	d.g.RemoveEdge(from, to)
}

// ExistsArc reports whether from->to is present
func (d *DAG) ExistsArc(from, to int64) bool {
	return d.g.HasEdgeFromTo(from, to)
}

func (d *DAG) Nodes() NodeSet {
	s := NewNodeSet()
	it := d.g.Nodes()
	for it.Next() {
		s.Add(it.Node().ID())
	}
	return s
}

func (d *DAG) Parents(id int64) NodeSet {
	s := NewNodeSet()
	if d.g.Node(id) == nil {
		return s
	}
	it := d.g.To(id)
	for it.Next() {
		s.Add(it.Node().ID())
	}
	return s
}

func (d *DAG) Children(id int64) NodeSet {
	s := NewNodeSet()
	if d.g.Node(id) == nil {
		return s
	}
	it := d.g.From(id)
	for it.Next() {
		s.Add(it.Node().ID())
	}
	return s
}

// Size returns the number of nodes
func (d *DAG) Size() int {
	return d.g.Nodes().Len()
}

// Arcs returns every arc ordered by (From, To)
func (d *DAG) Arcs() []Arc {
	var arcs []Arc
	for _, from := range d.Nodes().Sorted() {
		for _, to := range d.Children(from).Sorted() {
			arcs = append(arcs, Arc{From: from, To: to})
		}
	}
	return arcs
}

// Clone returns an independent copy
func (d *DAG) Clone() *DAG {
	c := NewDAG()
	for _, id := range d.Nodes().Sorted() {
		c.g.AddNode(simple.Node(id))
	}
	for _, a := range d.Arcs() {
		c.g.SetEdge(c.g.NewEdge(simple.Node(a.From), simple.Node(a.To)))
	}
	return c
}
