package dsep

import (
	"gocausal/internal/graph"
)

type direction int

const (
	// up: the trail entered the node from one of its children
	up direction = iota
	// down: the trail entered the node from one of its parents
	down
)

type visit struct {
	node int64
	dir  direction
}

// IsDSepBlocked reports whether x and y are d-separated by z by searching
// for an active trail from x. Large graphs are reduced first.
func IsDSepBlocked(g graph.Directed, x, y, z graph.NodeSet) bool {
	if x.Intersects(y) {
		return false
	}
	x, y = x.Minus(z), y.Minus(z)
	if x.IsEmpty() || y.IsEmpty() {
		return true
	}
	if len(y) < len(x) {
		x, y = y, x
	}
	if g.Nodes().Len() > ReduceThreshold {
		g = Reduce(g, x, y, z)
	}
	return blocked(g, x, y, z)
}

// blocked walks every trail leaving x. Non-colliders outside z pass the
// trail through; colliders pass it only when they or a descendant are in z.
// Returns false as soon as a node of y is reached.
func blocked(g graph.Directed, x, y, z graph.NodeSet) bool {
	// nodes with a descendant in z (z included) open colliders
	opening := graph.AncestralSet(g, z)

	seen := make(map[visit]bool)
	stack := make([]visit, 0, len(x))
	for _, id := range x.Sorted() {
		stack = append(stack, visit{node: id, dir: up})
	}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[v] {
			continue
		}
		seen[v] = true

		inZ := z.Has(v.node)
		if !inZ && y.Has(v.node) {
			return false
		}

		switch v.dir {
		case up:
			if inZ {
				continue
			}
			for _, p := range g.Parents(v.node).Sorted() {
				stack = append(stack, visit{node: p, dir: up})
			}
			for _, c := range g.Children(v.node).Sorted() {
				stack = append(stack, visit{node: c, dir: down})
			}
		case down:
			if !inZ {
				for _, c := range g.Children(v.node).Sorted() {
					stack = append(stack, visit{node: c, dir: down})
				}
			}
			if opening.Has(v.node) {
				for _, p := range g.Parents(v.node).Sorted() {
					stack = append(stack, visit{node: p, dir: up})
				}
			}
		}
	}
	return true
}

// Reduce returns the part of g relevant to a d-separation query on x, y, z:
// barren nodes (no descendant among x∪y∪z) are dropped, then dangling nodes
// of degree at most one outside x∪y∪z are peeled off until none remain.
func Reduce(g graph.Directed, x, y, z graph.NodeSet) graph.Directed {
	interest := x.Union(y).Union(z)
	keep := graph.AncestralSet(g, interest)

	for {
		view := graph.Induced(g, keep)
		removed := false
		for _, id := range keep.Sorted() {
			if interest.Has(id) {
				continue
			}
			if view.Parents(id).Len()+view.Children(id).Len() <= 1 {
				keep.Remove(id)
				removed = true
			}
		}
		if !removed {
			return graph.Induced(g, keep)
		}
	}
}
