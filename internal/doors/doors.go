// Package doors searches adjustment sets satisfying Pearl's back-door and
// front-door criteria.
package doors

import (
	"iter"

	"gocausal/internal/dsep"
	"gocausal/internal/graph"

	"gonum.org/v1/gonum/stat/combin"
)

// IsBackdoor reports whether z satisfies the back-door criterion for
// cause->effect: z holds no descendant of cause and blocks every path
// entering cause through one of its parents.
func IsBackdoor(g graph.Directed, cause, effect int64, z graph.NodeSet) bool {
	if z.Has(cause) || z.Has(effect) {
		return false
	}
	if z.Intersects(graph.Descendants(g, graph.NewNodeSet(cause))) {
		return false
	}
	c := graph.NewNodeSet(cause)
	return dsep.IsDSep(graph.WithoutArcs(g, nil, c), c, graph.NewNodeSet(effect), z)
}

// IsFrontdoor reports whether z satisfies the front-door criterion for
// cause->effect:
//   - z intercepts every directed path from cause to effect
//   - no back-door path from cause to z is open
//   - every back-door path from z to effect is blocked by cause
func IsFrontdoor(g graph.Directed, cause, effect int64, z graph.NodeSet) bool {
	if z.IsEmpty() || z.Has(cause) || z.Has(effect) {
		return false
	}
	keep := g.Nodes().Minus(z)
	if graph.DirectedPathExists(graph.Induced(g, keep), cause, effect) {
		return false
	}
	c := graph.NewNodeSet(cause)
	if !dsep.IsDSep(graph.WithoutArcs(g, nil, c), c, z, nil) {
		return false
	}
	return dsep.IsDSep(graph.WithoutArcs(g, nil, z), z, graph.NewNodeSet(effect), c)
}

// BackdoorGenerator lazily yields back-door sets for cause->effect that avoid
// forbidden, by increasing size. Supersets of a yielded set are skipped.
// Nothing is yielded when cause has no parent or effect is a parent of cause.
func BackdoorGenerator(g graph.Directed, cause, effect int64, forbidden graph.NodeSet) iter.Seq[graph.NodeSet] {
	return func(yield func(graph.NodeSet) bool) {
		parents := g.Parents(cause)
		if parents.IsEmpty() || parents.Has(effect) {
			return
		}
		candidates := graph.Ancestors(g, cause).Union(graph.Ancestors(g, effect))
		candidates = candidates.Minus(graph.Descendants(g, graph.NewNodeSet(cause)))
		candidates.Remove(cause, effect)
		candidates = candidates.Minus(forbidden)

		accept := func(z graph.NodeSet) bool { return IsBackdoor(g, cause, effect, z) }
		subsets(candidates.Sorted(), 0, accept)(yield)
	}
}

// FrontdoorGenerator lazily yields non-empty front-door sets for
// cause->effect that avoid forbidden, by increasing size. Supersets of a
// yielded set are skipped. Nothing is yielded when the arc cause->effect
// exists or effect is not reachable from cause.
func FrontdoorGenerator(g graph.Directed, cause, effect int64, forbidden graph.NodeSet) iter.Seq[graph.NodeSet] {
	return func(yield func(graph.NodeSet) bool) {
		if g.Children(cause).Has(effect) {
			return
		}
		below := graph.Descendants(g, graph.NewNodeSet(cause))
		if !below.Has(effect) {
			return
		}
		// nodes lying on a directed path cause -> effect
		candidates := below.Intersect(graph.AncestralSet(g, graph.NewNodeSet(effect)))
		candidates.Remove(effect)
		candidates = candidates.Minus(forbidden)

		c := graph.NewNodeSet(cause)
		cut := graph.WithoutArcs(g, nil, c)
		for _, z := range candidates.Sorted() {
			if !dsep.IsDSep(cut, c, graph.NewNodeSet(z), nil) {
				candidates.Remove(z)
			}
		}

		accept := func(z graph.NodeSet) bool { return IsFrontdoor(g, cause, effect, z) }
		subsets(candidates.Sorted(), 1, accept)(yield)
	}
}

// subsets enumerates subsets of pool from size minSize upwards and yields
// those accepted that contain no previously yielded set.
func subsets(pool []int64, minSize int, accept func(graph.NodeSet) bool) iter.Seq[graph.NodeSet] {
	return func(yield func(graph.NodeSet) bool) {
		var found []graph.NodeSet
		try := func(z graph.NodeSet) bool {
			for _, f := range found {
				if f.IsSubsetOf(z) {
					return true
				}
			}
			if !accept(z) {
				return true
			}
			found = append(found, z)
			return yield(z.Clone())
		}

		if minSize == 0 && !try(graph.NewNodeSet()) {
			return
		}
		for k := max(minSize, 1); k <= len(pool); k++ {
			gen := combin.NewCombinationGenerator(len(pool), k)
			idx := make([]int, k)
			for gen.Next() {
				gen.Combination(idx)
				z := graph.NewNodeSet()
				for _, i := range idx {
					z.Add(pool[i])
				}
				if !try(z) {
					return
				}
			}
		}
	}
}
