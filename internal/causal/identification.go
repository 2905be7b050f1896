package causal

import (
	"fmt"
	"slices"
	"strings"

	"gocausal/domain/core"
	"gocausal/internal"
	"gocausal/internal/graph"
)

// idProblem is one recursive call of the ID algorithm: the causal graph
// restricted to the observed variables v and every latent variable.
type idProblem struct {
	m *CausalModel
	g graph.Directed
	v graph.NodeSet
}

func newIDProblem(m *CausalModel, v graph.NodeSet) *idProblem {
	return &idProblem{m: m, g: graph.Induced(m.dag, v.Union(m.latent)), v: v}
}

// IdentifyingIntervention derives P(y | do(x)) with the ID algorithm of
// Shpitser and Pearl. It returns a *HedgeError when the effect is not
// identifiable.
//
// The derivation always starts from the observational joint of m. The
// distribution the algorithm narrows while it recurses is internal and
// cannot be supplied by callers; the leaves of the result only refer to
// probabilities of the observed variables of m.
func IdentifyingIntervention(m *CausalModel, y, x []string) (ASTNode, error) {
	ys, xs, err := m.observedSets(y, x)
	if err != nil {
		return nil, err
	}
	if ys.IsEmpty() {
		return nil, core.NewMalformedQueryError("no outcome variable")
	}
	if ys.Intersects(xs) {
		return nil, core.NewMalformedQueryError("outcome and intervention overlap")
	}
	return newIDProblem(m, m.Observed()).identify(ys, xs, nil, 0)
}

func (m *CausalModel) observedSets(sets ...[]string) (graph.NodeSet, graph.NodeSet, error) {
	out := make([]graph.NodeSet, len(sets))
	for i, names := range sets {
		s, err := m.NodeSet(names)
		if err != nil {
			return nil, nil, err
		}
		if s.Intersects(m.latent) {
			return nil, nil, core.NewMalformedQueryError(fmt.Sprintf("latent variable in %v", names))
		}
		out[i] = s
	}
	return out[0], out[1], nil
}

// identify runs the ID algorithm. p is the current distribution over v, nil
// standing for the observational joint.
func (pb *idProblem) identify(y, x graph.NodeSet, p ASTNode, depth int) (ASTNode, error) {
	m := pb.m
	internal.DefaultLogger.Trace("%sID y=%v x=%v v=%v", strings.Repeat("  ", depth), m.Names(y), m.Names(x), m.Names(pb.v))

	// 1: nothing to intervene on
	if x.IsEmpty() {
		if p == nil {
			return NewJointProba(m.Names(y)), nil
		}
		return NewSum(m.Names(pb.v.Minus(y)), p.Copy()), nil
	}

	// 2: restrict to the ancestors of y
	anc := graph.AncestralSet(pb.g, y).Intersect(pb.v)
	if dropped := pb.v.Minus(anc); !dropped.IsEmpty() {
		var pp ASTNode
		if p != nil {
			pp = NewSum(m.Names(dropped), p.Copy())
		}
		return newIDProblem(m, anc).identify(y, x.Intersect(anc), pp, depth+1)
	}

	// 3: intervene on every variable the outcome no longer depends on under do(x)
	mutilated := graph.WithoutArcs(pb.g, x, nil)
	w := pb.v.Minus(x).Minus(graph.AncestralSet(mutilated, y))
	if !w.IsEmpty() {
		return pb.identify(y, x.Union(w), p, depth+1)
	}

	// 4: split on the c-components of G[V\X]
	rest := pb.v.Minus(x)
	components := pb.cComponents(rest)
	if len(components) > 1 {
		terms := make([]ASTNode, 0, len(components))
		for _, s := range components {
			t, err := pb.identify(s, pb.v.Minus(s), p, depth+1)
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
		}
		return NewSum(m.Names(pb.v.Minus(x.Union(y))), productOf(terms)), nil
	}
	s := components[0]

	full := pb.cComponents(pb.v)
	// 5: hedge
	if len(full) == 1 && full[0].Equal(pb.v) {
		return nil, &HedgeError{Observables: m.Names(pb.v), Hedge: m.Names(s)}
	}

	order, err := pb.topologicalOrder()
	if err != nil {
		return nil, err
	}

	// 6: s is a c-component of G
	for _, c := range full {
		if c.Equal(s) {
			prod, err := pb.factorize(s, order, p)
			if err != nil {
				return nil, err
			}
			return NewSum(m.Names(s.Minus(y)), prod), nil
		}
	}

	// 7: recurse into the c-component of G containing s
	for _, c := range full {
		if s.IsSubsetOf(c) {
			prod, err := pb.factorize(c, order, p)
			if err != nil {
				return nil, err
			}
			return newIDProblem(m, c).identify(y, x.Intersect(c), prod, depth+1)
		}
	}

	return nil, fmt.Errorf("%w: no ID case applies to y=%v x=%v", core.ErrInvariantViolated, m.Names(y), m.Names(x))
}

// cComponents partitions w into sets linked by shared latent parents,
// ordered by their smallest name
func (pb *idProblem) cComponents(w graph.NodeSet) []graph.NodeSet {
	u := graph.NewUndiGraph()
	for _, id := range w.Sorted() {
		u.AddNode(id)
	}
	for _, l := range pb.m.latent.Sorted() {
		children := pb.g.Children(l).Intersect(w).Sorted()
		for i := 1; i < len(children); i++ {
			u.AddEdge(children[i-1], children[i])
		}
	}
	components := u.ConnectedComponents()
	slices.SortFunc(components, func(a, b graph.NodeSet) int {
		return strings.Compare(pb.m.Names(a)[0], pb.m.Names(b)[0])
	})
	return components
}

// topologicalOrder sorts v, ties broken by name
func (pb *idProblem) topologicalOrder() ([]int64, error) {
	return graph.TopologicalOrder(graph.Induced(pb.g, pb.v), pb.m.byName)
}

// factorize builds prod_{vi in s} P(vi | predecessors of vi in order). With
// a current distribution p each factor is derived from p instead of the
// observational network.
func (pb *idProblem) factorize(s graph.NodeSet, order []int64, p ASTNode) (ASTNode, error) {
	m := pb.m
	var terms []ASTNode
	pred := graph.NewNodeSet()
	for _, vi := range order {
		if s.Has(vi) {
			if p == nil {
				terms = append(terms, NewPosteriorProba([]string{m.Name(vi)}, m.Names(pred)))
			} else {
				keep := pred.Union(graph.NewNodeSet(vi))
				num := NewSum(m.Names(pb.v.Minus(keep)), p.Copy())
				den := NewSum([]string{m.Name(vi)}, num.Copy())
				terms = append(terms, &Div{Left: num, Right: den})
			}
		}
		pred.Add(vi)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: empty c-component", core.ErrInvariantViolated)
	}
	return productOf(terms), nil
}
