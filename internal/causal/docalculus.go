package causal

import (
	"slices"

	"gocausal/domain/core"
	"gocausal/internal"
	"gocausal/internal/dsep"
	"gocausal/internal/graph"
)

// DoCalculus derives P(on | do(doing)) with the ID algorithm
func DoCalculus(m *CausalModel, on, doing []string) (*CausalFormula, error) {
	root, err := IdentifyingIntervention(m, on, doing)
	if err != nil {
		return nil, err
	}
	return NewCausalFormula(m, root, on, doing, nil), nil
}

// DoCalculusWithObservation derives P(on | do(doing), knowing). Each observed
// variable that rule 2 of the do-calculus lets us turn into an intervention
// is moved to doing; what remains is the quotient
// P(on, knowing | do(doing)) / P(knowing | do(doing)).
func DoCalculusWithObservation(m *CausalModel, on, doing, knowing []string) (*CausalFormula, error) {
	if len(knowing) == 0 {
		return DoCalculus(m, on, doing)
	}
	root, err := doWithObservation(m, on, doing, knowing)
	if err != nil {
		return nil, err
	}
	return NewCausalFormula(m, root, on, doing, knowing), nil
}

func doWithObservation(m *CausalModel, on, doing, knowing []string) (ASTNode, error) {
	if len(knowing) == 0 {
		return IdentifyingIntervention(m, on, doing)
	}
	onSet, err := m.NodeSet(on)
	if err != nil {
		return nil, err
	}
	doSet, err := m.NodeSet(doing)
	if err != nil {
		return nil, err
	}
	knowSet, err := m.NodeSet(knowing)
	if err != nil {
		return nil, err
	}

	for _, z := range m.sortedByName(knowSet) {
		zs := graph.NewNodeSet(z)
		cut := graph.WithoutArcs(m, doSet, zs)
		if dsep.IsDSep(cut, zs, onSet, doSet.Union(knowSet.Minus(zs))) {
			internal.DefaultLogger.Debug("observation %s exchanged for an intervention", m.Name(z))
			return doWithObservation(m, on, m.Names(doSet.Union(zs)), m.Names(knowSet.Minus(zs)))
		}
	}

	num, err := IdentifyingIntervention(m, append(slices.Clone(on), knowing...), doing)
	if err != nil {
		return nil, err
	}
	den, err := IdentifyingIntervention(m, knowing, doing)
	if err != nil {
		return nil, err
	}
	return &Div{Left: num, Right: den}, nil
}

// BackdoorFormula is sum_Z P(effect | cause, Z) P(Z), or P(effect | cause)
// when Z is empty
func BackdoorFormula(cause, effect string, z []string) ASTNode {
	if len(z) == 0 {
		return NewPosteriorProba([]string{effect}, []string{cause})
	}
	zs := sortedClone(z)
	return NewSum(zs, &Mult{
		Left:  NewPosteriorProba([]string{effect}, append([]string{cause}, zs...)),
		Right: NewJointProba(zs),
	})
}

// FrontdoorFormula is sum_Z P(Z | cause) sum_cause' P(effect | cause', Z) P(cause')
func FrontdoorFormula(cause, effect string, z []string) ASTNode {
	zs := sortedClone(z)
	inner := NewSum([]string{cause}, &Mult{
		Left:  NewPosteriorProba([]string{effect}, append([]string{cause}, zs...)),
		Right: NewJointProba([]string{cause}),
	})
	return NewSum(zs, &Mult{
		Left:  NewPosteriorProba(zs, []string{cause}),
		Right: inner,
	})
}

func sortedClone(s []string) []string {
	c := slices.Clone(s)
	slices.Sort(c)
	return c
}

// checkDisjoint fails when two query sets share a variable
func checkDisjoint(sets ...graph.NodeSet) error {
	for i := range sets {
		for j := i + 1; j < len(sets); j++ {
			if sets[i].Intersects(sets[j]) {
				return core.NewMalformedQueryError("on, doing and knowing must be disjoint")
			}
		}
	}
	return nil
}
