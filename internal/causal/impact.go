package causal

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gocausal/domain/core"
	"gocausal/internal"
	"gocausal/internal/bn"
	"gocausal/internal/dsep"
	"gocausal/internal/graph"
)

// Query asks for P(On | do(Doing), Knowing). Values optionally fixes the
// label of some of the query variables in the result.
type Query struct {
	On      []string          `json:"on" yaml:"on"`
	Doing   []string          `json:"doing" yaml:"doing"`
	Knowing []string          `json:"knowing,omitempty" yaml:"knowing,omitempty"`
	Values  map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Impact is the answer to a Query. Formula and Result are nil when the
// effect is not identifiable; Explanation is always set.
type Impact struct {
	Formula     *CausalFormula
	Result      *bn.Tensor
	Explanation string
}

type querySets struct {
	on, doing, knowing graph.NodeSet
}

// CausalImpact identifies and evaluates P(on | do(doing), knowing). In
// order it tries d-separation, then for a single cause and effect without
// observation a back-door and a front-door adjustment, then the do-calculus.
// A hedge is not an error: the Impact carries only the explanation.
func CausalImpact(m *CausalModel, q Query) (*Impact, error) {
	sets, err := m.checkQuery(q)
	if err != nil {
		return nil, err
	}

	formula, explanation, err := m.derive(q, sets)
	var hedge *HedgeError
	if errors.As(err, &hedge) {
		internal.DefaultLogger.Debug("query on %v doing %v not identifiable: %v", q.On, q.Doing, hedge)
		return &Impact{Explanation: "Hedge found: " + hedge.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	result, err := formula.Eval(m.obs)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", formula.LatexQuery(), err)
	}
	result, err = m.shapeResult(result, q)
	if err != nil {
		return nil, err
	}
	return &Impact{Formula: formula, Result: result, Explanation: explanation}, nil
}

func (m *CausalModel) checkQuery(q Query) (querySets, error) {
	if len(q.On) == 0 {
		return querySets{}, core.NewMalformedQueryError("no outcome variable")
	}
	if len(q.Doing) == 0 {
		return querySets{}, core.NewMalformedQueryError("no intervention variable")
	}
	var sets querySets
	var err error
	if sets.on, sets.doing, err = m.observedSets(q.On, q.Doing); err != nil {
		return querySets{}, err
	}
	if sets.knowing, _, err = m.observedSets(q.Knowing, nil); err != nil {
		return querySets{}, err
	}
	if sets.on.Len() != len(q.On) || sets.doing.Len() != len(q.Doing) || sets.knowing.Len() != len(q.Knowing) {
		return querySets{}, core.NewMalformedQueryError("a variable is repeated")
	}
	if err := checkDisjoint(sets.on, sets.doing, sets.knowing); err != nil {
		return querySets{}, err
	}

	all := sets.on.Union(sets.doing).Union(sets.knowing)
	for name, label := range q.Values {
		id, err := m.IDFromName(name)
		if err != nil || !all.Has(id) {
			return querySets{}, core.NewMalformedQueryError(fmt.Sprintf("value given for %s which is not in the query", name))
		}
		v, _ := m.obs.VariableByName(name)
		if _, err := v.Index(label); err != nil {
			return querySets{}, core.NewMalformedQueryError(fmt.Sprintf("%s has no label %q", name, label))
		}
	}
	return sets, nil
}

func (m *CausalModel) derive(q Query, sets querySets) (*CausalFormula, string, error) {
	if dsep.IsDSep(m, sets.doing, sets.on, sets.knowing) {
		explanation := fmt.Sprintf("No causal effect of %s on %s: they are d-separated",
			strings.Join(q.Doing, ","), strings.Join(q.On, ","))
		if len(q.Knowing) > 0 {
			explanation += " given " + strings.Join(q.Knowing, ",")
		}
		root := NewPosteriorProba(q.On, q.Knowing)
		return NewCausalFormula(m, root, q.On, q.Doing, q.Knowing), explanation, nil
	}

	if len(q.Doing) == 1 && len(q.On) == 1 && len(q.Knowing) == 0 {
		cause, effect := q.Doing[0], q.On[0]
		id, _ := m.IDFromName(cause)
		if m.Parents(id).IsEmpty() {
			root := BackdoorFormula(cause, effect, nil)
			return NewCausalFormula(m, root, q.On, q.Doing, nil), "backdoor {} found: " + cause + " has no parent.", nil
		}

		z, found, err := m.BackDoor(cause, effect)
		if err != nil {
			return nil, "", err
		}
		if found {
			root := BackdoorFormula(cause, effect, z)
			return NewCausalFormula(m, root, q.On, q.Doing, nil), "backdoor {" + strings.Join(z, ",") + "} found.", nil
		}

		z, found, err = m.FrontDoor(cause, effect)
		if err != nil {
			return nil, "", err
		}
		if found {
			root := FrontdoorFormula(cause, effect, z)
			return NewCausalFormula(m, root, q.On, q.Doing, nil), "frontdoor {" + strings.Join(z, ",") + "} found.", nil
		}
	}

	formula, err := DoCalculusWithObservation(m, q.On, q.Doing, q.Knowing)
	if err != nil {
		return nil, "", err
	}
	return formula, "Do-calculus computations", nil
}

// shapeResult lays the table out as on, doing, knowing (in query order),
// broadcasting variables the formula does not depend on, then fixes values
func (m *CausalModel) shapeResult(t *bn.Tensor, q Query) (*bn.Tensor, error) {
	var order []string
	for _, set := range [][]string{q.On, q.Doing, q.Knowing} {
		order = append(order, set...)
	}
	t, err := dropFreeAxes(t, order)
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		if !t.Has(name) {
			v, _ := m.obs.VariableByName(name)
			t = t.Mul(bn.Ones(v))
		}
	}
	t, err = t.Reorganize(order)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvariantViolated, err)
	}
	if len(q.Values) == 0 {
		return t, nil
	}
	inst := make(map[string]int, len(q.Values))
	for name, label := range q.Values {
		v, _ := m.obs.VariableByName(name)
		inst[name], _ = v.Index(label)
	}
	return t.Extract(inst), nil
}

// freeAxisTolerance bounds how much a derived table may vary along an axis
// outside the query
const freeAxisTolerance = 1e-9

// dropFreeAxes removes the axes of t outside keep by fixing them at their
// first label. Variables the ID algorithm adds to the intervention set can
// stay in the table although it is constant along them. At debug level the
// constancy is checked.
func dropFreeAxes(t *bn.Tensor, keep []string) (*bn.Tensor, error) {
	check := internal.DefaultLogger.GetLevel() >= internal.LogLevelDebug
	for _, v := range t.Vars() {
		if slices.Contains(keep, v.Name) {
			continue
		}
		first := t.Extract(map[string]int{v.Name: 0})
		if check {
			for i := 1; i < v.Domain(); i++ {
				if !first.IsClose(t.Extract(map[string]int{v.Name: i}), freeAxisTolerance) {
					return nil, fmt.Errorf("%w: result depends on %s which is not in the query", core.ErrInvariantViolated, v.Name)
				}
			}
		}
		t = first
	}
	return t, nil
}
