package bn

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gocausal/internal/graph"
)

// ErrNotTarget is returned when a posterior is requested for a set that was
// not registered before MakeInference
var ErrNotTarget = errors.New("not an inference target")

// ExactInference computes prior joint marginals of a network by variable
// elimination restricted to the ancestors of each target. Register targets,
// run MakeInference once, then read the posteriors.
type ExactInference struct {
	bn      *BayesNet
	targets map[string]graph.NodeSet
	results map[string]*Tensor
	done    bool
}

// NewExactInference prepares inference on b
func NewExactInference(b *BayesNet) *ExactInference {
	return &ExactInference{
		bn:      b,
		targets: make(map[string]graph.NodeSet),
		results: make(map[string]*Tensor),
	}
}

func targetKey(ids graph.NodeSet) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids.Sorted() {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ",")
}

// AddJointTarget registers a joint target over names
func (ie *ExactInference) AddJointTarget(names ...string) error {
	ids, err := ie.bn.NodeSet(names)
	if err != nil {
		return err
	}
	if ids.IsEmpty() {
		return fmt.Errorf("joint target needs at least one variable")
	}
	key := targetKey(ids)
	if _, ok := ie.targets[key]; !ok {
		ie.targets[key] = ids
		ie.done = false
	}
	return nil
}

// AddTarget registers a single-variable target
func (ie *ExactInference) AddTarget(name string) error {
	return ie.AddJointTarget(name)
}

// MakeInference computes every registered target not yet computed
func (ie *ExactInference) MakeInference() error {
	for key, ids := range ie.targets {
		if _, ok := ie.results[key]; ok {
			continue
		}
		t, err := ie.joint(ids)
		if err != nil {
			return err
		}
		ie.results[key] = t
	}
	ie.done = true
	return nil
}

// JointPosterior returns the joint over names, axes in the order given
func (ie *ExactInference) JointPosterior(names ...string) (*Tensor, error) {
	ids, err := ie.bn.NodeSet(names)
	if err != nil {
		return nil, err
	}
	key := targetKey(ids)
	if _, ok := ie.targets[key]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotTarget, names)
	}
	if !ie.done {
		if err := ie.MakeInference(); err != nil {
			return nil, err
		}
	}
	return ie.results[key].Reorganize(names)
}

// Posterior returns the marginal of one variable
func (ie *ExactInference) Posterior(name string) (*Tensor, error) {
	return ie.JointPosterior(name)
}

// joint eliminates every ancestor of targets that is not a target, picking
// at each step the variable producing the smallest intermediate table
func (ie *ExactInference) joint(targets graph.NodeSet) (*Tensor, error) {
	relevant := graph.AncestralSet(ie.bn, targets)
	factors := make([]*Tensor, 0, relevant.Len())
	for _, id := range relevant.Sorted() {
		factors = append(factors, ie.bn.CPT(id))
	}

	elim := relevant.Minus(targets)
	for !elim.IsEmpty() {
		next, best := int64(-1), -1
		for _, id := range elim.Sorted() {
			name := ie.bn.Variable(id).Name
			var scope []Variable
			for _, f := range factors {
				if f.Has(name) {
					scope = unionVars(scope, f.vars)
				}
			}
			if size := domainSize(scope); best < 0 || size < best {
				next, best = id, size
			}
		}

		name := ie.bn.Variable(next).Name
		product := Ones()
		kept := factors[:0:0]
		for _, f := range factors {
			if f.Has(name) {
				product = product.Mul(f)
			} else {
				kept = append(kept, f)
			}
		}
		factors = append(kept, product.SumOut(name))
		elim.Remove(next)
	}

	result := Ones()
	for _, f := range factors {
		result = result.Mul(f)
	}
	names := ie.bn.Names(targets)
	if !slices.Equal(sortedNames(result), names) {
		return nil, fmt.Errorf("elimination left %v, expected %v", result.Names(), names)
	}
	return result.Reorganize(names)
}

func sortedNames(t *Tensor) []string {
	names := t.Names()
	slices.Sort(names)
	return names
}
