package bn

import (
	"fmt"
	"math/rand"
	"slices"

	"gocausal/domain/core"
	"gocausal/internal/dsep"
	"gocausal/internal/graph"
)

// BayesNet is a discrete Bayesian network: a DAG over variables and one
// conditional probability table per variable. The CPT of a variable has the
// variable itself as first axis followed by its parents in ascending id
// order.
type BayesNet struct {
	name   string
	dag    *graph.DAG
	vars   map[int64]Variable
	ids    map[string]int64
	cpts   map[int64]*Tensor
	nextID int64
}

// New creates an empty network
func New(name string) *BayesNet {
	return &BayesNet{
		name: name,
		dag:  graph.NewDAG(),
		vars: make(map[int64]Variable),
		ids:  make(map[string]int64),
		cpts: make(map[int64]*Tensor),
	}
}

func (b *BayesNet) Name() string { return b.name }

// Add inserts a variable and returns its id
func (b *BayesNet) Add(v Variable) (int64, error) {
	if v.Name == "" {
		return 0, fmt.Errorf("variable name cannot be empty")
	}
	if v.Domain() < 1 {
		return 0, fmt.Errorf("%w: variable %s has no label", core.ErrInvalidTable, v.Name)
	}
	if _, ok := b.ids[v.Name]; ok {
		return 0, fmt.Errorf("%w: %s", core.ErrDuplicateVariable, v.Name)
	}
	id := b.nextID
	b.nextID++
	if err := b.dag.AddNode(id); err != nil {
		return 0, err
	}
	b.vars[id] = Variable{Name: v.Name, Labels: slices.Clone(v.Labels)}
	b.ids[v.Name] = id
	b.resetCPT(id)
	return id, nil
}

// AddArc inserts from->to and resets the CPT of to to a uniform table over
// its new parent set
func (b *BayesNet) AddArc(from, to string) error {
	f, err := b.IDFromName(from)
	if err != nil {
		return err
	}
	t, err := b.IDFromName(to)
	if err != nil {
		return err
	}
	if b.dag.ExistsArc(f, t) {
		return nil
	}
	if err := b.dag.AddArc(f, t); err != nil {
		return fmt.Errorf("adding arc %s->%s: %w", from, to, err)
	}
	b.resetCPT(t)
	return nil
}

// EraseArc removes from->to, resetting the CPT of to
func (b *BayesNet) EraseArc(from, to string) error {
	f, err := b.IDFromName(from)
	if err != nil {
		return err
	}
	t, err := b.IDFromName(to)
	if err != nil {
		return err
	}
	if !b.dag.ExistsArc(f, t) {
		return nil
	}
	b.dag.EraseArc(f, t)
	b.resetCPT(t)
	return nil
}

func (b *BayesNet) cptVars(id int64) []Variable {
	vars := []Variable{b.vars[id]}
	for _, p := range b.dag.Parents(id).Sorted() {
		vars = append(vars, b.vars[p])
	}
	return vars
}

func (b *BayesNet) resetCPT(id int64) {
	v := b.vars[id]
	b.cpts[id] = Ones(b.cptVars(id)...).Scale(1 / float64(v.Domain()))
}

// IDFromName resolves a variable name
func (b *BayesNet) IDFromName(name string) (int64, error) {
	id, ok := b.ids[name]
	if !ok {
		return 0, core.NewUnknownVariableError(name)
	}
	return id, nil
}

// Variable returns the variable with the given id
func (b *BayesNet) Variable(id int64) Variable {
	return b.vars[id]
}

// VariableByName returns the variable called name
func (b *BayesNet) VariableByName(name string) (Variable, error) {
	id, err := b.IDFromName(name)
	if err != nil {
		return Variable{}, err
	}
	return b.vars[id], nil
}

func (b *BayesNet) Nodes() graph.NodeSet            { return b.dag.Nodes() }
func (b *BayesNet) Parents(id int64) graph.NodeSet  { return b.dag.Parents(id) }
func (b *BayesNet) Children(id int64) graph.NodeSet { return b.dag.Children(id) }
func (b *BayesNet) Arcs() []graph.Arc               { return b.dag.Arcs() }
func (b *BayesNet) Size() int                       { return len(b.vars) }

// DAG returns a copy of the network structure
func (b *BayesNet) DAG() *graph.DAG { return b.dag.Clone() }

// Names maps ids to names, sorted alphabetically
func (b *BayesNet) Names(ids graph.NodeSet) []string {
	names := make([]string, 0, len(ids))
	for id := range ids {
		names = append(names, b.vars[id].Name)
	}
	slices.Sort(names)
	return names
}

// AllNames lists every variable name alphabetically
func (b *BayesNet) AllNames() []string {
	return b.Names(b.Nodes())
}

// NodeSet resolves names to ids
func (b *BayesNet) NodeSet(names []string) (graph.NodeSet, error) {
	s := graph.NewNodeSet()
	for _, n := range names {
		id, err := b.IDFromName(n)
		if err != nil {
			return nil, err
		}
		s.Add(id)
	}
	return s, nil
}

// CPT returns the conditional probability table of id
func (b *BayesNet) CPT(id int64) *Tensor {
	return b.cpts[id].Copy()
}

// FillCPT sets the CPT of name in tensor layout: for each parent
// configuration (first parent fastest) the distribution over name.
func (b *BayesNet) FillCPT(name string, values []float64) error {
	id, err := b.IDFromName(name)
	if err != nil {
		return err
	}
	cpt := NewTensor(b.cptVars(id)...)
	if err := cpt.Fill(values); err != nil {
		return fmt.Errorf("CPT of %s: %w", name, err)
	}
	if err := checkConditional(cpt); err != nil {
		return fmt.Errorf("CPT of %s: %w", name, err)
	}
	b.cpts[id] = cpt
	return nil
}

// checkConditional verifies that every column over the first axis sums to 1
func checkConditional(cpt *Tensor) error {
	for _, v := range cpt.values {
		if v < 0 {
			return fmt.Errorf("%w: negative probability %g", core.ErrInvalidTable, v)
		}
	}
	sums := cpt.SumOut(cpt.vars[0].Name)
	for _, s := range sums.values {
		if s < 1-1e-6 || s > 1+1e-6 {
			return fmt.Errorf("%w: a conditional distribution sums to %g", core.ErrInvalidTable, s)
		}
	}
	return nil
}

// GenerateCPTs draws every CPT at random
func (b *BayesNet) GenerateCPTs(rng *rand.Rand) {
	for _, id := range b.Nodes().Sorted() {
		cpt := NewTensor(b.cptVars(id)...)
		d := cpt.vars[0].Domain()
		for col := 0; col < len(cpt.values); col += d {
			total := 0.0
			for i := 0; i < d; i++ {
				cpt.values[col+i] = 0.05 + rng.Float64()
				total += cpt.values[col+i]
			}
			for i := 0; i < d; i++ {
				cpt.values[col+i] /= total
			}
		}
		b.cpts[id] = cpt
	}
}

// MinimalCondSet returns a subset of given that d-separates targets from
// the rest of given. Variables are dropped greedily in id order, each drop
// keeping P(targets | kept) equal to P(targets | given).
func (b *BayesNet) MinimalCondSet(targets, given graph.NodeSet) graph.NodeSet {
	cond := given.Minus(targets)
	for _, z := range cond.Sorted() {
		rest := cond.Clone()
		rest.Remove(z)
		if dsep.IsDSep(b.dag, targets, graph.NewNodeSet(z), rest) {
			cond = rest
		}
	}
	return cond
}

// Clone returns an independent copy
func (b *BayesNet) Clone() *BayesNet {
	c := &BayesNet{
		name:   b.name,
		dag:    b.dag.Clone(),
		vars:   make(map[int64]Variable, len(b.vars)),
		ids:    make(map[string]int64, len(b.ids)),
		cpts:   make(map[int64]*Tensor, len(b.cpts)),
		nextID: b.nextID,
	}
	for id, v := range b.vars {
		c.vars[id] = Variable{Name: v.Name, Labels: slices.Clone(v.Labels)}
	}
	for n, id := range b.ids {
		c.ids[n] = id
	}
	for id, t := range b.cpts {
		c.cpts[id] = t.Copy()
	}
	return c
}

// JointDistribution multiplies every CPT. Exponential in the network size;
// meant for checks on small networks.
func (b *BayesNet) JointDistribution() *Tensor {
	joint := Ones()
	for _, id := range b.Nodes().Sorted() {
		joint = joint.Mul(b.cpts[id])
	}
	return joint
}
