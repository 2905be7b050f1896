// Package causal implements causal identification on top of a discrete
// Bayesian network: causal models with latent confounders, the ID algorithm
// of Shpitser and Pearl, adjustment formulas and the causal impact façade.
package causal

import (
	"fmt"
	"slices"
	"strings"

	"gocausal/domain/core"
	"gocausal/internal/bn"
	"gocausal/internal/doors"
	"gocausal/internal/graph"
)

// LatentVariable is an unobserved common cause of Children
type LatentVariable struct {
	Name     string   `json:"name" yaml:"name"`
	Children []string `json:"children" yaml:"children"`
}

type options struct {
	keepArcs bool
}

// Option configures NewCausalModel
type Option func(*options)

// WithKeepArcs keeps the arcs between variables sharing a latent parent.
// By default such arcs are dropped from the causal graph.
func WithKeepArcs(keep bool) Option {
	return func(o *options) { o.keepArcs = keep }
}

// CausalModel is a causal DAG over the variables of an observational
// Bayesian network plus latent variables. Latent nodes have no parent.
// Observed node ids are the network ids; latent ids follow them.
//
// Query methods never modify the model and may run concurrently. Mutators
// need exclusive access.
type CausalModel struct {
	obs    *bn.BayesNet
	dag    *graph.DAG
	names  map[int64]string
	ids    map[string]int64
	latent graph.NodeSet
	nextID int64
}

// NewCausalModel builds the causal graph of b augmented with latents
func NewCausalModel(b *bn.BayesNet, latents []LatentVariable, opts ...Option) (*CausalModel, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	m := &CausalModel{
		obs:    b,
		dag:    b.DAG(),
		names:  make(map[int64]string),
		ids:    make(map[string]int64),
		latent: graph.NewNodeSet(),
	}
	for _, id := range b.Nodes().Sorted() {
		name := b.Variable(id).Name
		m.names[id] = name
		m.ids[name] = id
		m.nextID = max(m.nextID, id+1)
	}
	for _, l := range latents {
		if err := m.AddLatentVariable(l.Name, l.Children, o.keepArcs); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddLatentVariable adds a latent parent of affected. Unless keepArcs, arcs
// between two affected variables are removed. The model is unchanged on
// error.
func (m *CausalModel) AddLatentVariable(name string, affected []string, keepArcs bool) error {
	if name == "" {
		return fmt.Errorf("%w: empty latent name", core.ErrInvalidLatent)
	}
	if _, ok := m.ids[name]; ok {
		return fmt.Errorf("%w: %s", core.ErrDuplicateVariable, name)
	}
	if len(affected) == 0 {
		return fmt.Errorf("%w: %s affects no variable", core.ErrInvalidLatent, name)
	}
	children, err := m.NodeSet(affected)
	if err != nil {
		return err
	}
	if children.Intersects(m.latent) {
		return fmt.Errorf("%w: %s cannot affect another latent variable", core.ErrInvalidLatent, name)
	}

	id := m.nextID
	if err := m.dag.AddNode(id); err != nil {
		return err
	}
	m.nextID++
	m.names[id] = name
	m.ids[name] = id
	m.latent.Add(id)
	for _, c := range children.Sorted() {
		// a fresh root cannot close a cycle
		if err := m.dag.AddArc(id, c); err != nil {
			return err
		}
	}
	if !keepArcs {
		for a := range children {
			for b := range children {
				m.dag.EraseArc(a, b)
			}
		}
	}
	return nil
}

// AddCausalArc adds from->to to the causal graph only
func (m *CausalModel) AddCausalArc(from, to string) error {
	f, t, err := m.arcEnds(from, to)
	if err != nil {
		return err
	}
	if m.latent.Has(t) {
		return fmt.Errorf("%w: %s->%s enters a latent variable", core.ErrInvalidArc, from, to)
	}
	if m.dag.ExistsArc(f, t) {
		return nil
	}
	if f == t || graph.DirectedPathExists(m.dag, t, f) {
		return core.NewCycleError(from, to)
	}
	return m.dag.AddArc(f, t)
}

// EraseCausalArc removes from->to from the causal graph
func (m *CausalModel) EraseCausalArc(from, to string) error {
	f, t, err := m.arcEnds(from, to)
	if err != nil {
		return err
	}
	m.dag.EraseArc(f, t)
	return nil
}

func (m *CausalModel) arcEnds(from, to string) (int64, int64, error) {
	f, err := m.IDFromName(from)
	if err != nil {
		return 0, 0, err
	}
	t, err := m.IDFromName(to)
	if err != nil {
		return 0, 0, err
	}
	return f, t, nil
}

func (m *CausalModel) Nodes() graph.NodeSet            { return m.dag.Nodes() }
func (m *CausalModel) Parents(id int64) graph.NodeSet  { return m.dag.Parents(id) }
func (m *CausalModel) Children(id int64) graph.NodeSet { return m.dag.Children(id) }

// IDFromName resolves an observed or latent variable
func (m *CausalModel) IDFromName(name string) (int64, error) {
	id, ok := m.ids[name]
	if !ok {
		return 0, core.NewUnknownVariableError(name)
	}
	return id, nil
}

// Name of the node id
func (m *CausalModel) Name(id int64) string { return m.names[id] }

// Names maps ids to names sorted alphabetically
func (m *CausalModel) Names(ids graph.NodeSet) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, m.names[id])
	}
	slices.Sort(out)
	return out
}

// NodeSet resolves names to ids
func (m *CausalModel) NodeSet(names []string) (graph.NodeSet, error) {
	s := graph.NewNodeSet()
	for _, n := range names {
		id, err := m.IDFromName(n)
		if err != nil {
			return nil, err
		}
		s.Add(id)
	}
	return s, nil
}

// byName orders ids by variable name
func (m *CausalModel) byName(a, b int64) bool { return m.names[a] < m.names[b] }

// sortedByName returns the ids of s ordered by name
func (m *CausalModel) sortedByName(s graph.NodeSet) []int64 {
	ids := s.Sorted()
	slices.SortFunc(ids, func(a, b int64) int { return strings.Compare(m.names[a], m.names[b]) })
	return ids
}

// Latents returns the latent node ids
func (m *CausalModel) Latents() graph.NodeSet { return m.latent.Clone() }

// LatentNames lists latent variables alphabetically
func (m *CausalModel) LatentNames() []string { return m.Names(m.latent) }

// LatentVariables describes every latent with its children
func (m *CausalModel) LatentVariables() []LatentVariable {
	out := make([]LatentVariable, 0, len(m.latent))
	for _, id := range m.sortedByName(m.latent) {
		out = append(out, LatentVariable{Name: m.names[id], Children: m.Names(m.dag.Children(id))})
	}
	return out
}

func (m *CausalModel) IsLatent(id int64) bool { return m.latent.Has(id) }

// Observed returns the ids of the observed variables
func (m *CausalModel) Observed() graph.NodeSet { return m.dag.Nodes().Minus(m.latent) }

// ExistsArc reports whether from->to belongs to the causal graph
func (m *CausalModel) ExistsArc(from, to string) bool {
	f, t, err := m.arcEnds(from, to)
	return err == nil && m.dag.ExistsArc(f, t)
}

// Arcs of the causal graph
func (m *CausalModel) Arcs() []graph.Arc { return m.dag.Arcs() }

// ObservationalBN is the network carrying the probabilities used for evaluation
func (m *CausalModel) ObservationalBN() *bn.BayesNet { return m.obs }

// ObservationalView is the causal graph restricted to observed variables
func (m *CausalModel) ObservationalView() graph.Directed {
	return graph.Induced(m.dag, m.Observed())
}

// BackDoor returns the first back-door set for cause->effect avoiding
// latent variables. found is false when none exists.
func (m *CausalModel) BackDoor(cause, effect string) (names []string, found bool, err error) {
	c, e, err := m.arcEnds(cause, effect)
	if err != nil {
		return nil, false, err
	}
	for z := range doors.BackdoorGenerator(m, c, e, m.latent) {
		return m.Names(z), true, nil
	}
	return nil, false, nil
}

// FrontDoor returns the first front-door set for cause->effect avoiding
// latent variables. found is false when none exists.
func (m *CausalModel) FrontDoor(cause, effect string) (names []string, found bool, err error) {
	c, e, err := m.arcEnds(cause, effect)
	if err != nil {
		return nil, false, err
	}
	for z := range doors.FrontdoorGenerator(m, c, e, m.latent) {
		return m.Names(z), true, nil
	}
	return nil, false, nil
}

// Dot renders the causal graph in graphviz syntax, latents dashed
func (m *CausalModel) Dot() string {
	var b strings.Builder
	b.WriteString("digraph \"causal model\" {\n")
	for _, id := range m.sortedByName(m.dag.Nodes()) {
		if m.latent.Has(id) {
			fmt.Fprintf(&b, "  %q [style=dashed, shape=ellipse];\n", m.names[id])
		} else {
			fmt.Fprintf(&b, "  %q;\n", m.names[id])
		}
	}
	for _, id := range m.sortedByName(m.dag.Nodes()) {
		for _, c := range m.sortedByName(m.dag.Children(id)) {
			style := ""
			if m.latent.Has(id) {
				style = " [style=dashed]"
			}
			fmt.Fprintf(&b, "  %q -> %q%s;\n", m.names[id], m.names[c], style)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Clone returns an independent copy sharing no graph or table
func (m *CausalModel) Clone() *CausalModel {
	c := &CausalModel{
		obs:    m.obs.Clone(),
		dag:    m.dag.Clone(),
		names:  make(map[int64]string, len(m.names)),
		ids:    make(map[string]int64, len(m.ids)),
		latent: m.latent.Clone(),
		nextID: m.nextID,
	}
	for id, n := range m.names {
		c.names[id] = n
		c.ids[n] = id
	}
	return c
}
