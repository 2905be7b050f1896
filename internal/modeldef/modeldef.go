// Package modeldef reads declarative causal model definitions (YAML or JSON)
// and builds causal models from them.
package modeldef

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"gocausal/internal/bn"
	"gocausal/internal/causal"

	"gopkg.in/yaml.v3"
)

// Definition describes a causal model. Structure uses the compact arc
// syntax of bn.Fast; Variables may add variables, parents and CPTs on top of
// it. CPT values follow the table layout: the variable fastest, then its
// parents in declaration order.
type Definition struct {
	Name       string                  `json:"name" yaml:"name"`
	Structure  string                  `json:"structure,omitempty" yaml:"structure,omitempty"`
	Variables  []VariableDef           `json:"variables,omitempty" yaml:"variables,omitempty"`
	Latents    []causal.LatentVariable `json:"latents,omitempty" yaml:"latents,omitempty"`
	CausalArcs []ArcDef                `json:"causal_arcs,omitempty" yaml:"causal_arcs,omitempty"`
	KeepArcs   *bool                   `json:"keep_arcs,omitempty" yaml:"keep_arcs,omitempty"`
	// Seed draws random CPTs for every variable without an explicit one
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// VariableDef declares one observed variable
type VariableDef struct {
	Name    string    `json:"name" yaml:"name"`
	Labels  []string  `json:"labels,omitempty" yaml:"labels,omitempty"`
	Domain  int       `json:"domain,omitempty" yaml:"domain,omitempty"`
	Parents []string  `json:"parents,omitempty" yaml:"parents,omitempty"`
	CPT     []float64 `json:"cpt,omitempty" yaml:"cpt,omitempty"`
}

// ArcDef is an arc of the causal graph absent from the observational network
type ArcDef struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// ErrInvalidDefinition wraps every structural problem of a definition
var ErrInvalidDefinition = errors.New("invalid model definition")

// Parse decodes a YAML or JSON definition, rejecting unknown fields
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseFile reads and parses the definition stored at path
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model definition: %w", err)
	}
	return Parse(data)
}

// Validate checks what can be checked without building the network
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if d.Structure == "" && len(d.Variables) == 0 {
		return fmt.Errorf("%w: %s declares no variable", ErrInvalidDefinition, d.Name)
	}
	seen := make(map[string]bool)
	for _, v := range d.Variables {
		if v.Name == "" {
			return fmt.Errorf("%w: variable without a name", ErrInvalidDefinition)
		}
		if seen[v.Name] {
			return fmt.Errorf("%w: variable %s declared twice", ErrInvalidDefinition, v.Name)
		}
		seen[v.Name] = true
		parents := make(map[string]bool)
		for _, p := range v.Parents {
			if p == v.Name || parents[p] {
				return fmt.Errorf("%w: %s has an invalid parent list %v", ErrInvalidDefinition, v.Name, v.Parents)
			}
			parents[p] = true
		}
		if len(v.Labels) > 0 && v.Domain > 0 && v.Domain != len(v.Labels) {
			return fmt.Errorf("%w: %s has %d labels but domain %d", ErrInvalidDefinition, v.Name, len(v.Labels), v.Domain)
		}
	}
	return nil
}

// Build constructs the causal model. keepArcs applies when the definition
// does not set keep_arcs itself.
func (d *Definition) Build(keepArcs bool) (*causal.CausalModel, error) {
	b, err := d.network()
	if err != nil {
		return nil, err
	}
	if d.KeepArcs != nil {
		keepArcs = *d.KeepArcs
	}
	m, err := causal.NewCausalModel(b, d.Latents, causal.WithKeepArcs(keepArcs))
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", d.Name, err)
	}
	for _, a := range d.CausalArcs {
		if err := m.AddCausalArc(a.From, a.To); err != nil {
			return nil, fmt.Errorf("model %s: %w", d.Name, err)
		}
	}
	return m, nil
}

func (d *Definition) network() (*bn.BayesNet, error) {
	b := bn.New(d.Name)
	if d.Structure != "" {
		var err error
		if b, err = bn.Fast(d.Structure, nil); err != nil {
			return nil, fmt.Errorf("model %s: %w", d.Name, err)
		}
	}

	for _, v := range d.Variables {
		if _, err := b.IDFromName(v.Name); err == nil {
			continue
		}
		var variable bn.Variable
		switch {
		case len(v.Labels) > 0:
			variable = bn.NewLabelizedVariable(v.Name, v.Labels...)
		case v.Domain > 0:
			variable = bn.NewVariable(v.Name, v.Domain)
		default:
			variable = bn.NewVariable(v.Name, 2)
		}
		if _, err := b.Add(variable); err != nil {
			return nil, fmt.Errorf("model %s: %w", d.Name, err)
		}
	}
	for _, v := range d.Variables {
		for _, p := range v.Parents {
			if err := b.AddArc(p, v.Name); err != nil {
				return nil, fmt.Errorf("model %s: %w", d.Name, err)
			}
		}
	}

	if d.Seed != nil {
		b.GenerateCPTs(rand.New(rand.NewSource(*d.Seed)))
	}
	for _, v := range d.Variables {
		if len(v.CPT) == 0 {
			continue
		}
		values, err := cptLayout(b, v)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", d.Name, err)
		}
		if err := b.FillCPT(v.Name, values); err != nil {
			return nil, fmt.Errorf("model %s: %w", d.Name, err)
		}
	}
	return b, nil
}

// cptLayout reorders values given with the declared parent order into the
// network's own CPT layout
func cptLayout(b *bn.BayesNet, v VariableDef) ([]float64, error) {
	if len(v.Parents) == 0 {
		return v.CPT, nil
	}
	vars := make([]bn.Variable, 0, len(v.Parents)+1)
	for _, name := range append([]string{v.Name}, v.Parents...) {
		variable, err := b.VariableByName(name)
		if err != nil {
			return nil, err
		}
		vars = append(vars, variable)
	}
	declared := bn.NewTensor(vars...)
	if err := declared.Fill(v.CPT); err != nil {
		return nil, fmt.Errorf("CPT of %s: %w", v.Name, err)
	}
	id, _ := b.IDFromName(v.Name)
	actual, err := declared.Reorganize(b.CPT(id).Names())
	if err != nil {
		return nil, fmt.Errorf("CPT of %s: parents %v are not all of its parents: %w", v.Name, v.Parents, err)
	}
	return actual.Values(), nil
}
