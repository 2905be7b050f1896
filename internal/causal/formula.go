package causal

import (
	"slices"
	"strings"

	"gocausal/internal/bn"
)

const doOperator = `\hookrightarrow\mkern-6.5mu `

// CausalFormula pairs the derivation of a query with the query itself:
// P(On | do(Doing), Knowing).
type CausalFormula struct {
	model   *CausalModel
	root    ASTNode
	on      []string
	doing   []string
	knowing []string
}

// NewCausalFormula wraps root as the answer to P(on | do(doing), knowing)
func NewCausalFormula(m *CausalModel, root ASTNode, on, doing, knowing []string) *CausalFormula {
	sorted := func(s []string) []string {
		c := slices.Clone(s)
		slices.Sort(c)
		return c
	}
	return &CausalFormula{model: m, root: root, on: sorted(on), doing: sorted(doing), knowing: sorted(knowing)}
}

func (f *CausalFormula) Root() ASTNode        { return f.root }
func (f *CausalFormula) Model() *CausalModel  { return f.model }
func (f *CausalFormula) On() []string         { return slices.Clone(f.on) }
func (f *CausalFormula) Doing() []string      { return slices.Clone(f.doing) }
func (f *CausalFormula) Knowing() []string    { return slices.Clone(f.knowing) }
func (f *CausalFormula) String() string       { return f.root.String() }

// LatexQuery renders the query, e.g. P\left(y\mid \hookrightarrow\mkern-6.5mu x,z\right)
func (f *CausalFormula) LatexQuery() string {
	var cond []string
	for _, d := range f.doing {
		cond = append(cond, doOperator+d)
	}
	cond = append(cond, f.knowing...)
	q := `P\left(` + strings.Join(f.on, ",")
	if len(cond) > 0 {
		q += `\mid ` + strings.Join(cond, ",")
	}
	return q + `\right)`
}

// ToLatex renders "query = derivation". Query variables count as bound once
// so that variables summed again in the derivation get primed.
func (f *CausalFormula) ToLatex() string {
	occur := make(map[string]int)
	for _, set := range [][]string{f.on, f.doing, f.knowing} {
		for _, v := range set {
			occur[v] = 1
		}
	}
	return f.LatexQuery() + " = " + f.root.latex(occur)
}

// Eval evaluates the derivation against b
func (f *CausalFormula) Eval(b *bn.BayesNet) (*bn.Tensor, error) {
	return f.root.Eval(b)
}

// Copy duplicates the derivation tree; the model is shared
func (f *CausalFormula) Copy() *CausalFormula {
	return &CausalFormula{
		model:   f.model,
		root:    f.root.Copy(),
		on:      slices.Clone(f.on),
		doing:   slices.Clone(f.doing),
		knowing: slices.Clone(f.knowing),
	}
}
