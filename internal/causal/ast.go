package causal

import (
	"fmt"
	"slices"
	"strings"

	"gocausal/internal"
	"gocausal/internal/bn"
)

const dumpIndent = "  "

// ASTNode is a node of a causal formula. The set of implementations is
// closed: JointProba, PosteriorProba, Sum, Plus, Minus, Mult and Div.
// Eval never modifies the tree.
type ASTNode interface {
	fmt.Stringer
	// Dump renders the subtree as an indented tree, each line starting with prefix
	Dump(prefix string) string
	ToLatex() string
	Copy() ASTNode
	Eval(b *bn.BayesNet) (*bn.Tensor, error)

	// latex renders the node given how many times each name is bound by an
	// enclosing sum or by the query
	latex(occur map[string]int) string
}

func trace(verbose bool, format string, args ...interface{}) {
	if verbose {
		internal.DefaultLogger.Debug(format, args...)
	}
}

// latexName primes a name once per binding beyond the first
func latexName(name string, occur map[string]int) string {
	if n := occur[name]; n > 1 {
		return name + strings.Repeat("'", n-1)
	}
	return name
}

func latexNames(names []string, occur map[string]int) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = latexName(n, occur)
	}
	return strings.Join(out, ",")
}

// JointProba is P(Vars)
type JointProba struct {
	Vars    []string
	Verbose bool
}

// NewJointProba builds P(vars), vars sorted by name. Constructors build quiet
// nodes; see Verbosely and SetVerbose for tracing.
func NewJointProba(vars []string) *JointProba {
	v := slices.Clone(vars)
	slices.Sort(v)
	return &JointProba{Vars: v}
}

func (j *JointProba) String() string { return j.Dump("") }

func (j *JointProba) Dump(prefix string) string {
	return prefix + "P(" + strings.Join(j.Vars, ",") + ")"
}

func (j *JointProba) ToLatex() string { return j.latex(map[string]int{}) }

func (j *JointProba) latex(occur map[string]int) string {
	return `P\left(` + latexNames(j.Vars, occur) + `\right)`
}

func (j *JointProba) Copy() ASTNode {
	return &JointProba{Vars: slices.Clone(j.Vars), Verbose: j.Verbose}
}

// Eval computes the joint marginal by exact inference, axes in Vars order
func (j *JointProba) Eval(b *bn.BayesNet) (*bn.Tensor, error) {
	trace(j.Verbose, "EVAL %s", j)
	ie := bn.NewExactInference(b)
	if len(j.Vars) == 1 {
		if err := ie.AddTarget(j.Vars[0]); err != nil {
			return nil, err
		}
		return ie.Posterior(j.Vars[0])
	}
	if err := ie.AddJointTarget(j.Vars...); err != nil {
		return nil, err
	}
	return ie.JointPosterior(j.Vars...)
}

// PosteriorProba is P(Vars | Knowing)
type PosteriorProba struct {
	Vars    []string
	Knowing []string
	Verbose bool
}

// NewPosteriorProba builds P(vars | knowing), both sorted by name. An empty
// knowing set gives a plain joint.
func NewPosteriorProba(vars, knowing []string) ASTNode {
	if len(knowing) == 0 {
		return NewJointProba(vars)
	}
	v, k := slices.Clone(vars), slices.Clone(knowing)
	slices.Sort(v)
	slices.Sort(k)
	return &PosteriorProba{Vars: v, Knowing: k}
}

func (p *PosteriorProba) String() string { return p.Dump("") }

func (p *PosteriorProba) Dump(prefix string) string {
	return prefix + "P(" + strings.Join(p.Vars, ",") + "|" + strings.Join(p.Knowing, ",") + ")"
}

func (p *PosteriorProba) ToLatex() string { return p.latex(map[string]int{}) }

func (p *PosteriorProba) latex(occur map[string]int) string {
	return `P\left(` + latexNames(p.Vars, occur) + `\mid ` + latexNames(p.Knowing, occur) + `\right)`
}

func (p *PosteriorProba) Copy() ASTNode {
	return &PosteriorProba{Vars: slices.Clone(p.Vars), Knowing: slices.Clone(p.Knowing), Verbose: p.Verbose}
}

// Eval first drops the conditioning variables b says are irrelevant. A
// single variable conditioned exactly on its parents is read from its CPT;
// otherwise the quotient of two joints is computed.
func (p *PosteriorProba) Eval(b *bn.BayesNet) (*bn.Tensor, error) {
	trace(p.Verbose, "EVAL %s", p)
	vars, err := b.NodeSet(p.Vars)
	if err != nil {
		return nil, err
	}
	knowing, err := b.NodeSet(p.Knowing)
	if err != nil {
		return nil, err
	}
	cond := b.MinimalCondSet(vars, knowing)

	if len(p.Vars) == 1 {
		id, _ := b.IDFromName(p.Vars[0])
		if cond.Equal(b.Parents(id)) {
			trace(p.Verbose, "  read from the CPT of %s", p.Vars[0])
			return b.CPT(id), nil
		}
	}
	if cond.IsEmpty() {
		return NewJointProba(p.Vars).Eval(b)
	}

	condNames := b.Names(cond)
	all := append(slices.Clone(p.Vars), condNames...)
	ie := bn.NewExactInference(b)
	if err := ie.AddJointTarget(all...); err != nil {
		return nil, err
	}
	if err := ie.AddJointTarget(condNames...); err != nil {
		return nil, err
	}
	num, err := ie.JointPosterior(all...)
	if err != nil {
		return nil, err
	}
	den, err := ie.JointPosterior(condNames...)
	if err != nil {
		return nil, err
	}
	return num.Div(den), nil
}

// Sum is the sum over Var of Term. Several sums are chained with NewSum.
type Sum struct {
	Var     string
	Term    ASTNode
	Verbose bool
}

// NewSum builds a right-nested chain of sums over vars. With no variable the
// term itself is returned. The sums trace their evaluation when the term does.
func NewSum(vars []string, term ASTNode) ASTNode {
	verbose := isVerbose(term)
	node := term
	for i := len(vars) - 1; i >= 0; i-- {
		node = &Sum{Var: vars[i], Term: node, Verbose: verbose}
	}
	return node
}

// peelSums collects the variables of directly nested sums and returns the
// first non-sum term below them
func peelSums(s *Sum) ([]string, ASTNode) {
	var vars []string
	var node ASTNode = s
	for {
		sum, ok := node.(*Sum)
		if !ok {
			return vars, node
		}
		vars = append(vars, sum.Var)
		node = sum.Term
	}
}

func (s *Sum) String() string { return s.Dump("") }

func (s *Sum) Dump(prefix string) string {
	vars, term := peelSums(s)
	return prefix + "sum on " + strings.Join(vars, ",") + " for\n" + term.Dump(prefix+dumpIndent)
}

func (s *Sum) ToLatex() string { return s.latex(map[string]int{}) }

func (s *Sum) latex(occur map[string]int) string {
	vars, term := peelSums(s)
	for _, v := range vars {
		occur[v]++
	}
	res := `\sum_{` + latexNames(vars, occur) + `}{` + term.latex(occur) + `}`
	for _, v := range vars {
		occur[v]--
	}
	return res
}

func (s *Sum) Copy() ASTNode {
	return &Sum{Var: s.Var, Term: s.Term.Copy(), Verbose: s.Verbose}
}

// Eval sums the evaluated term over every peeled variable. A variable the
// table does not carry is skipped.
func (s *Sum) Eval(b *bn.BayesNet) (*bn.Tensor, error) {
	vars, term := peelSums(s)
	trace(s.Verbose, "EVAL sum on %s", strings.Join(vars, ","))
	t, err := term.Eval(b)
	if err != nil {
		return nil, err
	}
	return t.SumOut(vars...), nil
}

// Plus is Left + Right
type Plus struct {
	Left, Right ASTNode
	Verbose     bool
}

// Minus is Left - Right
type Minus struct {
	Left, Right ASTNode
	Verbose     bool
}

// Mult is Left * Right
type Mult struct {
	Left, Right ASTNode
	Verbose     bool
}

// Div is Left / Right
type Div struct {
	Left, Right ASTNode
	Verbose     bool
}

func dumpBinary(op string, l, r ASTNode, prefix string) string {
	return prefix + op + "\n" + l.Dump(prefix+dumpIndent) + "\n" + r.Dump(prefix+dumpIndent)
}

func evalBinary(verbose bool, op string, l, r ASTNode, b *bn.BayesNet, f func(x, y *bn.Tensor) *bn.Tensor) (*bn.Tensor, error) {
	trace(verbose, "EVAL operation %s", op)
	lt, err := l.Eval(b)
	if err != nil {
		return nil, err
	}
	rt, err := r.Eval(b)
	if err != nil {
		return nil, err
	}
	return f(lt, rt), nil
}

func (n *Plus) String() string            { return n.Dump("") }
func (n *Plus) Dump(prefix string) string { return dumpBinary("+", n.Left, n.Right, prefix) }
func (n *Plus) ToLatex() string           { return n.latex(map[string]int{}) }
func (n *Plus) latex(occur map[string]int) string {
	return `\left(` + n.Left.latex(occur) + `+` + n.Right.latex(occur) + `\right)`
}
func (n *Plus) Copy() ASTNode {
	return &Plus{Left: n.Left.Copy(), Right: n.Right.Copy(), Verbose: n.Verbose}
}
func (n *Plus) Eval(b *bn.BayesNet) (*bn.Tensor, error) {
	return evalBinary(n.Verbose, "+", n.Left, n.Right, b, (*bn.Tensor).Add)
}

func (n *Minus) String() string            { return n.Dump("") }
func (n *Minus) Dump(prefix string) string { return dumpBinary("-", n.Left, n.Right, prefix) }
func (n *Minus) ToLatex() string           { return n.latex(map[string]int{}) }
func (n *Minus) latex(occur map[string]int) string {
	return `\left(` + n.Left.latex(occur) + `-` + n.Right.latex(occur) + `\right)`
}
func (n *Minus) Copy() ASTNode {
	return &Minus{Left: n.Left.Copy(), Right: n.Right.Copy(), Verbose: n.Verbose}
}
func (n *Minus) Eval(b *bn.BayesNet) (*bn.Tensor, error) {
	return evalBinary(n.Verbose, "-", n.Left, n.Right, b, (*bn.Tensor).Sub)
}

func (n *Mult) String() string            { return n.Dump("") }
func (n *Mult) Dump(prefix string) string { return dumpBinary("*", n.Left, n.Right, prefix) }
func (n *Mult) ToLatex() string           { return n.latex(map[string]int{}) }
func (n *Mult) latex(occur map[string]int) string {
	return n.Left.latex(occur) + ` \cdot ` + n.Right.latex(occur)
}
func (n *Mult) Copy() ASTNode {
	return &Mult{Left: n.Left.Copy(), Right: n.Right.Copy(), Verbose: n.Verbose}
}
func (n *Mult) Eval(b *bn.BayesNet) (*bn.Tensor, error) {
	return evalBinary(n.Verbose, "*", n.Left, n.Right, b, (*bn.Tensor).Mul)
}

func (n *Div) String() string            { return n.Dump("") }
func (n *Div) Dump(prefix string) string { return dumpBinary("/", n.Left, n.Right, prefix) }
func (n *Div) ToLatex() string           { return n.latex(map[string]int{}) }
func (n *Div) latex(occur map[string]int) string {
	return `\frac{` + n.Left.latex(occur) + `}{` + n.Right.latex(occur) + `}`
}
func (n *Div) Copy() ASTNode {
	return &Div{Left: n.Left.Copy(), Right: n.Right.Copy(), Verbose: n.Verbose}
}
func (n *Div) Eval(b *bn.BayesNet) (*bn.Tensor, error) {
	return evalBinary(n.Verbose, "/", n.Left, n.Right, b, (*bn.Tensor).Div)
}

// productOf multiplies terms as a right-nested chain
func productOf(terms []ASTNode) ASTNode {
	if len(terms) == 1 {
		return terms[0]
	}
	return &Mult{Left: terms[0], Right: productOf(terms[1:])}
}

// Verbosely switches tracing on for the whole tree and returns it, to wrap a
// constructor call.
func Verbosely[N ASTNode](n N) N {
	SetVerbose(n, true)
	return n
}

func isVerbose(n ASTNode) bool {
	switch t := n.(type) {
	case *JointProba:
		return t.Verbose
	case *PosteriorProba:
		return t.Verbose
	case *Sum:
		return t.Verbose
	case *Plus:
		return t.Verbose
	case *Minus:
		return t.Verbose
	case *Mult:
		return t.Verbose
	case *Div:
		return t.Verbose
	}
	return false
}

// SetVerbose switches evaluation tracing on or off for the whole tree
func SetVerbose(n ASTNode, verbose bool) {
	switch t := n.(type) {
	case *JointProba:
		t.Verbose = verbose
	case *PosteriorProba:
		t.Verbose = verbose
	case *Sum:
		t.Verbose = verbose
		SetVerbose(t.Term, verbose)
	case *Plus:
		t.Verbose = verbose
		SetVerbose(t.Left, verbose)
		SetVerbose(t.Right, verbose)
	case *Minus:
		t.Verbose = verbose
		SetVerbose(t.Left, verbose)
		SetVerbose(t.Right, verbose)
	case *Mult:
		t.Verbose = verbose
		SetVerbose(t.Left, verbose)
		SetVerbose(t.Right, verbose)
	case *Div:
		t.Verbose = verbose
		SetVerbose(t.Left, verbose)
		SetVerbose(t.Right, verbose)
	}
}
