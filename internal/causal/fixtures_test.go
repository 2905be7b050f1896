package causal

import (
	"math/rand"
	"slices"
	"strings"
	"testing"

	"gocausal/internal/bn"

	"github.com/stretchr/testify/require"
)

func fastBN(t *testing.T, structure string, seed int64) *bn.BayesNet {
	t.Helper()
	b, err := bn.Fast(structure, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return b
}

func model(t *testing.T, b *bn.BayesNet, latents []LatentVariable, opts ...Option) *CausalModel {
	t.Helper()
	m, err := NewCausalModel(b, latents, opts...)
	require.NoError(t, err)
	return m
}

// conditional returns P(of | given) from the brute-force joint of b
func conditional(t *testing.T, b *bn.BayesNet, of []string, given ...string) *bn.Tensor {
	t.Helper()
	joint := b.JointDistribution()
	num := joint.SumIn(append(append([]string{}, of...), given...)...)
	if len(given) == 0 {
		return num
	}
	return num.Div(joint.SumIn(given...))
}

// frontdoorFixture returns a network U->T->M->Y, U->Y with U observed, and
// the causal model over T, M, Y whose probabilities are the marginal of the
// former and where U is latent.
func frontdoorFixture(t *testing.T) (*bn.BayesNet, *CausalModel) {
	t.Helper()
	full := fastBN(t, "U->T->M->Y;U->Y", 5)
	tmy := full.JointDistribution().SumOut("U")

	obs, err := bn.Fast("T->M->Y;T->Y", nil)
	require.NoError(t, err)

	pT := tmy.SumIn("T")
	pM, err := tmy.SumIn("M", "T").Div(pT).Reorganize([]string{"M", "T"})
	require.NoError(t, err)
	pY, err := tmy.Div(tmy.SumOut("Y")).Reorganize([]string{"Y", "T", "M"})
	require.NoError(t, err)

	require.NoError(t, obs.FillCPT("T", pT.Values()))
	require.NoError(t, obs.FillCPT("M", pM.Values()))
	require.NoError(t, obs.FillCPT("Y", pY.Values()))

	return full, model(t, obs, []LatentVariable{{Name: "U", Children: []string{"T", "Y"}}})
}

// interventional computes P(Y | do(T)) in the full front-door network by
// truncated factorisation
func interventional(t *testing.T, full *bn.BayesNet) *bn.Tensor {
	t.Helper()
	cpt := func(name string) *bn.Tensor {
		id, err := full.IDFromName(name)
		require.NoError(t, err)
		return full.CPT(id)
	}
	return cpt("U").Mul(cpt("M")).Mul(cpt("Y")).SumOut("U", "M")
}

// arc is an observed cause and its effect
type arc struct{ from, to string }

// confoundedFixture builds the full network over observed (listed in
// topological order) and the latent variables, with random CPTs drawn from
// seed. It returns it with the causal model over observed: the probabilities
// are the exact marginal of the full network, held by a complete DAG in the
// order of observed, and the causal graph keeps only the arcs given.
func confoundedFixture(t *testing.T, observed []string, arcs []arc, latents []LatentVariable, seed int64) (*bn.BayesNet, *CausalModel) {
	t.Helper()
	parts := slices.Clone(observed)
	for _, a := range arcs {
		parts = append(parts, a.from+"->"+a.to)
	}
	var hidden []string
	for _, l := range latents {
		hidden = append(hidden, l.Name)
		for _, c := range l.Children {
			parts = append(parts, l.Name+"->"+c)
		}
	}
	full := fastBN(t, strings.Join(parts, ";"), seed)

	parts = []string{observed[0]}
	for j := range observed {
		for i := 0; i < j; i++ {
			parts = append(parts, observed[i]+"->"+observed[j])
		}
	}
	obs, err := bn.Fast(strings.Join(parts, ";"), nil)
	require.NoError(t, err)

	joint := full.JointDistribution().SumOut(hidden...)
	for j, name := range observed {
		cpt := joint.SumIn(observed[:j+1]...)
		if j > 0 {
			cpt = cpt.Div(joint.SumIn(observed[:j]...))
		}
		id, err := obs.IDFromName(name)
		require.NoError(t, err)
		cpt, err = cpt.Reorganize(obs.CPT(id).Names())
		require.NoError(t, err)
		require.NoError(t, obs.FillCPT(name, cpt.Values()))
	}

	m := model(t, obs, latents, WithKeepArcs(true))
	for j := range observed {
		for i := 0; i < j; i++ {
			if !slices.Contains(arcs, arc{observed[i], observed[j]}) {
				require.NoError(t, m.EraseCausalArc(observed[i], observed[j]))
			}
		}
	}
	return full, m
}

// truncated computes P(on, knowing | do(doing)) in full by truncated
// factorisation. The table spans on, doing and knowing.
func truncated(t *testing.T, full *bn.BayesNet, on, doing, knowing []string) *bn.Tensor {
	t.Helper()
	var prod *bn.Tensor
	for _, name := range full.AllNames() {
		if slices.Contains(doing, name) {
			continue
		}
		id, err := full.IDFromName(name)
		require.NoError(t, err)
		if prod == nil {
			prod = full.CPT(id)
		} else {
			prod = prod.Mul(full.CPT(id))
		}
	}
	res := prod.SumIn(slices.Concat(on, doing, knowing)...)
	if len(knowing) > 0 {
		res = res.Div(res.SumOut(on...))
	}
	for _, name := range doing {
		if !res.Has(name) {
			v, err := full.VariableByName(name)
			require.NoError(t, err)
			res = res.Mul(bn.Ones(v))
		}
	}
	return res
}
