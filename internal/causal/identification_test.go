package causal

import (
	"errors"
	"slices"
	"testing"

	"gocausal/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyChain(t *testing.T) {
	b := fastBN(t, "A->B->C", 2)
	m := model(t, b, nil)

	root, err := IdentifyingIntervention(m, []string{"C"}, []string{"A"})
	require.NoError(t, err)
	want := "sum on B for\n" +
		"  *\n" +
		"    P(B|A)\n" +
		"    P(C|A,B)"
	assert.Equal(t, want, root.String())

	got, err := root.Eval(b)
	require.NoError(t, err)
	assert.True(t, got.IsClose(conditional(t, b, []string{"C"}, "A"), 1e-9))
}

func TestIdentifyWithoutIntervention(t *testing.T) {
	m := model(t, fastBN(t, "A->B->C", 2), nil)
	root, err := IdentifyingIntervention(m, []string{"C", "A"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "P(A,C)", root.String())
}

func TestIdentifyHedge(t *testing.T) {
	b := fastBN(t, "A->B", 2)
	m := model(t, b, []LatentVariable{{Name: "U", Children: []string{"A", "B"}}}, WithKeepArcs(true))

	_, err := IdentifyingIntervention(m, []string{"B"}, []string{"A"})
	var hedge *HedgeError
	require.True(t, errors.As(err, &hedge), "got %v", err)
	assert.Equal(t, []string{"A", "B"}, hedge.Observables)
	assert.Equal(t, []string{"B"}, hedge.Hedge)
	assert.Contains(t, hedge.Error(), "hedge")
}

func TestIdentifyBowWithoutArc(t *testing.T) {
	// the confounded arc is dropped by default: A has no effect on B
	m := model(t, fastBN(t, "A->B", 2), []LatentVariable{{Name: "U", Children: []string{"A", "B"}}})
	root, err := IdentifyingIntervention(m, []string{"B"}, []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, "P(B)", root.String())
}

func TestIdentifyFrontdoorStructure(t *testing.T) {
	full, m := frontdoorFixture(t)

	root, err := IdentifyingIntervention(m, []string{"Y"}, []string{"T"})
	require.NoError(t, err)
	want := "sum on M for\n" +
		"  *\n" +
		"    P(M|T)\n" +
		"    sum on T for\n" +
		"      *\n" +
		"        P(T)\n" +
		"        P(Y|M,T)"
	assert.Equal(t, want, root.String())

	f := NewCausalFormula(m, root, []string{"Y"}, []string{"T"}, nil)
	assert.Equal(t,
		`P\left(Y\mid \hookrightarrow\mkern-6.5mu T\right) = `+
			`\sum_{M}{P\left(M\mid T\right) \cdot \sum_{T'}{P\left(T'\right) \cdot P\left(Y\mid M,T'\right)}}`,
		f.ToLatex())

	got, err := f.Eval(m.ObservationalBN())
	require.NoError(t, err)
	assert.True(t, got.IsClose(interventional(t, full), 1e-9))
}

func TestIdentifyIsDeterministic(t *testing.T) {
	b := fastBN(t, "A->B->C;A->D->C;E->B;E->D", 4)
	m := model(t, b, []LatentVariable{{Name: "U", Children: []string{"A", "E"}}})

	first, err := IdentifyingIntervention(m, []string{"C"}, []string{"A"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := IdentifyingIntervention(m, []string{"C"}, []string{"A"})
		require.NoError(t, err)
		assert.Equal(t, first.String(), again.String())
	}
}

// leafVars lists the variables the probabilities of n refer to
func leafVars(n ASTNode) []string {
	switch t := n.(type) {
	case *JointProba:
		return t.Vars
	case *PosteriorProba:
		return append(slices.Clone(t.Vars), t.Knowing...)
	case *Sum:
		return leafVars(t.Term)
	case *Plus:
		return append(leafVars(t.Left), leafVars(t.Right)...)
	case *Minus:
		return append(leafVars(t.Left), leafVars(t.Right)...)
	case *Mult:
		return append(leafVars(t.Left), leafVars(t.Right)...)
	case *Div:
		return append(leafVars(t.Left), leafVars(t.Right)...)
	}
	return nil
}

func TestIdentifyStartsFromObservationalJoint(t *testing.T) {
	observed := []string{"V0", "V1", "V2", "V4", "V5"}
	arcs := []arc{{"V0", "V4"}, {"V1", "V2"}, {"V2", "V4"}, {"V4", "V5"}}
	latents := []LatentVariable{
		{Name: "L0", Children: []string{"V1", "V5"}},
		{Name: "L1", Children: []string{"V4", "V1"}},
	}
	_, m := confoundedFixture(t, observed, arcs, latents, 4)

	root, err := IdentifyingIntervention(m, []string{"V5"}, []string{"V4"})
	require.NoError(t, err)
	vars := leafVars(root)
	require.NotEmpty(t, vars)
	for _, v := range vars {
		assert.Contains(t, observed, v)
	}
}

func TestIdentifyRejectsMalformedQueries(t *testing.T) {
	m := model(t, fastBN(t, "A->B", 2), []LatentVariable{{Name: "U", Children: []string{"A", "B"}}})

	_, err := IdentifyingIntervention(m, []string{"B"}, []string{"B"})
	assert.True(t, errors.Is(err, core.ErrMalformedQuery))
	_, err = IdentifyingIntervention(m, nil, []string{"A"})
	assert.True(t, errors.Is(err, core.ErrMalformedQuery))
	_, err = IdentifyingIntervention(m, []string{"U"}, []string{"A"})
	assert.True(t, errors.Is(err, core.ErrMalformedQuery))
	_, err = IdentifyingIntervention(m, []string{"Q"}, []string{"A"})
	assert.True(t, errors.Is(err, core.ErrUnknownVariable))
}

func TestDoCalculusWithObservation(t *testing.T) {
	t.Run("observation exchanged for an intervention", func(t *testing.T) {
		b := fastBN(t, "X->Y<-Z", 6)
		m := model(t, b, nil)

		f, err := DoCalculusWithObservation(m, []string{"Y"}, []string{"X"}, []string{"Z"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Z"}, f.Knowing())
		_, isDiv := f.Root().(*Div)
		assert.False(t, isDiv)

		got, err := f.Eval(b)
		require.NoError(t, err)
		assert.True(t, got.IsClose(conditional(t, b, []string{"Y"}, "X", "Z"), 1e-9))
	})

	t.Run("quotient of two identifications", func(t *testing.T) {
		b := fastBN(t, "X->Y->Z", 6)
		m := model(t, b, nil)

		f, err := DoCalculusWithObservation(m, []string{"Y"}, []string{"X"}, []string{"Z"})
		require.NoError(t, err)
		_, isDiv := f.Root().(*Div)
		assert.True(t, isDiv)

		got, err := f.Eval(b)
		require.NoError(t, err)
		assert.True(t, got.IsClose(conditional(t, b, []string{"Y"}, "X", "Z"), 1e-9))
	})

	t.Run("no observation", func(t *testing.T) {
		m := model(t, fastBN(t, "X->Y", 6), nil)
		f, err := DoCalculusWithObservation(m, []string{"Y"}, []string{"X"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "P(Y|X)", f.String())
	})
}

func TestErrorsAreDistinct(t *testing.T) {
	var err error = &UnidentifiableError{On: []string{"Y"}, Doing: []string{"X"}, Reason: "no adjustment set"}
	var hedge *HedgeError
	assert.False(t, errors.As(err, &hedge))
	assert.Equal(t, "P(Y | do(X)) not identified: no adjustment set", err.Error())
}
