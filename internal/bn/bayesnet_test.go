package bn

import (
	"errors"
	"math/rand"
	"testing"

	"gocausal/domain/core"
	"gocausal/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastStructure(t *testing.T) {
	b, err := Fast("A->B<-C;C->D[3];E{low|high}->B", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, b.AllNames())
	d, err := b.VariableByName("D")
	require.NoError(t, err)
	assert.Equal(t, 3, d.Domain())
	e, _ := b.VariableByName("E")
	assert.Equal(t, []string{"low", "high"}, e.Labels)

	bid, _ := b.IDFromName("B")
	assert.Equal(t, []string{"A", "C", "E"}, b.Names(b.Parents(bid)))
	assert.InDelta(t, 1.0/2, b.CPT(bid).Values()[0], 1e-12)
}

func TestFastErrors(t *testing.T) {
	_, err := Fast("A->B;B->A", nil)
	assert.True(t, errors.Is(err, core.ErrCycle))

	_, err = Fast("A->", nil)
	assert.Error(t, err)

	_, err = Fast("A[0]", nil)
	assert.Error(t, err)
}

func TestFillCPTValidation(t *testing.T) {
	b, err := Fast("A->B", nil)
	require.NoError(t, err)

	require.NoError(t, b.FillCPT("B", []float64{0.9, 0.1, 0.2, 0.8}))
	assert.Error(t, b.FillCPT("B", []float64{0.9, 0.2, 0.2, 0.8}))
	assert.Error(t, b.FillCPT("B", []float64{1}))
	assert.True(t, core.IsNotFoundError(b.FillCPT("Z", nil)))

	bid, _ := b.IDFromName("B")
	assert.Equal(t, []float64{0.9, 0.1, 0.2, 0.8}, b.CPT(bid).Values())
}

func TestAddAndEraseArcs(t *testing.T) {
	b := New("test")
	_, err := b.Add(NewVariable("X", 2))
	require.NoError(t, err)
	_, err = b.Add(NewVariable("X", 2))
	assert.True(t, errors.Is(err, core.ErrDuplicateVariable))
	_, err = b.Add(NewVariable("Y", 2))
	require.NoError(t, err)

	require.NoError(t, b.AddArc("X", "Y"))
	yid, _ := b.IDFromName("Y")
	assert.Equal(t, 4, b.CPT(yid).Size())

	require.NoError(t, b.EraseArc("X", "Y"))
	assert.Equal(t, 2, b.CPT(yid).Size())
	assert.Empty(t, b.Arcs())
}

func TestInferenceMatchesBruteForce(t *testing.T) {
	b, err := Fast("A->B->C;A->D<-C;E[3]->C", rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	joint := b.JointDistribution()

	ie := NewExactInference(b)
	require.NoError(t, ie.AddJointTarget("D", "A"))
	require.NoError(t, ie.AddTarget("C"))
	require.NoError(t, ie.MakeInference())

	da, err := ie.JointPosterior("D", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "A"}, da.Names())
	assert.True(t, da.IsClose(joint.SumIn("A", "D"), 1e-9))

	c, err := ie.Posterior("C")
	require.NoError(t, err)
	assert.True(t, c.IsClose(joint.SumIn("C"), 1e-9))
	assert.InDelta(t, 1.0, c.Sum(), 1e-9)

	_, err = ie.JointPosterior("B")
	assert.True(t, errors.Is(err, ErrNotTarget))
}

func TestMinimalCondSet(t *testing.T) {
	b, err := Fast("A->B->C;D->C;C->E", nil)
	require.NoError(t, err)
	ids := func(names ...string) graph.NodeSet {
		s, err := b.NodeSet(names)
		require.NoError(t, err)
		return s
	}

	got := b.MinimalCondSet(ids("C"), ids("A", "B", "D"))
	assert.Equal(t, []string{"B", "D"}, b.Names(got))

	got = b.MinimalCondSet(ids("A"), ids("B", "C", "E"))
	assert.Equal(t, []string{"B"}, b.Names(got))
}

func TestCloneIsIndependent(t *testing.T) {
	b, err := Fast("A->B", rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	before := b.CPT(0).Values()

	c := b.Clone()
	require.NoError(t, c.FillCPT("A", []float64{0.5, 0.5}))
	require.NoError(t, c.EraseArc("A", "B"))

	assert.Equal(t, before, b.CPT(0).Values())
	assert.Len(t, b.Arcs(), 1)
	assert.Empty(t, c.Arcs())
}
