package modeldef

import (
	"errors"
	"testing"

	"gocausal/domain/core"
	"gocausal/internal/causal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileAndBuild(t *testing.T) {
	def, err := ParseFile("testdata/smoking.yaml")
	require.NoError(t, err)
	assert.Equal(t, "smoking", def.Name)
	require.Len(t, def.Latents, 1)

	m, err := def.Build(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"genotype"}, m.LatentNames())
	assert.False(t, m.ExistsArc("smoking", "cancer"), "confounded arc dropped")

	b := m.ObservationalBN()
	cancer, err := b.IDFromName("cancer")
	require.NoError(t, err)
	cpt := b.CPT(cancer)
	// declared as (cancer, tar, smoking); stored with parents in id order
	assert.Equal(t, []string{"cancer", "smoking", "tar"}, cpt.Names())
	assert.InDelta(t, 0.15, cpt.Get(map[string]int{"cancer": 1, "tar": 0, "smoking": 1}), 1e-12)
	assert.InDelta(t, 0.75, cpt.Get(map[string]int{"cancer": 1, "tar": 1, "smoking": 0}), 1e-12)

	impact, err := causal.CausalImpact(m, causal.Query{On: []string{"cancer"}, Doing: []string{"smoking"}})
	require.NoError(t, err)
	assert.Equal(t, "frontdoor {tar} found.", impact.Explanation)
}

func TestParseJSONWithStructure(t *testing.T) {
	doc := `{"name": "chain", "structure": "A->B->C", "seed": 3, "keep_arcs": true, ` +
		`"latents": [{"name": "U", "children": ["A", "B"]}], ` +
		`"causal_arcs": [{"from": "A", "to": "C"}]}`
	def, err := Parse([]byte(doc))
	require.NoError(t, err)

	m, err := def.Build(false)
	require.NoError(t, err)
	assert.True(t, m.ExistsArc("A", "B"), "keep_arcs from the definition wins")
	assert.True(t, m.ExistsArc("A", "C"))
	assert.Len(t, m.ObservationalBN().Arcs(), 2)
}

func TestBuildIsReproducibleWithSeed(t *testing.T) {
	def, err := Parse([]byte("name: s\nstructure: A->B\nseed: 42\n"))
	require.NoError(t, err)
	m1, err := def.Build(false)
	require.NoError(t, err)
	m2, err := def.Build(false)
	require.NoError(t, err)
	assert.Equal(t, m1.ObservationalBN().CPT(1).Values(), m2.ObservationalBN().CPT(1).Values())
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"no name", "structure: A->B"},
		{"no variable", "name: x"},
		{"unknown field", "name: x\nstructure: A->B\ncolour: red"},
		{"duplicate variable", "name: x\nvariables:\n  - name: A\n  - name: A"},
		{"self parent", "name: x\nvariables:\n  - name: A\n    parents: [A]"},
		{"labels and domain disagree", "name: x\nvariables:\n  - name: A\n    labels: [a, b]\n    domain: 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.True(t, errors.Is(err, ErrInvalidDefinition), "got %v", err)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"cycle", "name: x\nstructure: A->B\nvariables:\n  - name: A\n    parents: [B]", core.ErrCycle},
		{"unknown parent", "name: x\nvariables:\n  - name: A\n    parents: [Z]", core.ErrUnknownVariable},
		{"bad cpt", "name: x\nvariables:\n  - name: A\n    cpt: [0.3, 0.3]", core.ErrInvalidTable},
		{"partial parents", "name: x\nstructure: A->C<-B\nvariables:\n  - name: C\n    parents: [A]\n    cpt: [0.5, 0.5, 0.5, 0.5]", core.ErrInvalidTable},
		{"unknown latent child", "name: x\nstructure: A->B\nlatents:\n  - name: U\n    children: [Z]", core.ErrUnknownVariable},
		{"causal cycle", "name: x\nstructure: A->B\ncausal_arcs:\n  - from: B\n    to: A", core.ErrCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			_, err = def.Build(false)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
