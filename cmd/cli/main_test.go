package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smokingModel = "../../internal/modeldef/testdata/smoking.yaml"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImpactCommand(t *testing.T) {
	out, err := run(t, "impact", smokingModel, "--on", "cancer", "--doing", "smoking")
	require.NoError(t, err)
	assert.Contains(t, out, "frontdoor {tar} found.")
	assert.Contains(t, out, `\hookrightarrow`)
}

func TestImpactCommandJSON(t *testing.T) {
	out, err := run(t, "impact", smokingModel, "--on", "cancer", "--doing", "smoking", "--value", "smoking=yes", "--json")
	require.NoError(t, err)

	var parsed struct {
		Explanation string    `json:"explanation"`
		Variables   []string  `json:"variables"`
		Values      []float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, []string{"cancer"}, parsed.Variables)
	require.Len(t, parsed.Values, 2)
	assert.InDelta(t, 1.0, parsed.Values[0]+parsed.Values[1], 1e-9)
}

func TestImpactCommandRejectsMalformedQuery(t *testing.T) {
	_, err := run(t, "impact", smokingModel, "--on", "cancer", "--doing", "genotype")
	assert.Error(t, err)
}

func TestIdentifyCommand(t *testing.T) {
	out, err := run(t, "identify", smokingModel, "--on", "cancer", "--doing", "smoking", "--tree")
	require.NoError(t, err)
	assert.Contains(t, out, "sum on")

	out, err = run(t, "--keep-arcs", "identify", smokingModel, "--on", "cancer", "--doing", "smoking")
	require.NoError(t, err)
	assert.Contains(t, out, "not identifiable")
}

func TestDoorCommands(t *testing.T) {
	out, err := run(t, "frontdoor", smokingModel, "smoking", "cancer")
	require.NoError(t, err)
	assert.Equal(t, "frontdoor {tar}\n", out)

	out, err = run(t, "backdoor", smokingModel, "smoking", "cancer")
	require.NoError(t, err)
	assert.Equal(t, "no backdoor set from smoking to cancer\n", out)

	_, err = run(t, "backdoor", smokingModel, "smoking", "lung")
	assert.Error(t, err)
}

func TestDSepCommand(t *testing.T) {
	out, err := run(t, "dsep", smokingModel, "-x", "smoking", "-y", "cancer", "-z", "tar")
	require.NoError(t, err)
	assert.Contains(t, out, "not d-separated")

	out, err = run(t, "dsep", smokingModel, "-x", "tar", "-y", "genotype", "-z", "smoking")
	require.NoError(t, err)
	assert.Contains(t, out, "are d-separated")
}

func TestDotCommand(t *testing.T) {
	out, err := run(t, "dot", smokingModel)
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "genotype")
}
