package evo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHyperparametersRoundTrip(t *testing.T) {
	hp := DefaultHyperparameters()
	hp.TopAgentCount = 7
	hp.BiasMutationMagnitude = 0.25
	hp.NewLayerFunction = "sigmoid"
	hp.ResetFitness = true

	for _, name := range []string{"hp.xml", "hp.ini"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveHyperparameters(hp, path))

			loaded, err := LoadHyperparameters(path)
			require.NoError(t, err)
			loaded.XMLName = hp.XMLName
			require.Equal(t, hp, loaded)
		})
	}
}

func TestHyperparametersXMLUsesAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hyperparameters.xml")
	require.NoError(t, SaveHyperparameters(DefaultHyperparameters(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.True(t, strings.HasPrefix(text, "<?xml"))
	require.Contains(t, text, "<Hyperparameters ")
	require.Contains(t, text, `topAgentCount="10"`)
	require.Contains(t, text, `newLayerFunction="tanh"`)
	require.NotContains(t, text, "resetFitness")
}

func TestLoadHyperparametersKeepsDefaultsForMissingAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.xml")
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<Hyperparameters topAgentCount="4" mutationCount="2" newLayerFunction="basicAdd"/>`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	hp, err := LoadHyperparameters(path)
	require.NoError(t, err)
	want := DefaultHyperparameters()
	require.Equal(t, 4, hp.TopAgentCount)
	require.Equal(t, 2, hp.MutationCount)
	require.Equal(t, "basicAdd", hp.NewLayerFunction)
	require.Equal(t, want.WeightMutationRate, hp.WeightMutationRate)
	require.False(t, hp.ResetFitness)
}

func TestLoadHyperparametersINISection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hp.ini")
	doc := "[Hyperparameters]\ntopAgentCount = 3\nlayerMutationRate = 0.5\nresetFitness = true\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	hp, err := LoadHyperparameters(path)
	require.NoError(t, err)
	require.Equal(t, 3, hp.TopAgentCount)
	require.Equal(t, 0.5, hp.LayerMutationRate)
	require.True(t, hp.ResetFitness)
}

func TestLoadHyperparametersRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "rate", doc: `<Hyperparameters nodeMutationRate="1.5"/>`},
		{name: "top", doc: `<Hyperparameters topAgentCount="0"/>`},
		{name: "function", doc: `<Hyperparameters newLayerFunction="softmax"/>`},
		{name: "magnitude", doc: `<Hyperparameters weightMutationMagnitude="-1"/>`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hp.xml")
			require.NoError(t, os.WriteFile(path, []byte(tc.doc), 0o644))
			_, err := LoadHyperparameters(path)
			require.ErrorIs(t, err, ErrInvalidHyperparameters)
		})
	}
}

func TestLoadHyperparametersMissingFile(t *testing.T) {
	_, err := LoadHyperparameters(filepath.Join(t.TempDir(), "absent.xml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
