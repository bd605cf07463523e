package nn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeFilename(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want string
	}{
		{name: "model", ext: "bin", want: "model.bin"},
		{name: "model.bin", ext: ".bin", want: "model.bin"},
		{name: "model.txt", ext: "bin", want: "model.bin"},
		{name: "models/champ.v2", ext: ".bin", want: "models/champ.bin"},
		{name: "models.d/champ", ext: ".bin", want: "models.d/champ.bin"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, MakeFilename(tc.name, tc.ext))
		})
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	net := buildLayered(t, DefaultCatalog(), []int{3, 2, 2}, Sigmoid)
	randomize(net, 5)

	path, err := SaveFile(net, filepath.Join(dir, "team", "champion.xml"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "team", "champion.bin"), path)

	loaded, err := LoadFile(DefaultCatalog(), filepath.Join(dir, "team", "champion"))
	require.NoError(t, err)
	input := []float64{1, 0, -1}
	require.Equal(t, net.Evaluate(input), loaded.Evaluate(input))

	names, err := ListModels(filepath.Join(dir, "team"))
	require.NoError(t, err)
	require.Equal(t, []string{"champion"}, names)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(DefaultCatalog(), filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
