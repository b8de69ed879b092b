package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(filepath.Join("testdata", "assets.yaml"))
	require.NoError(t, err)

	clip, err := c.AudioClip("door_slam")
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, clip.Length)

	tex, err := c.Texture("alice_smile")
	require.NoError(t, err)
	require.Equal(t, "portraits/alice_smile.png", tex.Path)

	ctrl, err := c.AnimatorController("villager")
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, ctrl.Clips["Wave"])

	require.Equal(t, []string{"door_slam", "thunder"}, c.Names()["audio"])
}

func TestCatalogMisses(t *testing.T) {
	c := NewCatalog()

	_, err := c.AudioClip("nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = c.Texture("nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = c.AnimatorController("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing audio name", "audio:\n  - length: 1s\n"},
		{"negative length", "audio:\n  - name: a\n    length: -1s\n"},
		{"missing texture name", "textures:\n  - path: a.png\n"},
		{"missing controller name", "controllers:\n  - clips: {}\n"},
		{"not yaml", "audio: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadCatalog(" ")
	require.Error(t, err)
}
