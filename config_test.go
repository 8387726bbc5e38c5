package snap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_OverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
snap_pixels: 12
axes_enabled: false
line_index: true
`))
	require.NoError(t, err)
	assert.Equal(t, 12.0, cfg.SnapPixels)
	assert.False(t, cfg.AxesEnabled)
	assert.True(t, cfg.LineIndex)
	assert.Equal(t, DefaultConfig().SelectPixels, cfg.SelectPixels)
	assert.Equal(t, DefaultConfig().GridCellPixels, cfg.GridCellPixels)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte("snap_pixels: [1, 2]"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("select_pixels: -1"))
	assert.ErrorContains(t, err, "select_pixels")

	_, err = ParseConfig([]byte("line_index: true\ngrid_cell_pixels: 0"))
	assert.ErrorContains(t, err, "grid_cell_pixels")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("priority_band_pixels: 0\ndebug: true\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.PriorityBandPixels)
	assert.True(t, cfg.Debug)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Tolerance(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.SnapPixels, cfg.Tolerance(DistanceSnap))
	assert.Equal(t, cfg.SelectPixels, cfg.Tolerance(DistanceSelect))
}
