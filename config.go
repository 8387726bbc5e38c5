package snap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable snapping constants. The pixel tolerances are UI
// constants and carry no meaning beyond their use here.
type Config struct {
	// SnapPixels is the tolerance for DistanceSnap queries.
	SnapPixels float64 `yaml:"snap_pixels"`
	// SelectPixels is the tolerance for DistanceSelect queries.
	SelectPixels float64 `yaml:"select_pixels"`
	// PriorityBandPixels is how much nearer a lower-priority point-on-line
	// candidate must be to displace a higher-priority one.
	PriorityBandPixels float64 `yaml:"priority_band_pixels"`
	// PlaneEpsilon is the relative tolerance of the in-front-of-face test.
	PlaneEpsilon float64 `yaml:"plane_epsilon"`
	AxesEnabled  bool    `yaml:"axes_enabled"`

	LineIndex      bool    `yaml:"line_index"`
	GridCellPixels float64 `yaml:"grid_cell_pixels"`

	Debug     bool   `yaml:"debug"`
	LogPrefix string `yaml:"log_prefix"`
}

func DefaultConfig() Config {
	return Config{
		SnapPixels:         10,
		SelectPixels:       4,
		PriorityBandPixels: 10,
		PlaneEpsilon:       1e-6,
		AxesEnabled:        true,
		LineIndex:          false,
		GridCellPixels:     32,
		LogPrefix:          "snap",
	}
}

// ParseConfig decodes YAML over the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SnapPixels <= 0 {
		return fmt.Errorf("snap_pixels must be > 0")
	}
	if c.SelectPixels <= 0 {
		return fmt.Errorf("select_pixels must be > 0")
	}
	if c.PriorityBandPixels < 0 {
		return fmt.Errorf("priority_band_pixels must be >= 0")
	}
	if c.PlaneEpsilon < 0 {
		return fmt.Errorf("plane_epsilon must be >= 0")
	}
	if c.LineIndex && c.GridCellPixels <= 0 {
		return fmt.Errorf("grid_cell_pixels must be > 0 when line_index is set")
	}
	return nil
}

// Tolerance returns the pixel radius for a distance class.
func (c Config) Tolerance(d DistanceClass) float64 {
	if d == DistanceSelect {
		return c.SelectPixels
	}
	return c.SnapPixels
}
