package meshopt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfig_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := `
tuner:
  target_fps: 30
  stabilization_interval: 2s
batcher:
  vertex_limit: 32768
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, float64(30), cfg.Tuner.TargetFPS)
	assert.Equal(t, 2*time.Second, cfg.Tuner.StabilizationInterval)
	assert.Equal(t, 32768, cfg.Batcher.VertexLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched fields keep their defaults.
	assert.Equal(t, 0.10, cfg.Tuner.AdjustmentRate)
	assert.Equal(t, 90, cfg.WindowSize)
	assert.Equal(t, 4096, cfg.MaxAtlasSize)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tuner: ["), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate_NamesOffendingField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PipelineConfig)
		field  string
	}{
		{"zero target fps", func(c *PipelineConfig) { c.Tuner.TargetFPS = 0 }, "tuner.target_fps"},
		{"negative tolerance", func(c *PipelineConfig) { c.Tuner.Tolerance = -1 }, "tuner.tolerance"},
		{"rate too high", func(c *PipelineConfig) { c.Tuner.AdjustmentRate = 1.5 }, "tuner.adjustment_rate"},
		{"zero min scale", func(c *PipelineConfig) { c.Tuner.MinScale = 0 }, "tuner.min_scale"},
		{"inverted scale bounds", func(c *PipelineConfig) { c.Tuner.MinScale = 3 }, "tuner.min_scale"},
		{"zero interval", func(c *PipelineConfig) { c.Tuner.StabilizationInterval = 0 }, "tuner.stabilization_interval"},
		{"zero levels", func(c *PipelineConfig) { c.Simplifier.LevelCount = 0 }, "simplifier.level_count"},
		{"reduction out of range", func(c *PipelineConfig) { c.Simplifier.ReductionFactor = 1 }, "simplifier.reduction_factor"},
		{"zero min triangles", func(c *PipelineConfig) { c.Simplifier.MinTriangles = 0 }, "simplifier.min_triangles"},
		{"zero vertex limit", func(c *PipelineConfig) { c.Batcher.VertexLimit = 0 }, "batcher.vertex_limit"},
		{"zero instance limit", func(c *PipelineConfig) { c.Batcher.InstanceLimit = 0 }, "batcher.instance_limit"},
		{"zero window", func(c *PipelineConfig) { c.WindowSize = 0 }, "metrics_window"},
		{"negative budget", func(c *PipelineConfig) { c.MemoryBudget = -1 }, "memory_budget_bytes"},
		{"non power-of-two atlas", func(c *PipelineConfig) { c.MaxAtlasSize = 1000 }, "max_atlas_size"},
		{"negative padding", func(c *PipelineConfig) { c.PaddingPx = -1 }, "padding_px"},
		{"zero visible distance", func(c *PipelineConfig) { c.VisibleDistance = 0 }, "visible_distance"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var invalid *InvalidConfigError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tc.field, invalid.Field)
		})
	}
}

func TestLoadConfig_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_atlas_size: 999\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	var invalid *InvalidConfigError
	assert.True(t, errors.As(err, &invalid))
}
