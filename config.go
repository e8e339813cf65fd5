package meshopt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InvalidConfigError names the configuration field that failed startup
// validation. Fatal: the pipeline refuses to start with an invalid config.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

// PipelineConfig is the static configuration block for the whole pipeline.
// Load merges file values over defaults; Validate must pass before the app
// is built.
type PipelineConfig struct {
	Tuner           TunerConfig      `yaml:"tuner"`
	Simplifier      SimplifierConfig `yaml:"simplifier"`
	Batcher         BatcherConfig    `yaml:"batcher"`
	WindowSize      int              `yaml:"metrics_window"`
	MemoryBudget    int              `yaml:"memory_budget_bytes"`
	MaxAtlasSize    int              `yaml:"max_atlas_size"`
	PaddingPx       int              `yaml:"padding_px"`
	VisibleDistance float32          `yaml:"visible_distance"`
	Logging         struct {
		Level string        `yaml:"level"`
		File  LogFileConfig `yaml:"file"`
	} `yaml:"logging"`
}

// DefaultConfig returns the tuned defaults the shipped content assumes.
func DefaultConfig() *PipelineConfig {
	cfg := &PipelineConfig{
		Tuner:           DefaultTunerConfig(),
		Simplifier:      DefaultSimplifierConfig(),
		Batcher:         DefaultBatcherConfig(),
		WindowSize:      90,
		MemoryBudget:    256 * 1024 * 1024,
		MaxAtlasSize:    4096,
		PaddingPx:       2,
		VisibleDistance: 500,
	}
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads a YAML config file, merging its values over the defaults,
// and validates the result.
func LoadConfig(path string) (*PipelineConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every recognized option and reports the first offending
// field.
func (cfg *PipelineConfig) Validate() error {
	t := cfg.Tuner
	if t.TargetFPS <= 0 {
		return &InvalidConfigError{Field: "tuner.target_fps", Reason: fmt.Sprintf("must be > 0, got %v", t.TargetFPS)}
	}
	if t.Tolerance < 0 {
		return &InvalidConfigError{Field: "tuner.tolerance", Reason: fmt.Sprintf("must be >= 0, got %v", t.Tolerance)}
	}
	if t.AdjustmentRate <= 0 || t.AdjustmentRate >= 1 {
		return &InvalidConfigError{Field: "tuner.adjustment_rate", Reason: fmt.Sprintf("must be in (0,1), got %v", t.AdjustmentRate)}
	}
	if t.MinScale <= 0 {
		return &InvalidConfigError{Field: "tuner.min_scale", Reason: fmt.Sprintf("must be > 0, got %v", t.MinScale)}
	}
	if t.MinScale >= t.MaxScale {
		return &InvalidConfigError{Field: "tuner.min_scale", Reason: fmt.Sprintf("must be below max_scale, got min %v max %v", t.MinScale, t.MaxScale)}
	}
	if t.StabilizationInterval <= 0 {
		return &InvalidConfigError{Field: "tuner.stabilization_interval", Reason: fmt.Sprintf("must be > 0, got %v", t.StabilizationInterval)}
	}

	s := cfg.Simplifier
	if s.LevelCount < 1 {
		return &InvalidConfigError{Field: "simplifier.level_count", Reason: fmt.Sprintf("must be >= 1, got %d", s.LevelCount)}
	}
	if s.ReductionFactor <= 0 || s.ReductionFactor >= 1 {
		return &InvalidConfigError{Field: "simplifier.reduction_factor", Reason: fmt.Sprintf("must be in (0,1), got %v", s.ReductionFactor)}
	}
	if s.MinTriangles < 1 {
		return &InvalidConfigError{Field: "simplifier.min_triangles", Reason: fmt.Sprintf("must be >= 1, got %d", s.MinTriangles)}
	}

	b := cfg.Batcher
	if b.VertexLimit <= 0 {
		return &InvalidConfigError{Field: "batcher.vertex_limit", Reason: fmt.Sprintf("must be > 0, got %d", b.VertexLimit)}
	}
	if b.InstanceLimit <= 0 {
		return &InvalidConfigError{Field: "batcher.instance_limit", Reason: fmt.Sprintf("must be > 0, got %d", b.InstanceLimit)}
	}

	if cfg.WindowSize < 1 {
		return &InvalidConfigError{Field: "metrics_window", Reason: fmt.Sprintf("must be >= 1, got %d", cfg.WindowSize)}
	}
	if cfg.MemoryBudget < 0 {
		return &InvalidConfigError{Field: "memory_budget_bytes", Reason: fmt.Sprintf("must be >= 0, got %d", cfg.MemoryBudget)}
	}
	if !isPowerOfTwo(cfg.MaxAtlasSize) {
		return &InvalidConfigError{Field: "max_atlas_size", Reason: fmt.Sprintf("must be a power of two, got %d", cfg.MaxAtlasSize)}
	}
	if cfg.PaddingPx < 0 {
		return &InvalidConfigError{Field: "padding_px", Reason: fmt.Sprintf("must be >= 0, got %d", cfg.PaddingPx)}
	}
	if cfg.VisibleDistance <= 0 {
		return &InvalidConfigError{Field: "visible_distance", Reason: fmt.Sprintf("must be > 0, got %v", cfg.VisibleDistance)}
	}
	return nil
}
