package meshopt

import (
	"math"
	"sync"
	"time"
)

// PerformanceSample is one recorded frame.
type PerformanceSample struct {
	Timestamp time.Duration // simulation time at which the frame ended
	Duration  time.Duration
}

// PerformanceMetrics keeps a fixed-capacity rolling window of frame samples
// and derives a smoothed frame rate from it. The smoothing is deliberate: the
// tuner reads this value and an instantaneous per-frame fps would make the
// controller chase noise.
type PerformanceMetrics struct {
	samples []PerformanceSample
	head    int
	count   int
	total   time.Duration
}

// NewPerformanceMetrics creates a window of the given capacity. Capacities
// outside [1, 1024] are clamped.
func NewPerformanceMetrics(capacity int) *PerformanceMetrics {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > 1024 {
		capacity = 1024
	}
	return &PerformanceMetrics{samples: make([]PerformanceSample, capacity)}
}

// Record appends a frame sample, evicting the oldest when the window is full.
// Negative durations are clamped to zero; the sample still occupies a slot so
// the window length stays meaningful.
func (m *PerformanceMetrics) Record(at, frameDuration time.Duration) {
	if frameDuration < 0 {
		frameDuration = 0
	}
	if m.count == len(m.samples) {
		m.total -= m.samples[m.head].Duration
	} else {
		m.count++
	}
	m.samples[m.head] = PerformanceSample{Timestamp: at, Duration: frameDuration}
	m.head = (m.head + 1) % len(m.samples)
	m.total += frameDuration
}

// CurrentFPS is the window-averaged frame rate: sample count divided by the
// summed frame durations. Zero until at least one non-zero duration lands.
func (m *PerformanceMetrics) CurrentFPS() float64 {
	if m.count == 0 || m.total <= 0 {
		return 0
	}
	return float64(m.count) / m.total.Seconds()
}

func (m *PerformanceMetrics) SampleCount() int { return m.count }

// frameStats returns average, minimum and maximum frame duration over the
// window.
func (m *PerformanceMetrics) frameStats() (avg, min, max time.Duration) {
	if m.count == 0 {
		return 0, 0, 0
	}
	min = time.Duration(math.MaxInt64)
	for i := 0; i < m.count; i++ {
		d := m.samples[i].Duration
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return m.total / time.Duration(m.count), min, max
}

// TunerConfig are the control parameters for the adaptive distance-scale
// controller. Validated by PipelineConfig.Validate before the pipeline
// starts.
type TunerConfig struct {
	TargetFPS             float64       `yaml:"target_fps"`
	Tolerance             float64       `yaml:"tolerance"`
	AdjustmentRate        float64       `yaml:"adjustment_rate"`
	MinScale              float64       `yaml:"min_scale"`
	MaxScale              float64       `yaml:"max_scale"`
	StabilizationInterval time.Duration `yaml:"stabilization_interval"`
}

func DefaultTunerConfig() TunerConfig {
	return TunerConfig{
		TargetFPS:             60,
		Tolerance:             5,
		AdjustmentRate:        0.10,
		MinScale:              0.5,
		MaxScale:              2.0,
		StabilizationInterval: time.Second,
	}
}

// AdaptiveTuner is a bounded-output discrete-time proportional controller.
// When the smoothed frame rate falls below target-tolerance it raises the
// distance scale by AdjustmentRate, pushing LOD selection towards coarser
// levels; above target+tolerance it lowers the scale to win quality back.
// Adjustments happen at most once per stabilization interval, which acts as
// hysteresis against oscillation between quality levels.
type AdaptiveTuner struct {
	cfg            TunerConfig
	scale          float64
	lastAdjustment time.Duration
	adjusted       bool // whether any adjustment happened yet
}

func NewAdaptiveTuner(cfg TunerConfig) *AdaptiveTuner {
	return &AdaptiveTuner{cfg: cfg, scale: 1.0}
}

// DistanceScale is the current controller output, always within
// [MinScale, MaxScale].
func (t *AdaptiveTuner) DistanceScale() float64 {
	return t.scale
}

// Update runs one controller step at simulation time now. It returns true
// when the scale changed. Calls within the same stabilization interval are
// no-ops regardless of the measured rate.
func (t *AdaptiveTuner) Update(now time.Duration, currentFPS float64) bool {
	if t.adjusted && now-t.lastAdjustment < t.cfg.StabilizationInterval {
		return false
	}
	if currentFPS <= 0 || math.IsNaN(currentFPS) || math.IsInf(currentFPS, 0) {
		return false
	}

	old := t.scale
	switch {
	case currentFPS < t.cfg.TargetFPS-t.cfg.Tolerance:
		t.scale *= 1 + t.cfg.AdjustmentRate
	case currentFPS > t.cfg.TargetFPS+t.cfg.Tolerance:
		t.scale *= 1 - t.cfg.AdjustmentRate
	default:
		return false
	}

	if t.scale < t.cfg.MinScale {
		t.scale = t.cfg.MinScale
	}
	if t.scale > t.cfg.MaxScale {
		t.scale = t.cfg.MaxScale
	}

	t.lastAdjustment = now
	t.adjusted = true
	return t.scale != old
}

// LODLevelStats counts entities and triangles rendered at one LOD level
// during a tick.
type LODLevelStats struct {
	Count     int
	Triangles int
}

// MetricsSnapshot is the read-only view handed to observability overlays.
type MetricsSnapshot struct {
	CurrentFPS     float64
	AvgFrameMillis float64
	MinFrameMillis float64
	MaxFrameMillis float64
	SampleCount    int
	DistanceScale  float64
	LevelStats     map[int]LODLevelStats
	DrawCallsSaved int
}

// TuningContext owns the per-scene mutable tuning state: the sample window,
// the controller, and per-tick LOD statistics. Exactly one writer (the
// pipeline tick) mutates it; readers take snapshots. It is passed to the
// per-tick update explicitly rather than living in package state.
type TuningContext struct {
	mu             sync.RWMutex
	metrics        *PerformanceMetrics
	tuner          *AdaptiveTuner
	simTime        time.Duration
	levelStats     map[int]LODLevelStats
	drawCallsSaved int
}

func NewTuningContext(windowSize int, cfg TunerConfig) *TuningContext {
	return &TuningContext{
		metrics:    NewPerformanceMetrics(windowSize),
		tuner:      NewAdaptiveTuner(cfg),
		levelStats: make(map[int]LODLevelStats),
	}
}

// RecordFrame advances simulation time by the frame duration and feeds the
// sample window. Called once per tick, before the controller step.
func (tc *TuningContext) RecordFrame(frameDuration time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if frameDuration < 0 {
		frameDuration = 0
	}
	tc.simTime += frameDuration
	tc.metrics.Record(tc.simTime, frameDuration)
}

// Tune runs the controller against the current smoothed fps. Returns true on
// a scale change.
func (tc *TuningContext) Tune() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.tuner.Update(tc.simTime, tc.metrics.CurrentFPS())
}

func (tc *TuningContext) DistanceScale() float32 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return float32(tc.tuner.DistanceScale())
}

func (tc *TuningContext) SimTime() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.simTime
}

// RecordLevel accumulates per-LOD-level usage for the current tick.
func (tc *TuningContext) RecordLevel(level, triangles int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	s := tc.levelStats[level]
	s.Count++
	s.Triangles += triangles
	tc.levelStats[level] = s
}

func (tc *TuningContext) SetDrawCallsSaved(n int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.drawCallsSaved = n
}

// ResetTickCounters clears the per-tick statistics. Called at the start of
// every tick.
func (tc *TuningContext) ResetTickCounters() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.levelStats = make(map[int]LODLevelStats)
	tc.drawCallsSaved = 0
}

// Snapshot copies the current state for HUD/observability consumers.
func (tc *TuningContext) Snapshot() MetricsSnapshot {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	avg, min, max := tc.metrics.frameStats()
	stats := make(map[int]LODLevelStats, len(tc.levelStats))
	for k, v := range tc.levelStats {
		stats[k] = v
	}
	return MetricsSnapshot{
		CurrentFPS:     tc.metrics.CurrentFPS(),
		AvgFrameMillis: float64(avg) / float64(time.Millisecond),
		MinFrameMillis: float64(min) / float64(time.Millisecond),
		MaxFrameMillis: float64(max) / float64(time.Millisecond),
		SampleCount:    tc.metrics.SampleCount(),
		DistanceScale:  tc.tuner.DistanceScale(),
		LevelStats:     stats,
		DrawCallsSaved: tc.drawCallsSaved,
	}
}
