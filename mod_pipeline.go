package meshopt

import (
	"runtime"
	"sort"
	"sync"
)

// PerfModule wires the frame sampler and the adaptive tuner into the tick.
// Sampling runs in Prelude so every later system sees this frame's numbers;
// the controller step runs in PreUpdate, before LOD selection reads the
// scale.
type PerfModule struct {
	WindowSize int
	Tuner      TunerConfig
}

func (m PerfModule) Install(app *App, cmd *Commands) {
	window := m.WindowSize
	if window < 1 {
		window = DefaultConfig().WindowSize
	}
	tuner := m.Tuner
	if tuner.TargetFPS == 0 {
		tuner = DefaultTunerConfig()
	}

	cmd.AddResources(NewTuningContext(window, tuner))
	app.UseSystem(
		System(recordFrameSystem).InStage(Prelude),
	).UseSystem(
		System(tuneSystem).InStage(PreUpdate),
	)
}

func recordFrameSystem(tuning *TuningContext, input *TickInput) {
	tuning.ResetTickCounters()
	tuning.RecordFrame(input.Dt)
}

func tuneSystem(cmd *Commands, tuning *TuningContext) {
	if tuning.Tune() {
		snap := tuning.Snapshot()
		cmd.Logger().Debugf("distance scale adjusted to %.3f (fps %.1f)", snap.DistanceScale, snap.CurrentFPS)
	}
}

// LODModule runs per-entity level selection each tick.
type LODModule struct{}

func (LODModule) Install(app *App, cmd *Commands) {
	app.UseSystem(System(lodSelectSystem).InStage(Update))
}

type lodResult struct {
	id    EntityId
	level int
	tris  int
}

// lodSelectSystem evaluates every entity against its chain at the current
// distance scale. Selection is pure per entity, so the evaluation fans out
// across workers over an immutable snapshot; results are committed
// sequentially afterwards.
func lodSelectSystem(scene *Scene, assets *AssetServer, tuning *TuningContext) {
	scale := tuning.DistanceScale()

	type item struct {
		id       EntityId
		distance float32
		chain    *LODChain
	}
	var items []item
	scene.Each(func(id EntityId, ent *Entity) bool {
		chain, ok := assets.Chain(ent.Asset)
		if !ok {
			return true
		}
		items = append(items, item{id: id, distance: ent.Distance, chain: chain})
		return true
	})
	if len(items) == 0 {
		return
	}

	results := make([]lodResult, len(items))
	workers := runtime.NumCPU()
	if workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	chunk := (len(items) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(items) {
			hi = len(items)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				level := SelectLevel(items[i].distance, items[i].chain, scale)
				results[i] = lodResult{
					id:    items[i].id,
					level: level,
					tris:  items[i].chain.Levels[level].TriangleCount,
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	for _, r := range results {
		ent, ok := scene.Get(r.id)
		if !ok {
			continue
		}
		ent.LODIndex = r.level
		if ent.Visible {
			tuning.RecordLevel(r.level, r.tris)
		}
	}
}

// MeshLoader is the host-side hook the streaming commit phase drives. Load
// returning an error leaves the entity unloaded; the pipeline retries on a
// later tick when the entity is still in range.
type MeshLoader interface {
	Load(id AssetId) error
	Unload(id AssetId)
}

// NopLoader satisfies MeshLoader with no-ops, for scenes that keep
// everything resident.
type NopLoader struct{}

func (NopLoader) Load(AssetId) error { return nil }
func (NopLoader) Unload(AssetId)     {}

// StreamingModule drives the per-entity residency state machines.
type StreamingModule struct {
	Loader MeshLoader
}

func (m StreamingModule) Install(app *App, cmd *Commands) {
	loader := m.Loader
	if loader == nil {
		loader = NopLoader{}
	}
	cmd.AddResources(&streamingDriver{loader: loader})
	app.UseSystem(System(streamingSystem).InStage(PostUpdate))
}

type streamingDriver struct {
	loader MeshLoader
}

type streamingDecision struct {
	id     EntityId
	action StreamingAction
}

// streamingSystem runs in two phases: a read-only pass computing the action
// for every streamed entity at its current distance, then a sequential
// commit that applies the transitions and drives the loader. Loads commit in
// descending priority order.
func streamingSystem(cmd *Commands, scene *Scene, driver *streamingDriver) {
	type pending struct {
		streamingDecision
		priority int
	}
	var decisions []pending
	scene.Each(func(id EntityId, ent *Entity) bool {
		if ent.Streaming == nil {
			return true
		}
		action := ent.Streaming.Advance(ent.Distance)
		if action != ActionNone {
			decisions = append(decisions, pending{
				streamingDecision: streamingDecision{id: id, action: action},
				priority:          ent.Streaming.Priority,
			})
		}
		return true
	})

	sort.SliceStable(decisions, func(a, b int) bool {
		if decisions[a].action != decisions[b].action {
			return decisions[a].action == ActionBeginLoad
		}
		return decisions[a].priority > decisions[b].priority
	})

	log := cmd.Logger()
	for _, d := range decisions {
		ent, ok := scene.Get(d.id)
		if !ok || ent.Streaming == nil {
			continue
		}
		ent.Streaming.Apply(d.action)

		switch d.action {
		case ActionBeginLoad:
			err := driver.loader.Load(ent.Asset)
			ent.Streaming.CompleteLoad(err == nil)
			if err != nil {
				log.Warnf("mesh load failed for asset %s: %v", ent.Asset, err)
			}
		case ActionBeginUnload:
			driver.loader.Unload(ent.Asset)
			ent.Streaming.CompleteUnload()
		}
	}
}

// MemoryPlanner holds the scene's residency budget and recommends a strategy
// from the currently registered assets.
type MemoryPlanner struct {
	BudgetBytes int
}

func (p *MemoryPlanner) Recommend(assets *AssetServer, spread DistanceSpread) MemoryStrategy {
	return RecommendStrategy(assets.TotalFootprintBytes(), p.BudgetBytes, spread)
}

// MemoryModule installs the residency planner resource.
type MemoryModule struct {
	BudgetBytes int
}

func (m MemoryModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&MemoryPlanner{BudgetBytes: m.BudgetBytes})
}

// BatchModule plans draw batches from the tick's visible, resident entities
// and publishes the result as the BatchPlan resource.
type BatchModule struct {
	Batcher BatcherConfig
}

func (m BatchModule) Install(app *App, cmd *Commands) {
	cfg := m.Batcher
	if cfg.VertexLimit == 0 {
		cfg = DefaultBatcherConfig()
	}
	cmd.AddResources(&batchSettings{cfg: cfg}, &BatchPlan{})
	app.UseSystem(System(batchPlanSystem).InStage(PreRender))
}

type batchSettings struct {
	cfg BatcherConfig
}

func batchPlanSystem(cmd *Commands, scene *Scene, assets *AssetServer, settings *batchSettings, plan *BatchPlan, tuning *TuningContext) {
	var candidates []BatchCandidate
	scene.Each(func(id EntityId, ent *Entity) bool {
		if !ent.Visible {
			return true
		}
		if ent.Streaming != nil && ent.Streaming.State != Loaded {
			return true
		}
		chain, ok := assets.Chain(ent.Asset)
		if !ok {
			return true
		}
		level := ent.LODIndex
		if level < 0 || level >= len(chain.Levels) {
			level = len(chain.Levels) - 1
		}
		candidates = append(candidates, BatchCandidate{
			Entity:      id,
			Key:         BatchKey{MaterialKey: ent.MaterialKey, TextureKey: ent.TextureKey},
			VertexCount: len(chain.Levels[level].Mesh.Vertices),
		})
		return true
	})

	next, err := PlanBatches(candidates, settings.cfg)
	if err != nil {
		cmd.Logger().Errorf("batch planning failed: %v", err)
		return
	}
	*plan = *next
	tuning.SetDrawCallsSaved(plan.DrawCallsSaved)
}

// NewPipelineApp validates the config and assembles the full pipeline app:
// logging, time, scene, assets, visibility, tuning, LOD selection, streaming
// and batch planning, scheduled across the default stages. The host calls
// Tick once per frame with the measured frame duration and reads BatchPlan
// and MetricsSnapshot afterwards.
func NewPipelineApp(cfg *PipelineConfig, loader MeshLoader) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := NewApp()
	app.UseModules(
		LoggingModule{Level: cfg.Logging.Level, File: cfg.Logging.File},
		TimeModule{},
		SceneModule{},
		AssetServerModule{Simplifier: cfg.Simplifier},
		SpatialGridModule{VisibleDistance: cfg.VisibleDistance},
		PerfModule{WindowSize: cfg.WindowSize, Tuner: cfg.Tuner},
		MemoryModule{BudgetBytes: cfg.MemoryBudget},
		LODModule{},
		StreamingModule{Loader: loader},
		BatchModule{Batcher: cfg.Batcher},
	)
	return app, nil
}
