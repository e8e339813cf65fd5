package meshopt

import (
	"fmt"
)

// MemoryStrategy is the advisory residency policy for a scene's mesh data.
// The set is closed; callers switch over it exhaustively.
type MemoryStrategy int

const (
	// KeepAll keeps every mesh resident; chosen when the full footprint fits
	// the budget.
	KeepAll MemoryStrategy = iota
	// DistanceBased unloads meshes beyond a distance cutoff; suits wide,
	// static distance distributions.
	DistanceBased
	// LruCache bounds residency with least-recently-used eviction; suits a
	// bounded, reusable working set.
	LruCache
	// Streaming loads and unloads continuously; suits open-world scenes with
	// constant entry and exit of distant entities.
	Streaming
)

func (s MemoryStrategy) String() string {
	switch s {
	case KeepAll:
		return "keep-all"
	case DistanceBased:
		return "distance-based"
	case LruCache:
		return "lru-cache"
	case Streaming:
		return "streaming"
	}
	return fmt.Sprintf("MemoryStrategy(%d)", int(s))
}

// DistanceSpread characterizes how entity distances are distributed in the
// scene, the second input to strategy recommendation.
type DistanceSpread int

const (
	// SpreadStatic: entities mostly stay where they are, distances vary widely.
	SpreadStatic DistanceSpread = iota
	// SpreadBounded: a reusable working set cycles within a bounded range.
	SpreadBounded
	// SpreadOpenWorld: entities continuously enter and leave at the far range.
	SpreadOpenWorld
)

// RecommendStrategy picks a residency strategy from the total mesh footprint,
// the memory budget and the scene's distance profile. Advisory only: the
// caller owns the decision of acting on it.
func RecommendStrategy(totalFootprintBytes, budgetBytes int, spread DistanceSpread) MemoryStrategy {
	if totalFootprintBytes <= budgetBytes {
		return KeepAll
	}
	switch spread {
	case SpreadBounded:
		return LruCache
	case SpreadOpenWorld:
		return Streaming
	default:
		return DistanceBased
	}
}

// StreamingState is the per-entity residency state. Transitions always pass
// through Loading/Unloading; an entity never jumps from Unloaded straight to
// Loaded.
type StreamingState int

const (
	Unloaded StreamingState = iota
	Loading
	Loaded
	Unloading
)

func (s StreamingState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Unloading:
		return "unloading"
	}
	return fmt.Sprintf("StreamingState(%d)", int(s))
}

// StreamingComponent tracks one entity's residency. LoadThreshold must be
// strictly below UnloadThreshold: the gap is the hysteresis band that stops
// an entity hovering near one boundary from flapping between loads and
// unloads.
type StreamingComponent struct {
	State           StreamingState
	LoadThreshold   float32
	UnloadThreshold float32
	Priority        int // higher loads first when the loader is saturated
}

// NewStreamingComponent validates the hysteresis invariant up front.
func NewStreamingComponent(loadThreshold, unloadThreshold float32) (*StreamingComponent, error) {
	if !(loadThreshold < unloadThreshold) {
		return nil, fmt.Errorf("streaming: load threshold %v must be below unload threshold %v",
			loadThreshold, unloadThreshold)
	}
	return &StreamingComponent{
		State:           Unloaded,
		LoadThreshold:   loadThreshold,
		UnloadThreshold: unloadThreshold,
	}, nil
}

// StreamingAction is what the state machine wants done for an entity this
// tick. Actions are computed read-only and applied in the sequential commit
// phase.
type StreamingAction int

const (
	ActionNone StreamingAction = iota
	ActionBeginLoad
	ActionBeginUnload
)

// Advance computes the next action for the given viewer distance without
// mutating the component. Loading/Unloading states wait for completion
// callbacks and never react to distance directly.
func (sc *StreamingComponent) Advance(distance float32) StreamingAction {
	distance = clampDistance(distance)
	switch sc.State {
	case Unloaded:
		if distance < sc.LoadThreshold {
			return ActionBeginLoad
		}
	case Loaded:
		if distance > sc.UnloadThreshold {
			return ActionBeginUnload
		}
	}
	return ActionNone
}

// Apply commits an action computed by Advance.
func (sc *StreamingComponent) Apply(action StreamingAction) {
	switch action {
	case ActionBeginLoad:
		if sc.State == Unloaded {
			sc.State = Loading
		}
	case ActionBeginUnload:
		if sc.State == Loaded {
			sc.State = Unloading
		}
	}
}

// CompleteLoad finishes an in-flight load. On failure the entity drops back
// to Unloaded and will render the placeholder representation until the next
// attempt; the frame carries on.
func (sc *StreamingComponent) CompleteLoad(ok bool) {
	if sc.State != Loading {
		return
	}
	if ok {
		sc.State = Loaded
	} else {
		sc.State = Unloaded
	}
}

// CompleteUnload finishes an in-flight unload.
func (sc *StreamingComponent) CompleteUnload() {
	if sc.State == Unloading {
		sc.State = Unloaded
	}
}
