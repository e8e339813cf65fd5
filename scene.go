package meshopt

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type EntityId uint64

// Entity is one renderable object tracked by the pipeline: its asset
// binding, world position, batching keys and the per-entity state the tick
// produces (distance, LOD index, streaming residency).
type Entity struct {
	Asset       AssetId
	Position    mgl32.Vec3
	MaterialKey string
	TextureKey  string

	// per-tick derived state
	Distance float32
	Visible  bool
	LODIndex int

	Streaming *StreamingComponent
}

// Scene is the entity store for one active scene. Mutation goes through the
// buffered Commands during a tick; direct access is for setup and tests.
// Iteration order is ascending id so every tick is deterministic.
type Scene struct {
	mu       sync.RWMutex
	entities map[EntityId]*Entity
	order    []EntityId
	dirty    bool
	idLock   sync.Mutex
	nextId   EntityId

	viewer mgl32.Vec3
}

func NewScene() *Scene {
	return &Scene{entities: make(map[EntityId]*Entity)}
}

func (s *Scene) nextEntityId() EntityId {
	s.idLock.Lock()
	defer s.idLock.Unlock()
	id := s.nextId
	s.nextId++
	return id
}

func (s *Scene) insert(eid EntityId, entity Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[eid]; !exists {
		s.order = append(s.order, eid)
		s.dirty = true
	}
	e := entity
	s.entities[eid] = &e
}

func (s *Scene) remove(eid EntityId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[eid]; !exists {
		return
	}
	delete(s.entities, eid)
	for i, id := range s.order {
		if id == eid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetViewer updates the viewer (camera) position distances are measured
// from.
func (s *Scene) SetViewer(pos mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = pos
}

func (s *Scene) Viewer() mgl32.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewer
}

func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Get returns the live entity record. The pointer stays valid until the
// entity is despawned; callers outside the tick must not mutate it.
func (s *Scene) Get(eid EntityId) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[eid]
	return e, ok
}

// Each visits every entity in ascending id order. Returning false stops the
// walk.
func (s *Scene) Each(visit func(EntityId, *Entity) bool) {
	s.mu.Lock()
	if s.dirty {
		sort.Slice(s.order, func(a, b int) bool { return s.order[a] < s.order[b] })
		s.dirty = false
	}
	ids := make([]EntityId, len(s.order))
	copy(ids, s.order)
	s.mu.Unlock()

	for _, eid := range ids {
		s.mu.RLock()
		e, ok := s.entities[eid]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if !visit(eid, e) {
			return
		}
	}
}

// SceneModule installs the scene store resource.
type SceneModule struct{}

func (SceneModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(NewScene())
}
