package meshopt

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// SpatialHashGrid buckets entities into uniform cells so the visibility pass
// can query a viewer-centred region instead of scanning the whole scene. It
// stores ids only; positions live on the scene entities.
type SpatialHashGrid struct {
	cellSize float32
	cells    map[uint64][]EntityId
}

func NewSpatialHashGrid(cellSize float32) *SpatialHashGrid {
	return &SpatialHashGrid{
		cellSize: cellSize,
		cells:    make(map[uint64][]EntityId),
	}
}

func (grid *SpatialHashGrid) Clear() {
	clear(grid.cells)
}

func (grid *SpatialHashGrid) Insert(id EntityId, bounds AABB) {
	minX, maxX := grid.cellIndex(bounds.Min.X()), grid.cellIndex(bounds.Max.X())
	minY, maxY := grid.cellIndex(bounds.Min.Y()), grid.cellIndex(bounds.Max.Y())
	minZ, maxZ := grid.cellIndex(bounds.Min.Z()), grid.cellIndex(bounds.Max.Z())

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				key := grid.hashKey(x, y, z)
				grid.cells[key] = append(grid.cells[key], id)
			}
		}
	}
}

func (grid *SpatialHashGrid) QueryAABB(bounds AABB) []EntityId {
	minX, maxX := grid.cellIndex(bounds.Min.X()), grid.cellIndex(bounds.Max.X())
	minY, maxY := grid.cellIndex(bounds.Min.Y()), grid.cellIndex(bounds.Max.Y())
	minZ, maxZ := grid.cellIndex(bounds.Min.Z()), grid.cellIndex(bounds.Max.Z())

	unique := make(map[EntityId]struct{})
	var results []EntityId

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				key := grid.hashKey(x, y, z)
				for _, id := range grid.cells[key] {
					if _, ok := unique[id]; !ok {
						unique[id] = struct{}{}
						results = append(results, id)
					}
				}
			}
		}
	}
	return results
}

// QueryRadius returns broadphase candidates inside the sphere's AABB. Exact
// distance filtering happens in the visibility pass, which has the positions.
func (grid *SpatialHashGrid) QueryRadius(center mgl32.Vec3, radius float32) []EntityId {
	return grid.QueryAABB(AABB{
		Min: center.Sub(mgl32.Vec3{radius, radius, radius}),
		Max: center.Add(mgl32.Vec3{radius, radius, radius}),
	})
}

func (grid *SpatialHashGrid) cellIndex(pos float32) int {
	return int(math.Floor(float64(pos / grid.cellSize)))
}

func (grid *SpatialHashGrid) hashKey(x, y, z int) uint64 {
	const p1 = 73856093
	const p2 = 19349663
	const p3 = 83492791
	return uint64(x*p1 ^ y*p2 ^ z*p3)
}

// SpatialGridModule rebuilds the grid each tick and drives viewer-distance
// and visibility updates for every scene entity.
type SpatialGridModule struct {
	CellSize        float32
	VisibleDistance float32
}

func (m SpatialGridModule) Install(app *App, cmd *Commands) {
	cellSize := m.CellSize
	if cellSize <= 0 {
		cellSize = 16.0
	}
	visible := m.VisibleDistance
	if visible <= 0 {
		visible = DefaultConfig().VisibleDistance
	}

	cmd.AddResources(NewSpatialHashGrid(cellSize), &visibilitySettings{distance: visible})

	app.UseSystem(
		System(rebuildSpatialGridSystem).InStage(PreUpdate),
	).UseSystem(
		System(visibilitySystem).InStage(PreUpdate),
	)
}

type visibilitySettings struct {
	distance float32
}

func rebuildSpatialGridSystem(grid *SpatialHashGrid, scene *Scene, assets *AssetServer) {
	grid.Clear()

	scene.Each(func(id EntityId, ent *Entity) bool {
		radius := float32(0.5)
		if chain, ok := assets.Chain(ent.Asset); ok && len(chain.Levels) > 0 {
			radius = chain.Levels[0].Mesh.BoundingRadius()
		}
		extents := mgl32.Vec3{radius, radius, radius}
		grid.Insert(id, AABB{Min: ent.Position.Sub(extents), Max: ent.Position.Add(extents)})
		return true
	})
}

// visibilitySystem refreshes every entity's viewer distance, then uses the
// grid to mark the set within the visible range. Distance is kept up to date
// even for invisible entities because streaming decisions depend on it.
func visibilitySystem(grid *SpatialHashGrid, scene *Scene, settings *visibilitySettings) {
	viewer := scene.Viewer()

	scene.Each(func(id EntityId, ent *Entity) bool {
		ent.Distance = clampDistance(ent.Position.Sub(viewer).Len())
		ent.Visible = false
		return true
	})

	for _, id := range grid.QueryRadius(viewer, settings.distance) {
		ent, ok := scene.Get(id)
		if !ok {
			continue
		}
		if ent.Distance <= settings.distance {
			ent.Visible = true
		}
	}
}
