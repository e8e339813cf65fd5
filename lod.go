package meshopt

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// LODLevel is one entry of a LOD chain: a mesh plus the distance at which it
// takes over from the previous level.
type LODLevel struct {
	Mesh              MeshDefinition
	DistanceThreshold float32
	TriangleCount     int
	MemoryBytes       int
}

// LODChain is an ordered sequence of levels, index 0 the full-detail base
// mesh. Triangle counts never increase along the chain and thresholds
// strictly increase. Chains are immutable after construction and cached per
// asset type.
type LODChain struct {
	Levels []LODLevel
}

// MemorySaved reports how many bytes the coarsest level saves versus the base
// mesh.
func (c *LODChain) MemorySaved() int {
	if len(c.Levels) < 2 {
		return 0
	}
	saved := c.Levels[0].MemoryBytes - c.Levels[len(c.Levels)-1].MemoryBytes
	if saved < 0 {
		return 0
	}
	return saved
}

func (c *LODChain) validate() error {
	if len(c.Levels) == 0 {
		return fmt.Errorf("lod: chain has no levels")
	}
	for i := 1; i < len(c.Levels); i++ {
		if c.Levels[i].TriangleCount > c.Levels[i-1].TriangleCount {
			return fmt.Errorf("lod: triangle count increases at level %d", i)
		}
		if c.Levels[i].DistanceThreshold <= c.Levels[i-1].DistanceThreshold {
			return fmt.Errorf("lod: threshold not increasing at level %d", i)
		}
	}
	return nil
}

// SimplifierConfig controls chain generation.
type SimplifierConfig struct {
	LevelCount      int     `yaml:"level_count"`
	ReductionFactor float32 `yaml:"reduction_factor"`
	MinTriangles    int     `yaml:"min_triangles"`
	Billboard       bool    `yaml:"billboard"` // quad stand-in as the coarsest level
}

func DefaultSimplifierConfig() SimplifierConfig {
	return SimplifierConfig{
		LevelCount:      3,
		ReductionFactor: 0.5,
		MinTriangles:    4,
		Billboard:       true,
	}
}

// Simplify builds a LOD chain from a base mesh. Level 0 is the base mesh
// untouched; each further level reduces the previous level's triangle count by
// roughly cfg.ReductionFactor using area-weighted triangle decimation. The
// switch-over distance for level i is radius*10*2^i, so each coarser level
// takes over at about double the previous distance.
//
// A base mesh with fewer than cfg.MinTriangles triangles is returned as a
// single-level chain; that is not an error.
func Simplify(base *MeshDefinition, cfg SimplifierConfig) (*LODChain, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if cfg.LevelCount < 1 {
		return nil, fmt.Errorf("lod: level count %d must be >= 1", cfg.LevelCount)
	}
	if cfg.ReductionFactor <= 0 || cfg.ReductionFactor >= 1 {
		return nil, fmt.Errorf("lod: reduction factor %v outside (0,1)", cfg.ReductionFactor)
	}

	radius := base.BoundingRadius()
	chain := &LODChain{}
	chain.Levels = append(chain.Levels, LODLevel{
		Mesh:              *base,
		DistanceThreshold: radius * 10,
		TriangleCount:     base.TriangleCount(),
		MemoryBytes:       base.MemoryBytes(),
	})

	if base.TriangleCount() < cfg.MinTriangles {
		return chain, nil
	}

	prev := base
	for level := 1; level < cfg.LevelCount; level++ {
		target := int(float32(prev.TriangleCount()) * cfg.ReductionFactor)
		if target < 1 {
			target = 1
		}

		var reduced MeshDefinition
		if target <= 2 && cfg.Billboard {
			reduced = billboardMesh(base)
		} else {
			reduced = decimate(prev, target)
		}

		// Guarantee monotonic triangle counts even when decimation cannot hit
		// the exact target.
		if reduced.TriangleCount() > prev.TriangleCount() {
			reduced = *prev
		}

		threshold := radius * 10 * float32(uint(1)<<uint(level))
		chain.Levels = append(chain.Levels, LODLevel{
			Mesh:              reduced,
			DistanceThreshold: threshold,
			TriangleCount:     reduced.TriangleCount(),
			MemoryBytes:       reduced.MemoryBytes(),
		})
		prevCopy := reduced
		prev = &prevCopy
	}

	if err := chain.validate(); err != nil {
		return nil, err
	}
	return chain, nil
}

// decimate keeps the target-count largest triangles of the mesh and rebuilds a
// compacted vertex table. Area is the importance score: small slivers go
// first, which preserves the silhouette reasonably well for procedural
// creature meshes.
func decimate(mesh *MeshDefinition, targetTriangles int) MeshDefinition {
	triCount := mesh.TriangleCount()
	if triCount <= targetTriangles {
		out := *mesh
		return out
	}

	type scored struct {
		tri  int
		area float32
	}
	scores := make([]scored, triCount)
	for t := 0; t < triCount; t++ {
		scores[t] = scored{tri: t, area: mesh.TriangleArea(t)}
	}
	sort.Slice(scores, func(a, b int) bool {
		if scores[a].area != scores[b].area {
			return scores[a].area > scores[b].area
		}
		return scores[a].tri < scores[b].tri // deterministic tie-break
	})

	keep := make([]int, targetTriangles)
	for i := 0; i < targetTriangles; i++ {
		keep[i] = scores[i].tri
	}
	sort.Ints(keep)

	return rebuildFromTriangles(mesh, keep)
}

// rebuildFromTriangles extracts the given triangles into a new mesh,
// remapping indices onto a compacted vertex table.
func rebuildFromTriangles(mesh *MeshDefinition, triangles []int) MeshDefinition {
	remap := make(map[uint32]uint32, len(triangles)*3)
	out := MeshDefinition{Color: mesh.Color}
	hasNormals := len(mesh.Normals) == len(mesh.Vertices) && len(mesh.Normals) > 0
	hasUVs := len(mesh.UVs) == len(mesh.Vertices) && len(mesh.UVs) > 0

	for _, t := range triangles {
		for k := 0; k < 3; k++ {
			old := mesh.Indices[t*3+k]
			idx, ok := remap[old]
			if !ok {
				idx = uint32(len(out.Vertices))
				remap[old] = idx
				out.Vertices = append(out.Vertices, mesh.Vertices[old])
				if hasNormals {
					out.Normals = append(out.Normals, mesh.Normals[old])
				}
				if hasUVs {
					out.UVs = append(out.UVs, mesh.UVs[old])
				}
			}
			out.Indices = append(out.Indices, idx)
		}
	}
	return out
}

// billboardMesh collapses a mesh to a camera-facing quad spanning its
// bounding box, the cheapest useful far-distance stand-in.
func billboardMesh(mesh *MeshDefinition) MeshDefinition {
	min, max := mesh.Bounds()
	cx := (min.X() + max.X()) * 0.5
	cy := (min.Y() + max.Y()) * 0.5
	cz := (min.Z() + max.Z()) * 0.5
	hw := (max.X() - min.X()) * 0.5
	hh := (max.Y() - min.Y()) * 0.5

	return MeshDefinition{
		Vertices: []mgl32.Vec3{
			{cx - hw, cy - hh, cz},
			{cx + hw, cy - hh, cz},
			{cx + hw, cy + hh, cz},
			{cx - hw, cy + hh, cz},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
		Normals: []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		UVs:     []mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Color:   mesh.Color,
	}
}

// SelectLevel maps a viewer distance to a LOD index. Pure: the same inputs
// always produce the same index, and a larger distance never selects a more
// detailed level. distanceScale multiplies the raw distance before threshold
// comparison, so scales above 1.0 push entities towards coarser levels
// sooner; the tuner raises it when the frame rate drops and keeps it strictly
// positive.
func SelectLevel(distance float32, chain *LODChain, distanceScale float32) int {
	if chain == nil || len(chain.Levels) == 0 {
		return 0
	}
	distance = clampDistance(distance)
	effective := distance * distanceScale

	selected := 0
	for i, level := range chain.Levels {
		if level.DistanceThreshold <= effective {
			selected = i
		} else {
			break
		}
	}
	if selected >= len(chain.Levels) {
		selected = len(chain.Levels) - 1
	}
	return selected
}
