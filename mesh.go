package meshopt

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MeshDefinition is an indexed triangle mesh with optional per-vertex
// attributes and a uniform tint. Instances are treated as immutable once
// handed to the pipeline; simplification and packing never mutate their
// inputs.
type MeshDefinition struct {
	Vertices []mgl32.Vec3
	Indices  []uint32
	Normals  []mgl32.Vec3 // optional, len 0 or len(Vertices)
	UVs      []mgl32.Vec2 // optional, len 0 or len(Vertices)
	Color    mgl32.Vec4
}

// Validate checks the structural invariants: index count is a multiple of
// three, every index addresses a vertex, and optional attribute slices match
// the vertex count when present.
func (m *MeshDefinition) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh: index count %d is not a multiple of 3", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("mesh: index %d at position %d exceeds vertex count %d", idx, i, len(m.Vertices))
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("mesh: normal count %d does not match vertex count %d", len(m.Normals), len(m.Vertices))
	}
	if len(m.UVs) != 0 && len(m.UVs) != len(m.Vertices) {
		return fmt.Errorf("mesh: uv count %d does not match vertex count %d", len(m.UVs), len(m.Vertices))
	}
	return nil
}

func (m *MeshDefinition) TriangleCount() int {
	return len(m.Indices) / 3
}

// MemoryBytes estimates the resident footprint of the mesh data using 32-bit
// floats and indices. Used by the memory planner, not for exact accounting.
func (m *MeshDefinition) MemoryBytes() int {
	return len(m.Vertices)*12 + len(m.Indices)*4 + len(m.Normals)*12 + len(m.UVs)*8
}

// Bounds returns the axis-aligned bounding box of the mesh. The zero box is
// returned for an empty mesh.
func (m *MeshDefinition) Bounds() (min, max mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}

// BoundingRadius is half the diagonal of the bounding box, the object radius
// used when deriving LOD switch distances. Empty meshes report 0.5 so the
// distance formula stays usable.
func (m *MeshDefinition) BoundingRadius() float32 {
	if len(m.Vertices) == 0 {
		return 0.5
	}
	min, max := m.Bounds()
	return max.Sub(min).Len() * 0.5
}

// BoundingSize is the largest bounding-box dimension.
func (m *MeshDefinition) BoundingSize() float32 {
	if len(m.Vertices) == 0 {
		return 1.0
	}
	min, max := m.Bounds()
	d := max.Sub(min)
	size := d.X()
	if d.Y() > size {
		size = d.Y()
	}
	if d.Z() > size {
		size = d.Z()
	}
	return size
}

// TriangleArea returns the area of triangle t. Out-of-range vertex indices
// score zero so malformed triangles sort last during decimation.
func (m *MeshDefinition) TriangleArea(t int) float32 {
	i0 := int(m.Indices[t*3])
	i1 := int(m.Indices[t*3+1])
	i2 := int(m.Indices[t*3+2])
	if i0 >= len(m.Vertices) || i1 >= len(m.Vertices) || i2 >= len(m.Vertices) {
		return 0
	}
	e1 := m.Vertices[i1].Sub(m.Vertices[i0])
	e2 := m.Vertices[i2].Sub(m.Vertices[i0])
	return e1.Cross(e2).Len() * 0.5
}

// clampDistance sanitizes a distance coming from an external collaborator.
// Non-finite and negative values collapse to zero.
func clampDistance(d float32) float32 {
	if math.IsNaN(float64(d)) || math.IsInf(float64(d), 0) || d < 0 {
		return 0
	}
	return d
}
