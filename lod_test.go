package meshopt

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridMesh builds a flat triangle grid with exactly 2*n*n triangles.
func gridMesh(n int) *MeshDefinition {
	mesh := &MeshDefinition{Color: mgl32.Vec4{1, 1, 1, 1}}
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			mesh.Vertices = append(mesh.Vertices, mgl32.Vec3{float32(x), 0, float32(z)})
			mesh.Normals = append(mesh.Normals, mgl32.Vec3{0, 1, 0})
			mesh.UVs = append(mesh.UVs, mgl32.Vec2{float32(x) / float32(n), float32(z) / float32(n)})
		}
	}
	stride := uint32(n + 1)
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			a := uint32(z)*stride + uint32(x)
			b := a + stride
			mesh.Indices = append(mesh.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return mesh
}

func TestSimplify_ChainShape(t *testing.T) {
	base := gridMesh(23) // 1058 triangles
	require.Equal(t, 1058, base.TriangleCount())

	chain, err := Simplify(base, DefaultSimplifierConfig())
	require.NoError(t, err)
	require.Len(t, chain.Levels, 3)

	// Level 0 is the untouched base mesh.
	assert.Equal(t, base.TriangleCount(), chain.Levels[0].TriangleCount)

	for i := 1; i < len(chain.Levels); i++ {
		if chain.Levels[i].TriangleCount > chain.Levels[i-1].TriangleCount {
			t.Errorf("triangle count increased at level %d: %d > %d",
				i, chain.Levels[i].TriangleCount, chain.Levels[i-1].TriangleCount)
		}
		if chain.Levels[i].DistanceThreshold <= chain.Levels[i-1].DistanceThreshold {
			t.Errorf("threshold not strictly increasing at level %d", i)
		}
	}

	// Roughly halved each level.
	assert.InDelta(t, 529, chain.Levels[1].TriangleCount, 2)
	assert.InDelta(t, 264, chain.Levels[2].TriangleCount, 2)
}

func TestSimplify_ThresholdProgression(t *testing.T) {
	base := gridMesh(10)
	chain, err := Simplify(base, DefaultSimplifierConfig())
	require.NoError(t, err)

	radius := base.BoundingRadius()
	for i, level := range chain.Levels {
		want := radius * 10 * float32(uint(1)<<uint(i))
		assert.InDelta(t, want, level.DistanceThreshold, 1e-3, "level %d", i)
	}
}

func TestSimplify_DegenerateMeshSingleLevel(t *testing.T) {
	// One triangle, below the default minimum.
	mesh := &MeshDefinition{
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:  []uint32{0, 1, 2},
	}
	chain, err := Simplify(mesh, DefaultSimplifierConfig())
	require.NoError(t, err)
	require.Len(t, chain.Levels, 1)
	assert.Equal(t, 1, chain.Levels[0].TriangleCount)
}

func TestSimplify_BillboardCoarsest(t *testing.T) {
	base := gridMesh(4) // 32 triangles; halving reaches <=2 quickly
	cfg := SimplifierConfig{LevelCount: 6, ReductionFactor: 0.3, MinTriangles: 4, Billboard: true}

	chain, err := Simplify(base, cfg)
	require.NoError(t, err)

	last := chain.Levels[len(chain.Levels)-1]
	assert.Equal(t, 2, last.TriangleCount, "coarsest level should be the billboard quad")
	assert.Len(t, last.Mesh.Vertices, 4)
}

func TestSimplify_RejectsBadConfig(t *testing.T) {
	base := gridMesh(4)
	_, err := Simplify(base, SimplifierConfig{LevelCount: 0, ReductionFactor: 0.5, MinTriangles: 4})
	assert.Error(t, err)
	_, err = Simplify(base, SimplifierConfig{LevelCount: 3, ReductionFactor: 1.0, MinTriangles: 4})
	assert.Error(t, err)
}

func TestSimplify_MemorySaved(t *testing.T) {
	base := gridMesh(16)
	chain, err := Simplify(base, DefaultSimplifierConfig())
	require.NoError(t, err)
	assert.Greater(t, chain.MemorySaved(), 0)
}

func TestSelectLevel_MonotonicInDistance(t *testing.T) {
	chain, err := Simplify(gridMesh(16), DefaultSimplifierConfig())
	require.NoError(t, err)

	prev := 0
	for d := float32(0); d < 2000; d += 5 {
		level := SelectLevel(d, chain, 1.0)
		if level < prev {
			t.Fatalf("level decreased from %d to %d at distance %v", prev, level, d)
		}
		prev = level
	}
	assert.Equal(t, len(chain.Levels)-1, prev, "far distances should reach the coarsest level")
}

func TestSelectLevel_ScaleShiftsBoundaries(t *testing.T) {
	chain, err := Simplify(gridMesh(16), DefaultSimplifierConfig())
	require.NoError(t, err)

	// Just under the level-1 threshold at scale 1.0.
	d := chain.Levels[1].DistanceThreshold * 0.9
	assert.Equal(t, 0, SelectLevel(d, chain, 1.0))
	// Raising the scale pushes the same distance past the boundary.
	assert.Equal(t, 1, SelectLevel(d, chain, 1.3))
	// Lowering it keeps detail at larger distances.
	far := chain.Levels[1].DistanceThreshold * 1.5
	assert.Equal(t, 1, SelectLevel(far, chain, 1.0))
	assert.Equal(t, 0, SelectLevel(far, chain, 0.5))
}

func TestSelectLevel_DegenerateInputs(t *testing.T) {
	chain, err := Simplify(gridMesh(8), DefaultSimplifierConfig())
	require.NoError(t, err)

	nan := float32(math.NaN())
	assert.Equal(t, 0, SelectLevel(nan, chain, 1.0), "NaN distance clamps to zero")
	assert.Equal(t, 0, SelectLevel(-50, chain, 1.0), "negative distance clamps to zero")
	assert.Equal(t, len(chain.Levels)-1, SelectLevel(1e30, chain, 1.0), "huge distance clamps to coarsest")
	assert.Equal(t, 0, SelectLevel(100, nil, 1.0))
}

func TestSelectLevel_Deterministic(t *testing.T) {
	chain, err := Simplify(gridMesh(8), DefaultSimplifierConfig())
	require.NoError(t, err)

	first := SelectLevel(123.4, chain, 1.2)
	for i := 0; i < 100; i++ {
		if got := SelectLevel(123.4, chain, 1.2); got != first {
			t.Fatalf("selection changed across calls: %d vs %d", got, first)
		}
	}
}
