package meshopt

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Procedural mesh sources. Each generator builds a MeshDefinition, runs it
// through the simplifier and caches the resulting chain, so callers get a
// ready-to-render asset id back.

// CreateSphereMesh builds a UV sphere with the given ring/segment
// resolution. Triangle count grows quadratically with resolution: 16 gives
// roughly 450 triangles, 24 roughly 1050.
func (server *AssetServer) CreateSphereMesh(radius float32, resolution int, color mgl32.Vec4) (AssetId, error) {
	if resolution < 3 {
		resolution = 3
	}
	rings := resolution
	segments := resolution * 2

	mesh := MeshDefinition{Color: color}
	for ring := 0; ring <= rings; ring++ {
		phi := math.Pi * float64(ring) / float64(rings)
		for seg := 0; seg <= segments; seg++ {
			theta := 2 * math.Pi * float64(seg) / float64(segments)
			nx := float32(math.Sin(phi) * math.Cos(theta))
			ny := float32(math.Cos(phi))
			nz := float32(math.Sin(phi) * math.Sin(theta))
			mesh.Vertices = append(mesh.Vertices, mgl32.Vec3{nx * radius, ny * radius, nz * radius})
			mesh.Normals = append(mesh.Normals, mgl32.Vec3{nx, ny, nz})
			mesh.UVs = append(mesh.UVs, mgl32.Vec2{
				float32(seg) / float32(segments),
				float32(ring) / float32(rings),
			})
		}
	}

	stride := uint32(segments + 1)
	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			a := uint32(ring)*stride + uint32(seg)
			b := a + stride
			mesh.Indices = append(mesh.Indices,
				a, b, a+1,
				a+1, b, b+1,
			)
		}
	}
	return server.RegisterMesh(&mesh)
}

// CreateCubeMesh builds an axis-aligned box centred at the origin, with flat
// per-face normals.
func (server *AssetServer) CreateCubeMesh(sizeX, sizeY, sizeZ float32, color mgl32.Vec4) (AssetId, error) {
	hx, hy, hz := sizeX*0.5, sizeY*0.5, sizeZ*0.5

	type face struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}
	faces := []face{
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}}},
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{hx, -hy, hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-hx, -hy, -hz}, {-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}, {-hx, hy, -hz}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}, {-hx, -hy, hz}}},
	}

	mesh := MeshDefinition{Color: color}
	uv := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for _, f := range faces {
		base := uint32(len(mesh.Vertices))
		for i, corner := range f.corners {
			mesh.Vertices = append(mesh.Vertices, corner)
			mesh.Normals = append(mesh.Normals, f.normal)
			mesh.UVs = append(mesh.UVs, uv[i])
		}
		mesh.Indices = append(mesh.Indices,
			base, base+1, base+2,
			base, base+2, base+3,
		)
	}
	return server.RegisterMesh(&mesh)
}

// CreateConeMesh builds a cone pointing up the Y axis with a closed base.
func (server *AssetServer) CreateConeMesh(radius, height float32, segments int, color mgl32.Vec4) (AssetId, error) {
	if segments < 3 {
		segments = 3
	}

	mesh := MeshDefinition{Color: color}
	apex := mgl32.Vec3{0, height, 0}
	baseCenter := mgl32.Vec3{0, 0, 0}

	rim := make([]mgl32.Vec3, segments)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		rim[i] = mgl32.Vec3{radius * float32(math.Cos(theta)), 0, radius * float32(math.Sin(theta))}
	}

	slant := float32(math.Hypot(float64(radius), float64(height)))
	for i := 0; i < segments; i++ {
		next := (i + 1) % segments
		// side triangle, flat shaded per segment
		mid := rim[i].Add(rim[next]).Mul(0.5)
		normal := mgl32.Vec3{mid.X() * height / slant, radius / slant, mid.Z() * height / slant}
		if normal.Len() > 0 {
			normal = normal.Normalize()
		}
		base := uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, apex, rim[next], rim[i])
		mesh.Normals = append(mesh.Normals, normal, normal, normal)
		mesh.UVs = append(mesh.UVs,
			mgl32.Vec2{0.5, 1},
			mgl32.Vec2{float32(next) / float32(segments), 0},
			mgl32.Vec2{float32(i) / float32(segments), 0},
		)
		mesh.Indices = append(mesh.Indices, base, base+1, base+2)

		// base triangle
		down := mgl32.Vec3{0, -1, 0}
		base = uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, baseCenter, rim[i], rim[next])
		mesh.Normals = append(mesh.Normals, down, down, down)
		mesh.UVs = append(mesh.UVs,
			mgl32.Vec2{0.5, 0.5},
			mgl32.Vec2{float32(i) / float32(segments), 0},
			mgl32.Vec2{float32(next) / float32(segments), 0},
		)
		mesh.Indices = append(mesh.Indices, base, base+1, base+2)
	}
	return server.RegisterMesh(&mesh)
}

// CreatePlaneMesh builds a subdivided XZ ground plane centred at the origin.
func (server *AssetServer) CreatePlaneMesh(sizeX, sizeZ float32, subdivisions int, color mgl32.Vec4) (AssetId, error) {
	if subdivisions < 1 {
		subdivisions = 1
	}

	mesh := MeshDefinition{Color: color}
	up := mgl32.Vec3{0, 1, 0}
	for zi := 0; zi <= subdivisions; zi++ {
		for xi := 0; xi <= subdivisions; xi++ {
			u := float32(xi) / float32(subdivisions)
			v := float32(zi) / float32(subdivisions)
			mesh.Vertices = append(mesh.Vertices, mgl32.Vec3{
				(u - 0.5) * sizeX,
				0,
				(v - 0.5) * sizeZ,
			})
			mesh.Normals = append(mesh.Normals, up)
			mesh.UVs = append(mesh.UVs, mgl32.Vec2{u, v})
		}
	}

	stride := uint32(subdivisions + 1)
	for zi := 0; zi < subdivisions; zi++ {
		for xi := 0; xi < subdivisions; xi++ {
			a := uint32(zi)*stride + uint32(xi)
			b := a + stride
			mesh.Indices = append(mesh.Indices,
				a, b, a+1,
				a+1, b, b+1,
			)
		}
	}
	return server.RegisterMesh(&mesh)
}
