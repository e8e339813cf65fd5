package meshopt

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// AssetServer caches the pipeline's per-asset build products: the immutable
// LOD chain for each mesh asset and packed texture atlases. MeshSimplifier
// and TextureAtlasPacker run once per asset through this server; everything
// they produce is cached for the asset's lifetime.
type AssetServer struct {
	mu        sync.RWMutex
	chains    map[AssetId]*LODChain
	atlases   map[AssetId]*TextureAtlas
	textures  map[string]TextureSize
	blueprint SimplifierConfig
}

type AssetServerModule struct {
	Simplifier SimplifierConfig
}

func (m AssetServerModule) Install(app *App, cmd *Commands) {
	cfg := m.Simplifier
	if cfg.LevelCount == 0 {
		cfg = DefaultSimplifierConfig()
	}
	cmd.AddResources(&AssetServer{
		chains:    make(map[AssetId]*LODChain),
		atlases:   make(map[AssetId]*TextureAtlas),
		textures:  make(map[string]TextureSize),
		blueprint: cfg,
	})
}

// RegisterMesh builds the LOD chain for a base mesh and caches it under a
// fresh asset id. Degenerate meshes still register, with a single-level
// chain.
func (server *AssetServer) RegisterMesh(base *MeshDefinition) (AssetId, error) {
	chain, err := Simplify(base, server.blueprint)
	if err != nil {
		return "", err
	}

	id := makeAssetId()
	server.mu.Lock()
	server.chains[id] = chain
	server.mu.Unlock()
	return id, nil
}

// RegisterMeshAsync runs the chain build on a background goroutine. The
// result is installed only when the build finishes without error and the
// context is still live, so a cancelled or failed build never exposes a
// partial chain. The returned channel delivers exactly one result.
func (server *AssetServer) RegisterMeshAsync(ctx context.Context, base *MeshDefinition) <-chan AssetBuildResult {
	out := make(chan AssetBuildResult, 1)
	go func() {
		chain, err := Simplify(base, server.blueprint)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			out <- AssetBuildResult{Err: err}
			return
		}
		id := makeAssetId()
		server.mu.Lock()
		server.chains[id] = chain
		server.mu.Unlock()
		out <- AssetBuildResult{ID: id}
	}()
	return out
}

// AssetBuildResult is the outcome of one background asset build.
type AssetBuildResult struct {
	ID  AssetId
	Err error
}

// Chain returns the cached LOD chain for an asset.
func (server *AssetServer) Chain(id AssetId) (*LODChain, bool) {
	server.mu.RLock()
	defer server.mu.RUnlock()
	chain, ok := server.chains[id]
	return chain, ok
}

// RegisterTexture records a source texture's dimensions for later packing.
func (server *AssetServer) RegisterTexture(id string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("assets: texture %q has degenerate size %dx%d", id, width, height)
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	server.textures[id] = TextureSize{ID: id, Width: width, Height: height}
	return nil
}

// BuildAtlas packs every registered texture into one atlas and caches it.
// On PackingOverflowError nothing is cached; the caller decides whether to
// split the set (BuildAtlases) or raise the limit.
func (server *AssetServer) BuildAtlas(maxSize, padding int) (AssetId, *TextureAtlas, error) {
	server.mu.RLock()
	inputs := make([]TextureSize, 0, len(server.textures))
	for _, t := range server.textures {
		inputs = append(inputs, t)
	}
	server.mu.RUnlock()

	atlas, err := Pack(inputs, maxSize, padding)
	if err != nil {
		return "", nil, err
	}

	id := makeAssetId()
	server.mu.Lock()
	server.atlases[id] = atlas
	server.mu.Unlock()
	return id, atlas, nil
}

// BuildAtlases packs the registered textures across however many atlases the
// size limit requires.
func (server *AssetServer) BuildAtlases(maxSize, padding int) ([]AssetId, []*TextureAtlas, error) {
	server.mu.RLock()
	inputs := make([]TextureSize, 0, len(server.textures))
	for _, t := range server.textures {
		inputs = append(inputs, t)
	}
	server.mu.RUnlock()

	atlases, err := PackInto(inputs, maxSize, padding)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]AssetId, len(atlases))
	server.mu.Lock()
	for i, atlas := range atlases {
		ids[i] = makeAssetId()
		server.atlases[ids[i]] = atlas
	}
	server.mu.Unlock()
	return ids, atlases, nil
}

// Atlas returns a cached atlas.
func (server *AssetServer) Atlas(id AssetId) (*TextureAtlas, bool) {
	server.mu.RLock()
	defer server.mu.RUnlock()
	atlas, ok := server.atlases[id]
	return atlas, ok
}

// TotalFootprintBytes sums the full-detail memory estimate of every
// registered chain, the input to residency planning.
func (server *AssetServer) TotalFootprintBytes() int {
	server.mu.RLock()
	defer server.mu.RUnlock()
	total := 0
	for _, chain := range server.chains {
		if len(chain.Levels) > 0 {
			total += chain.Levels[0].MemoryBytes
		}
	}
	return total
}
