package meshopt

import (
	"fmt"
	"image"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

// TextureSize describes one packer input: a source texture id plus its pixel
// dimensions. The pipeline never needs the texels to plan a layout.
type TextureSize struct {
	ID     string
	Width  int
	Height int
}

// AtlasRect is the placement of one source texture inside an atlas, padding
// margin already included in X/Y/Width/Height.
type AtlasRect struct {
	SourceID string
	X, Y     int
	Width    int
	Height   int
}

// UVRemap transforms a source texture's UV coordinates into atlas space:
// atlasUV = uv*Scale + Offset. Consumed by the material system.
type UVRemap struct {
	Offset mgl32.Vec2
	Scale  mgl32.Vec2
}

// TextureAtlas is the result of packing: a power-of-two sheet size, the
// placed rects and the packing efficiency in (0,1]. Immutable once built.
type TextureAtlas struct {
	Width      int
	Height     int
	Rects      []AtlasRect
	Remaps     map[string]UVRemap
	Efficiency float32
}

// PackingOverflowError reports a texture that cannot be placed inside the
// size limit. Non-fatal: callers resolve it by splitting the set (see
// PackInto) or raising the limit.
type PackingOverflowError struct {
	SourceID string
	Width    int
	Height   int
	MaxSize  int
}

func (e *PackingOverflowError) Error() string {
	return fmt.Sprintf("atlas: texture %q (%dx%d incl. padding) does not fit in %dx%d",
		e.SourceID, e.Width, e.Height, e.MaxSize, e.MaxSize)
}

// packNode is one region of the binary packing tree. A used node keeps the
// remainder to the right of and below the placed rect as children.
type packNode struct {
	x, y, w, h int
	used       bool
	right      *packNode
	down       *packNode
}

// insert finds the smallest free node that can hold w x h, depth first, and
// splits it. Returns the placement origin, or ok=false when nothing fits.
func (n *packNode) insert(w, h int) (x, y int, ok bool) {
	if n.used {
		if n.right != nil {
			if x, y, ok = n.right.insert(w, h); ok {
				return x, y, true
			}
		}
		if n.down != nil {
			return n.down.insert(w, h)
		}
		return 0, 0, false
	}

	if w > n.w || h > n.h {
		return 0, 0, false
	}

	n.used = true
	if n.w > w {
		n.right = &packNode{x: n.x + w, y: n.y, w: n.w - w, h: h}
	}
	if n.h > h {
		n.down = &packNode{x: n.x, y: n.y + h, w: n.w, h: n.h - h}
	}
	return n.x, n.y, true
}

// Pack bin-packs the given textures into a single atlas no larger than
// maxSize x maxSize, with padding pixels added around every texture. Inputs
// are sorted by decreasing max dimension before placement. The reported size
// is the minimal power of two enclosing every placed rect. Packing never
// drops a texture: if one cannot be placed the whole operation fails with a
// *PackingOverflowError.
func Pack(textures []TextureSize, maxSize, padding int) (*TextureAtlas, error) {
	if len(textures) == 0 {
		return nil, fmt.Errorf("atlas: no textures to pack")
	}
	if maxSize <= 0 || !isPowerOfTwo(maxSize) {
		return nil, fmt.Errorf("atlas: max size %d is not a power of two", maxSize)
	}
	if padding < 0 {
		return nil, fmt.Errorf("atlas: negative padding %d", padding)
	}

	sorted := make([]TextureSize, len(textures))
	copy(sorted, textures)
	sort.SliceStable(sorted, func(a, b int) bool {
		return maxDim(sorted[a]) > maxDim(sorted[b])
	})

	root := &packNode{w: maxSize, h: maxSize}
	atlas := &TextureAtlas{Remaps: make(map[string]UVRemap, len(sorted))}
	usedArea := 0
	extentW, extentH := 0, 0

	for _, tex := range sorted {
		if tex.Width <= 0 || tex.Height <= 0 {
			return nil, fmt.Errorf("atlas: texture %q has degenerate size %dx%d", tex.ID, tex.Width, tex.Height)
		}
		pw := tex.Width + padding*2
		ph := tex.Height + padding*2

		x, y, ok := root.insert(pw, ph)
		if !ok {
			return nil, &PackingOverflowError{SourceID: tex.ID, Width: pw, Height: ph, MaxSize: maxSize}
		}

		atlas.Rects = append(atlas.Rects, AtlasRect{
			SourceID: tex.ID,
			X:        x,
			Y:        y,
			Width:    pw,
			Height:   ph,
		})
		usedArea += tex.Width * tex.Height
		if x+pw > extentW {
			extentW = x + pw
		}
		if y+ph > extentH {
			extentH = y + ph
		}
	}

	atlas.Width = nextPowerOfTwo(extentW)
	atlas.Height = nextPowerOfTwo(extentH)

	// UV remaps address the unpadded interior of each rect.
	fw, fh := float32(atlas.Width), float32(atlas.Height)
	for _, r := range atlas.Rects {
		atlas.Remaps[r.SourceID] = UVRemap{
			Offset: mgl32.Vec2{float32(r.X+padding) / fw, float32(r.Y+padding) / fh},
			Scale:  mgl32.Vec2{float32(r.Width-padding*2) / fw, float32(r.Height-padding*2) / fh},
		}
	}

	atlas.Efficiency = float32(usedArea) / (fw * fh)
	return atlas, nil
}

// PackInto packs a texture set across as many atlases as needed, splitting on
// overflow. This is the standard resolution for PackingOverflowError when the
// size limit is fixed. A single texture too large for maxSize still fails.
func PackInto(textures []TextureSize, maxSize, padding int) ([]*TextureAtlas, error) {
	remaining := make([]TextureSize, len(textures))
	copy(remaining, textures)
	sort.SliceStable(remaining, func(a, b int) bool {
		return maxDim(remaining[a]) > maxDim(remaining[b])
	})

	var atlases []*TextureAtlas
	for len(remaining) > 0 {
		atlas, err := Pack(remaining, maxSize, padding)
		if err == nil {
			return append(atlases, atlas), nil
		}

		// Bisect until a packable prefix is found. Largest-first ordering
		// keeps the prefix meaningful.
		n := len(remaining)
		for {
			n = n / 2
			if n == 0 {
				return nil, err
			}
			atlas, err = Pack(remaining[:n], maxSize, padding)
			if err == nil {
				break
			}
		}
		atlases = append(atlases, atlas)
		remaining = remaining[n:]
	}
	return atlases, nil
}

// CompositeRGBA blits the given source images into one RGBA sheet laid out by
// the atlas. Missing sources fail the whole composite; a partially drawn
// sheet is never returned.
func CompositeRGBA(atlas *TextureAtlas, sources map[string]image.Image, padding int) (*image.RGBA, error) {
	for _, r := range atlas.Rects {
		if _, ok := sources[r.SourceID]; !ok {
			return nil, fmt.Errorf("atlas: missing source image %q", r.SourceID)
		}
	}

	sheet := image.NewRGBA(image.Rect(0, 0, atlas.Width, atlas.Height))
	for _, r := range atlas.Rects {
		src := sources[r.SourceID]
		dst := image.Rect(r.X+padding, r.Y+padding, r.X+r.Width-padding, r.Y+r.Height-padding)
		draw.NearestNeighbor.Scale(sheet, dst, src, src.Bounds(), draw.Src, nil)
	}
	return sheet, nil
}

func maxDim(t TextureSize) int {
	if t.Width > t.Height {
		return t.Width
	}
	return t.Height
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}
