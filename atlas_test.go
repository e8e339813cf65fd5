package meshopt

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack_FiveSmallTextures(t *testing.T) {
	textures := []TextureSize{
		{ID: "grass", Width: 64, Height: 64},
		{ID: "rock", Width: 64, Height: 64},
		{ID: "sand", Width: 64, Height: 64},
		{ID: "snow", Width: 64, Height: 64},
		{ID: "dirt", Width: 64, Height: 64},
	}

	atlas, err := Pack(textures, 256, 2)
	require.NoError(t, err)

	assert.LessOrEqual(t, atlas.Width, 256)
	assert.LessOrEqual(t, atlas.Height, 256)
	assert.True(t, isPowerOfTwo(atlas.Width), "atlas width %d", atlas.Width)
	assert.True(t, isPowerOfTwo(atlas.Height), "atlas height %d", atlas.Height)
	require.Len(t, atlas.Rects, 5)

	// Every rect inside the sheet.
	for _, r := range atlas.Rects {
		if r.X < 0 || r.Y < 0 || r.X+r.Width > atlas.Width || r.Y+r.Height > atlas.Height {
			t.Errorf("rect %q out of bounds: %+v in %dx%d", r.SourceID, r, atlas.Width, atlas.Height)
		}
	}

	// No two rects overlap.
	for i := 0; i < len(atlas.Rects); i++ {
		for j := i + 1; j < len(atlas.Rects); j++ {
			a, b := atlas.Rects[i], atlas.Rects[j]
			if a.X < b.X+b.Width && b.X < a.X+a.Width &&
				a.Y < b.Y+b.Height && b.Y < a.Y+a.Height {
				t.Errorf("rects %q and %q overlap", a.SourceID, b.SourceID)
			}
		}
	}

	assert.Greater(t, atlas.Efficiency, float32(0))
	assert.LessOrEqual(t, atlas.Efficiency, float32(1))
}

func TestPack_UVRemapAddressesInterior(t *testing.T) {
	textures := []TextureSize{
		{ID: "a", Width: 32, Height: 32},
		{ID: "b", Width: 16, Height: 48},
	}
	atlas, err := Pack(textures, 128, 2)
	require.NoError(t, err)

	for _, r := range atlas.Rects {
		remap, ok := atlas.Remaps[r.SourceID]
		require.True(t, ok, "remap missing for %q", r.SourceID)

		// uv (0,0) and (1,1) must land inside the rect's unpadded interior.
		x0 := remap.Offset.X() * float32(atlas.Width)
		y0 := remap.Offset.Y() * float32(atlas.Height)
		x1 := (remap.Offset.X() + remap.Scale.X()) * float32(atlas.Width)
		y1 := (remap.Offset.Y() + remap.Scale.Y()) * float32(atlas.Height)

		assert.InDelta(t, float32(r.X+2), x0, 1e-3)
		assert.InDelta(t, float32(r.Y+2), y0, 1e-3)
		assert.InDelta(t, float32(r.X+r.Width-2), x1, 1e-3)
		assert.InDelta(t, float32(r.Y+r.Height-2), y1, 1e-3)
	}
}

func TestPack_Overflow(t *testing.T) {
	textures := []TextureSize{{ID: "huge", Width: 300, Height: 300}}
	_, err := Pack(textures, 256, 2)
	require.Error(t, err)

	var overflow *PackingOverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, "huge", overflow.SourceID)
	assert.Equal(t, 256, overflow.MaxSize)
}

func TestPack_RejectsBadInputs(t *testing.T) {
	_, err := Pack(nil, 256, 0)
	assert.Error(t, err, "empty input")
	_, err = Pack([]TextureSize{{ID: "a", Width: 8, Height: 8}}, 100, 0)
	assert.Error(t, err, "non power-of-two limit")
	_, err = Pack([]TextureSize{{ID: "a", Width: 0, Height: 8}}, 256, 0)
	assert.Error(t, err, "degenerate texture")
	_, err = Pack([]TextureSize{{ID: "a", Width: 8, Height: 8}}, 256, -1)
	assert.Error(t, err, "negative padding")
}

func TestPackInto_SplitsAcrossAtlases(t *testing.T) {
	// Four 100x100 textures cannot share one 128x128 sheet.
	textures := []TextureSize{
		{ID: "a", Width: 100, Height: 100},
		{ID: "b", Width: 100, Height: 100},
		{ID: "c", Width: 100, Height: 100},
		{ID: "d", Width: 100, Height: 100},
	}
	atlases, err := PackInto(textures, 128, 0)
	require.NoError(t, err)
	assert.Len(t, atlases, 4)

	seen := map[string]bool{}
	for _, atlas := range atlases {
		for _, r := range atlas.Rects {
			assert.False(t, seen[r.SourceID], "texture %q packed twice", r.SourceID)
			seen[r.SourceID] = true
		}
	}
	assert.Len(t, seen, 4, "every texture placed exactly once")
}

func TestPackInto_SingleOversizeStillFails(t *testing.T) {
	textures := []TextureSize{{ID: "boss", Width: 4096, Height: 4096}}
	_, err := PackInto(textures, 1024, 2)
	require.Error(t, err)
	var overflow *PackingOverflowError
	assert.True(t, errors.As(err, &overflow))
}

func TestCompositeRGBA(t *testing.T) {
	textures := []TextureSize{
		{ID: "red", Width: 8, Height: 8},
		{ID: "blue", Width: 8, Height: 8},
	}
	atlas, err := Pack(textures, 64, 1)
	require.NoError(t, err)

	solid := func(c color.RGBA) image.Image {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				img.SetRGBA(x, y, c)
			}
		}
		return img
	}
	sources := map[string]image.Image{
		"red":  solid(color.RGBA{R: 255, A: 255}),
		"blue": solid(color.RGBA{B: 255, A: 255}),
	}

	sheet, err := CompositeRGBA(atlas, sources, 1)
	require.NoError(t, err)
	assert.Equal(t, atlas.Width, sheet.Bounds().Dx())
	assert.Equal(t, atlas.Height, sheet.Bounds().Dy())

	// Sample the interior of each placed rect.
	for _, r := range atlas.Rects {
		got := sheet.RGBAAt(r.X+r.Width/2, r.Y+r.Height/2)
		switch r.SourceID {
		case "red":
			assert.Equal(t, uint8(255), got.R)
		case "blue":
			assert.Equal(t, uint8(255), got.B)
		}
	}
}

func TestCompositeRGBA_MissingSource(t *testing.T) {
	atlas, err := Pack([]TextureSize{{ID: "a", Width: 8, Height: 8}}, 64, 0)
	require.NoError(t, err)

	_, err = CompositeRGBA(atlas, map[string]image.Image{}, 0)
	assert.Error(t, err)
}
