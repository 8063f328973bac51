package render

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/virtual-tryon/pkg/canvas"
	"github.com/menta2k/virtual-tryon/pkg/garment"
	"github.com/menta2k/virtual-tryon/pkg/types"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRenderComposesGarment(t *testing.T) {
	surface := canvas.NewSurface(100, 100)
	base := solid(100, 100, color.NRGBA{200, 200, 200, 255})
	asset := garment.FromImage("dress", solid(10, 10, color.NRGBA{0, 0, 0, 255}))

	err := New().Render(surface, base, asset, types.FitRectangle{X: 20, Y: 20, Width: 40, Height: 50})
	require.NoError(t, err)

	snap := surface.Snapshot()
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, snap.NRGBAAt(5, 5), "outside garment is the photo")
	inside := snap.NRGBAAt(40, 40)
	assert.InDelta(t, 40, int(inside.R), 1, "black multiplied at 0.8 alpha leaves a fifth of the photo")
	assert.Equal(t, canvas.DefaultComposite, surface.Composite())
}

func TestRenderIsRepeatable(t *testing.T) {
	surface := canvas.NewSurface(50, 50)
	base := solid(50, 50, color.NRGBA{180, 180, 180, 255})
	asset := garment.FromImage("dress", solid(5, 5, color.NRGBA{100, 100, 100, 255}))
	rect := types.FitRectangle{X: 10, Y: 10, Width: 20, Height: 20}

	r := New()
	require.NoError(t, r.Render(surface, base, asset, rect))
	first := surface.Snapshot()
	require.NoError(t, r.Render(surface, base, asset, rect))

	assert.Equal(t, first.Pix, surface.Snapshot().Pix, "base layer redraw makes retries idempotent")
}

func TestRenderGarmentNotReady(t *testing.T) {
	surface := canvas.NewSurface(10, 10)
	base := solid(10, 10, color.NRGBA{1, 2, 3, 255})

	err := New().Render(surface, base, garment.NewAsset("pending.png"), types.FitRectangle{Width: 5, Height: 5})
	assert.ErrorIs(t, err, types.ErrGarmentAssetNotReady)
	assert.Equal(t, uint8(0), surface.Snapshot().NRGBAAt(1, 1).A, "nothing drawn")

	err = New().Render(surface, base, nil, types.FitRectangle{Width: 5, Height: 5})
	assert.ErrorIs(t, err, types.ErrGarmentAssetNotReady)
}

func TestRenderZeroWidthDrawsOnlyPhoto(t *testing.T) {
	surface := canvas.NewSurface(10, 10)
	base := solid(10, 10, color.NRGBA{50, 60, 70, 255})
	asset := garment.FromImage("dress", solid(5, 5, color.NRGBA{0, 0, 0, 255}))

	require.NoError(t, New().Render(surface, base, asset, types.FitRectangle{X: 5, Y: 0, Width: 0, Height: 10}))
	assert.Equal(t, color.NRGBA{50, 60, 70, 255}, surface.Snapshot().NRGBAAt(5, 5))
}

func TestRenderRejectsNonFiniteRect(t *testing.T) {
	surface := canvas.NewSurface(10, 10)
	base := solid(10, 10, color.NRGBA{50, 60, 70, 255})
	asset := garment.FromImage("dress", solid(5, 5, color.NRGBA{0, 0, 0, 255}))

	err := New().Render(surface, base, asset, types.FitRectangle{X: math.NaN(), Width: 3, Height: 3})
	assert.ErrorIs(t, err, types.ErrRenderFailure)
	assert.Equal(t, canvas.DefaultComposite, surface.Composite())
}

func TestRenderRestoresCompositeOnDrawFailure(t *testing.T) {
	surface := canvas.NewSurface(10, 10)
	base := solid(10, 10, color.NRGBA{50, 60, 70, 255})
	asset := garment.FromImage("dress", solid(5, 5, color.NRGBA{0, 0, 0, 255}))

	r := NewWithConfig(Config{GarmentAlpha: 2, GarmentBlend: canvas.BlendMultiply})
	err := r.Render(surface, base, asset, types.FitRectangle{Width: 5, Height: 5})

	assert.ErrorIs(t, err, types.ErrRenderFailure)
	assert.Equal(t, canvas.DefaultComposite, surface.Composite())
}

func TestPixelRect(t *testing.T) {
	r, err := pixelRect(types.FitRectangle{X: 74.6, Y: 13.5, Width: 150, Height: 360})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(75, 14, 225, 374), r)
}

func TestRenderOversizedRectAllocatesVisibleArea(t *testing.T) {
	surface := canvas.NewSurface(100, 100)
	base := solid(100, 100, color.NRGBA{200, 200, 200, 255})
	asset := garment.FromImage("dress", solid(10, 10, color.NRGBA{0, 0, 0, 255}))
	rect := types.FitRectangle{X: 50, Y: 50, Width: 6000, Height: 6000}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	err := New().Render(surface, base, asset, rect)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	// a full 6000x6000 NRGBA buffer would be 144MB
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(4<<20))

	snap := surface.Snapshot()
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, snap.NRGBAAt(10, 10))
	assert.InDelta(t, 40, int(snap.NRGBAAt(75, 75).R), 1)
}

func TestPixelRectRejectsOutOfRange(t *testing.T) {
	_, err := pixelRect(types.FitRectangle{X: 10, Y: 10, Width: 1e300, Height: 5})
	assert.Error(t, err)

	_, err = pixelRect(types.FitRectangle{X: -1e12, Y: 0, Width: 5, Height: 5})
	assert.Error(t, err)
}
