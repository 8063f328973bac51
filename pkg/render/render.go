// Package render composites the garment over the photo on the display surface.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/virtual-tryon/pkg/canvas"
	"github.com/menta2k/virtual-tryon/pkg/garment"
	"github.com/menta2k/virtual-tryon/pkg/types"
)

// DefaultGarmentAlpha is the opacity the garment is drawn with
const DefaultGarmentAlpha = 0.8

// Config holds the garment compositing parameters
type Config struct {
	GarmentAlpha float64
	GarmentBlend canvas.BlendMode
}

// DefaultConfig returns 80% opacity with multiply blending
func DefaultConfig() Config {
	return Config{GarmentAlpha: DefaultGarmentAlpha, GarmentBlend: canvas.BlendMultiply}
}

// Renderer draws the try-on composite
type Renderer struct {
	config Config
}

// New creates a Renderer with the default compositing parameters
func New() *Renderer {
	return &Renderer{config: DefaultConfig()}
}

// NewWithConfig creates a Renderer with custom compositing parameters
func NewWithConfig(config Config) *Renderer {
	return &Renderer{config: config}
}

// Render redraws base at full opacity, then draws the garment into rect with the
// garment compositing parameters. The surface's default compositing state is
// restored on every return path.
func (r *Renderer) Render(surface *canvas.Surface, base image.Image, asset *garment.Asset, rect types.FitRectangle) (err error) {
	if !asset.Ready() {
		return types.Errorf(types.KindGarmentAssetNotReady, "garment asset is not loaded")
	}
	if surface == nil || base == nil {
		return types.Errorf(types.KindRenderFailure, "nothing to render onto")
	}
	dst, err := pixelRect(rect)
	if err != nil {
		return types.NewError(types.KindRenderFailure, "invalid fit rectangle", err)
	}

	defer surface.SetComposite(canvas.DefaultComposite)
	defer func() {
		if p := recover(); p != nil {
			err = types.NewError(types.KindRenderFailure, "compositing panicked", fmt.Errorf("%v", p))
		}
	}()

	surface.SetComposite(canvas.DefaultComposite)
	if err := surface.DrawImage(base, surface.Bounds()); err != nil {
		return types.NewError(types.KindRenderFailure, "failed to draw photo", err)
	}

	surface.SetComposite(canvas.Composite{Alpha: r.config.GarmentAlpha, Mode: r.config.GarmentBlend})
	if err := surface.DrawImage(asset.Image(), dst); err != nil {
		return types.NewError(types.KindRenderFailure, "failed to draw garment", err)
	}
	return nil
}

// maxCoordinate bounds fit rectangle edges so rounding to int cannot overflow
const maxCoordinate = 1 << 24

// pixelRect rounds a fit rectangle to surface pixels
func pixelRect(rect types.FitRectangle) (image.Rectangle, error) {
	for _, v := range []float64{rect.X, rect.Y, rect.Width, rect.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}, fmt.Errorf("non-finite value in %+v", rect)
		}
	}
	if rect.Empty() {
		return image.Rectangle{}, nil
	}
	for _, v := range []float64{rect.X, rect.Y, rect.X + rect.Width, rect.Y + rect.Height} {
		if math.Abs(v) > maxCoordinate {
			return image.Rectangle{}, fmt.Errorf("fit rectangle %+v exceeds pixel range", rect)
		}
	}
	x0 := int(math.Round(rect.X))
	y0 := int(math.Round(rect.Y))
	x1 := int(math.Round(rect.X + rect.Width))
	y1 := int(math.Round(rect.Y + rect.Height))
	return image.Rect(x0, y0, x1, y1), nil
}
