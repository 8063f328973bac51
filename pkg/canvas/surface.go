// Package canvas implements the display surface the try-on result is drawn on.
package canvas

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// BlendMode selects how source pixels combine with the surface
type BlendMode int

const (
	// BlendNormal is source-over compositing
	BlendNormal BlendMode = iota
	// BlendMultiply multiplies source and backdrop channels, darkening the result
	BlendMultiply
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "normal"
	case BlendMultiply:
		return "multiply"
	default:
		return fmt.Sprintf("BlendMode(%d)", int(m))
	}
}

// Composite holds the parameters applied to subsequent draws
type Composite struct {
	Alpha float64
	Mode  BlendMode
}

// DefaultComposite is full opacity, normal blending
var DefaultComposite = Composite{Alpha: 1.0, Mode: BlendNormal}

// Surface is a resizable RGBA drawing surface with canvas-style compositing state
type Surface struct {
	mu        sync.Mutex
	img       *image.NRGBA
	composite Composite
}

// NewSurface creates an empty surface of the given size
func NewSurface(width, height int) *Surface {
	return &Surface{
		img:       image.NewNRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
		composite: DefaultComposite,
	}
}

// Bounds returns the surface bounds
func (s *Surface) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.Bounds()
}

// Resize replaces the surface with a transparent one of the given size
func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = image.NewNRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
}

// Clear erases all content but keeps the size
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.img.Pix)
}

// Composite returns the current compositing parameters
func (s *Surface) Composite() Composite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composite
}

// SetComposite sets the compositing parameters for subsequent draws
func (s *Surface) SetComposite(c Composite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composite = c
}

// Snapshot returns a copy of the surface pixels
func (s *Surface) Snapshot() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return imaging.Clone(s.img)
}

// Clone returns an independent surface with the same pixels and default compositing
func (s *Surface) Clone() *Surface {
	return &Surface{img: s.Snapshot(), composite: DefaultComposite}
}

// ReplaceWith copies the pixels and size of other into s
func (s *Surface) ReplaceWith(other *Surface) {
	snap := other.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = snap
}

// DrawImage draws src scaled into dst using the current compositing parameters.
// An empty dst draws nothing.
func (s *Surface) DrawImage(src image.Image, dst image.Rectangle) error {
	if src == nil {
		return fmt.Errorf("canvas: nil source image")
	}
	if src.Bounds().Empty() {
		return fmt.Errorf("canvas: empty source image")
	}
	if dst.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.composite
	if c.Alpha < 0 || c.Alpha > 1 || math.IsNaN(c.Alpha) {
		return fmt.Errorf("canvas: alpha %v out of range", c.Alpha)
	}

	visible := dst.Intersect(s.img.Bounds())
	if visible.Empty() || c.Alpha == 0 {
		return nil
	}

	// Only the visible part of dst is materialised, so memory follows the
	// surface size rather than the requested rectangle.
	tmp := image.NewNRGBA(visible)
	sr := src.Bounds()
	if sr.Size() == dst.Size() {
		draw.Draw(tmp, visible, src, sr.Min.Add(visible.Min.Sub(dst.Min)), draw.Src)
	} else {
		sx := float64(dst.Dx()) / float64(sr.Dx())
		sy := float64(dst.Dy()) / float64(sr.Dy())
		s2d := f64.Aff3{
			sx, 0, float64(dst.Min.X) - float64(sr.Min.X)*sx,
			0, sy, float64(dst.Min.Y) - float64(sr.Min.Y)*sy,
		}
		draw.CatmullRom.Transform(tmp, s2d, src, sr, draw.Src, nil)
	}

	// Fast path: opaque normal draws are a plain copy-over.
	if c.Mode == BlendNormal && c.Alpha == 1 {
		draw.Draw(s.img, visible, tmp, visible.Min, draw.Over)
		return nil
	}

	for y := visible.Min.Y; y < visible.Max.Y; y++ {
		for x := visible.Min.X; x < visible.Max.X; x++ {
			sc := tmp.NRGBAAt(x, y)
			i := s.img.PixOffset(x, y)
			px := s.img.Pix[i : i+4 : i+4]
			bc := color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
			out := blend(bc, sc, c)
			px[0], px[1], px[2], px[3] = out.R, out.G, out.B, out.A
		}
	}
	return nil
}

// blend composites src over backdrop per the W3C compositing model:
// Cr = (1-ab)*Cs + ab*B(Cb,Cs), then source-over with as scaled by the global alpha.
func blend(backdrop, src color.NRGBA, c Composite) color.NRGBA {
	as := float64(src.A) / 255 * c.Alpha
	if as == 0 {
		return backdrop
	}
	ab := float64(backdrop.A) / 255

	mix := func(cb, cs uint8) float64 {
		b := float64(cb) / 255
		s := float64(cs) / 255
		var r float64
		switch c.Mode {
		case BlendMultiply:
			r = (1-ab)*s + ab*(s*b)
		default:
			r = s
		}
		// premultiplied source-over
		return as*r + ab*b*(1-as)
	}

	ao := as + ab*(1-as)
	r, g, b := mix(backdrop.R, src.R), mix(backdrop.G, src.G), mix(backdrop.B, src.B)
	return color.NRGBA{
		R: unpremul(r, ao),
		G: unpremul(g, ao),
		B: unpremul(b, ao),
		A: uint8(math.Round(ao * 255)),
	}
}

func unpremul(v, a float64) uint8 {
	if a <= 0 {
		return 0
	}
	return uint8(math.Round(math.Min(1, math.Max(0, v/a)) * 255))
}
