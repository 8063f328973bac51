package canvas

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/virtual-tryon/pkg/types"
)

// DebugOverlay draws the scaled keypoints and the fit rectangle over a copy of img.
// Keypoints are expected in img coordinates.
func DebugOverlay(img image.Image, keypoints []types.Keypoint, rect types.FitRectangle) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	gold := color.NRGBA{255, 204, 0, 255}  // fit rectangle
	red := color.NRGBA{255, 0, 0, 255}     // shoulders
	blue := color.NRGBA{0, 170, 255, 255}  // hips
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))
	cross := int(math.Max(4, 0.01*float64(min(w, h))))

	if !rect.Empty() {
		x0 := int(math.Round(rect.X))
		y0 := int(math.Round(rect.Y))
		x1 := int(math.Round(rect.X + rect.Width))
		y1 := int(math.Round(rect.Y + rect.Height))
		drawBox(nrgba, x0, y0, x1, y1, gold, stroke)
	}

	for _, kp := range keypoints {
		c := blue
		if kp.Name == types.LeftShoulder || kp.Name == types.RightShoulder {
			c = red
		}
		px := int(math.Round(kp.X))
		py := int(math.Round(kp.Y))
		drawHLine(nrgba, py, px-cross, px+cross, c)
		drawVLine(nrgba, px, py-cross, py+cross, c)
	}

	return nrgba
}

func drawBox(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA, stroke int) {
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
