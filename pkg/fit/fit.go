// Package fit turns torso keypoints into the rectangle a garment is drawn into.
package fit

import (
	"fmt"
	"math"

	"github.com/menta2k/virtual-tryon/pkg/types"
)

// Default multipliers applied to the torso box
const (
	DefaultWidthMultiplier  = 1.5
	DefaultHeightMultiplier = 1.8
	DefaultVerticalOffset   = 0.1
)

// Config holds the garment sizing multipliers
type Config struct {
	// WidthMultiplier scales the shoulder width into the garment width
	WidthMultiplier float64
	// HeightMultiplier scales the shoulder-to-hip height into the garment height
	HeightMultiplier float64
	// VerticalOffset lifts the garment above the shoulder line, as a fraction of its height
	VerticalOffset float64
}

// DefaultConfig returns the standard multipliers
func DefaultConfig() Config {
	return Config{
		WidthMultiplier:  DefaultWidthMultiplier,
		HeightMultiplier: DefaultHeightMultiplier,
		VerticalOffset:   DefaultVerticalOffset,
	}
}

// Calculator computes garment placement. It holds no state beyond its config.
type Calculator struct {
	config Config
}

// New creates a Calculator with the default multipliers
func New() *Calculator {
	return &Calculator{config: DefaultConfig()}
}

// NewWithConfig creates a Calculator with custom multipliers
func NewWithConfig(config Config) *Calculator {
	return &Calculator{config: config}
}

// Config returns the calculator's multipliers
func (c *Calculator) Config() Config {
	return c.config
}

// NewScaleFactors derives display/raw scale factors. Both must be positive and finite.
func NewScaleFactors(displayWidth, displayHeight, rawWidth, rawHeight int) (types.ScaleFactors, error) {
	if rawWidth <= 0 || rawHeight <= 0 {
		return types.ScaleFactors{}, fmt.Errorf("invalid raw dimensions %dx%d", rawWidth, rawHeight)
	}
	s := types.ScaleFactors{
		ScaleX: float64(displayWidth) / float64(rawWidth),
		ScaleY: float64(displayHeight) / float64(rawHeight),
	}
	if !validScale(s.ScaleX) || !validScale(s.ScaleY) {
		return types.ScaleFactors{}, fmt.Errorf("invalid scale factors %vx%v", s.ScaleX, s.ScaleY)
	}
	return s, nil
}

func validScale(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Measurements are the intermediate values behind a fit rectangle, in display coordinates
type Measurements struct {
	LeftShoulder  types.Keypoint
	RightShoulder types.Keypoint
	LeftHip       types.Keypoint
	RightHip      types.Keypoint

	CenterX       float64
	TorsoY        float64
	ShoulderWidth float64
	TorsoHeight   float64
	DressWidth    float64
	DressHeight   float64
	DressX        float64
	DressY        float64
}

// Rect returns the fit rectangle described by the measurements
func (m Measurements) Rect() types.FitRectangle {
	return types.FitRectangle{X: m.DressX, Y: m.DressY, Width: m.DressWidth, Height: m.DressHeight}
}

// Measure scales the keypoints and derives every placement value
func (c *Calculator) Measure(kp types.RequiredKeypoints, scale types.ScaleFactors) Measurements {
	ls := scaleKeypoint(kp.LeftShoulder, scale)
	rs := scaleKeypoint(kp.RightShoulder, scale)
	lh := scaleKeypoint(kp.LeftHip, scale)
	rh := scaleKeypoint(kp.RightHip, scale)

	m := Measurements{
		LeftShoulder:  ls,
		RightShoulder: rs,
		LeftHip:       lh,
		RightHip:      rh,
		CenterX:       (ls.X + rs.X) / 2,
		TorsoY:        (ls.Y + lh.Y) / 2,
		ShoulderWidth: math.Abs(rs.X - ls.X),
		TorsoHeight:   math.Abs(lh.Y - ls.Y),
	}
	m.DressWidth = m.ShoulderWidth * c.config.WidthMultiplier
	m.DressHeight = m.TorsoHeight * c.config.HeightMultiplier
	m.DressX = m.CenterX - m.DressWidth/2
	m.DressY = ls.Y - m.DressHeight*c.config.VerticalOffset
	return m
}

// ComputeFit returns the rectangle the garment is drawn into.
// Coincident shoulders give a zero-width rectangle.
func (c *Calculator) ComputeFit(kp types.RequiredKeypoints, scale types.ScaleFactors) types.FitRectangle {
	return c.Measure(kp, scale).Rect()
}

// ScaleKeypoints maps keypoints into display coordinates
func ScaleKeypoints(kps []types.Keypoint, scale types.ScaleFactors) []types.Keypoint {
	out := make([]types.Keypoint, len(kps))
	for i, kp := range kps {
		out[i] = scaleKeypoint(kp, scale)
	}
	return out
}

func scaleKeypoint(kp types.Keypoint, scale types.ScaleFactors) types.Keypoint {
	kp.X *= scale.ScaleX
	kp.Y *= scale.ScaleY
	return kp
}
