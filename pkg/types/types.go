package types

// Keypoint names used for garment fitting (COCO naming)
const (
	LeftShoulder  = "left_shoulder"
	RightShoulder = "right_shoulder"
	LeftHip       = "left_hip"
	RightHip      = "right_hip"
)

// RequiredKeypointNames lists the keypoints a pose must carry to be fitted
var RequiredKeypointNames = []string{LeftShoulder, RightShoulder, LeftHip, RightHip}

// Keypoint is a named landmark in raw-image pixel coordinates
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Pose is one detected person
type Pose struct {
	Score     float64    `json:"score,omitempty"`
	Keypoints []Keypoint `json:"keypoints"`
}

// Find looks up a keypoint by name
func (p Pose) Find(name string) (Keypoint, bool) {
	for _, kp := range p.Keypoints {
		if kp.Name == name {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// RequiredKeypoints holds the four torso keypoints used for fitting
type RequiredKeypoints struct {
	LeftShoulder  Keypoint `json:"left_shoulder"`
	RightShoulder Keypoint `json:"right_shoulder"`
	LeftHip       Keypoint `json:"left_hip"`
	RightHip      Keypoint `json:"right_hip"`
}

// All returns the keypoints in a fixed order
func (r RequiredKeypoints) All() []Keypoint {
	return []Keypoint{r.LeftShoulder, r.RightShoulder, r.LeftHip, r.RightHip}
}

// ScaleFactors maps raw-image coordinates onto the display surface
type ScaleFactors struct {
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
}

// FitRectangle is the region of the display surface the garment is drawn into
type FitRectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rectangle covers no area
func (r FitRectangle) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
