package pose

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/menta2k/virtual-tryon/pkg/client"
	"github.com/menta2k/virtual-tryon/pkg/imageio"
	"github.com/menta2k/virtual-tryon/pkg/posejson"
	"github.com/menta2k/virtual-tryon/pkg/types"
)

// Estimator is a pose-estimation capability. Init must succeed before Estimate is used.
type Estimator interface {
	Init(ctx context.Context) error
	Estimate(ctx context.Context, img image.Image) ([]types.Pose, error)
}

// DefaultPrompt asks a vision model for COCO torso keypoints
const DefaultPrompt = `You are a human pose estimator.

Return JSON only:
{
  "space": "normalized",
  "poses": [
    {
      "score": 0.0,
      "keypoints": [
        {"name": "left_shoulder", "x": 0.0, "y": 0.0, "score": 0.0},
        {"name": "right_shoulder", "x": 0.0, "y": 0.0, "score": 0.0},
        {"name": "left_hip", "x": 0.0, "y": 0.0, "score": 0.0},
        {"name": "right_hip", "x": 0.0, "y": 0.0, "score": 0.0}
      ]
    }
  ]
}

HARD RULES
- Coordinates are normalized to [0,1] of the image width and height (NOT pixels).
- "left" and "right" are the person's own left and right, not the viewer's.
- score is your confidence in [0,1] that the keypoint is visible where you placed it.
- List the most prominent person first.
- If no person is visible, return {"space": "normalized", "poses": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionConfig controls how images are sent to a vision model
type VisionConfig struct {
	Model       string
	Prompt      string
	SendFormat  string
	SendMaxDim  int
	SendQuality int
}

// VisionEstimator asks a multimodal model for poses
type VisionEstimator struct {
	client client.VisionClient
	config VisionConfig
}

// NewVisionEstimator creates an estimator backed by a vision model client
func NewVisionEstimator(c client.VisionClient, config VisionConfig) *VisionEstimator {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.SendFormat == "" {
		config.SendFormat = "jpg"
	}
	if config.SendQuality <= 0 {
		config.SendQuality = 85
	}
	return &VisionEstimator{client: c, config: config}
}

// Init checks the model server is reachable and the model available
func (e *VisionEstimator) Init(ctx context.Context) error {
	return e.client.Ping(ctx, e.config.Model)
}

// Estimate returns poses in pixel coordinates relative to img's top-left corner.
// The model may see a downscaled copy; its normalized answer is mapped back to img's size.
func (e *VisionEstimator) Estimate(ctx context.Context, img image.Image) ([]types.Pose, error) {
	imgB64, err := imageio.EncodeBase64(img, e.config.SendFormat, e.config.SendMaxDim, e.config.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for model: %w", err)
	}

	reply, err := e.client.SimpleQuery(ctx, e.config.Model, e.config.Prompt, imgB64)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	poses, err := posejson.ParseModelOutput(reply, b.Dx(), b.Dy())
	if err != nil {
		return nil, fmt.Errorf("unusable model reply: %w", err)
	}
	return poses, nil
}

// StaticEstimator serves poses from a pose document on disk
type StaticEstimator struct {
	path string

	mu  sync.RWMutex
	raw []byte
}

// NewStaticEstimator creates an estimator reading the document at path during Init
func NewStaticEstimator(path string) *StaticEstimator {
	return &StaticEstimator{path: path}
}

// NewStaticEstimatorFromBytes creates an estimator serving an in-memory document
func NewStaticEstimatorFromBytes(doc []byte) *StaticEstimator {
	return &StaticEstimator{raw: doc}
}

// Init reads and validates the pose document
func (e *StaticEstimator) Init(ctx context.Context) error {
	raw := e.document()
	if raw == nil {
		data, err := os.ReadFile(e.path)
		if err != nil {
			return fmt.Errorf("failed to read pose file: %w", err)
		}
		raw = data
	}
	if err := posejson.Validate(raw); err != nil {
		return err
	}

	e.mu.Lock()
	e.raw = raw
	e.mu.Unlock()
	return nil
}

// Estimate returns the document's poses, scaled to img when normalized
func (e *StaticEstimator) Estimate(ctx context.Context, img image.Image) ([]types.Pose, error) {
	raw := e.document()
	if raw == nil {
		return nil, fmt.Errorf("static pose estimator not initialised")
	}
	b := img.Bounds()
	return posejson.Parse(raw, b.Dx(), b.Dy())
}

func (e *StaticEstimator) document() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.raw
}
