// Package pose extracts the torso keypoints needed for garment fitting from a
// pose-estimation capability.
package pose

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/virtual-tryon/pkg/types"
)

// DefaultConfidenceThreshold is the exclusive lower bound on keypoint scores
const DefaultConfidenceThreshold = 0.3

// Adapter runs an Estimator and validates the result for fitting
type Adapter struct {
	estimator Estimator
	threshold float64
	logger    *zap.Logger
}

// NewAdapter creates an Adapter with the default confidence threshold
func NewAdapter(estimator Estimator, logger *zap.Logger) *Adapter {
	return NewAdapterWithThreshold(estimator, DefaultConfidenceThreshold, logger)
}

// NewAdapterWithThreshold creates an Adapter with a custom confidence threshold
func NewAdapterWithThreshold(estimator Estimator, threshold float64, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{estimator: estimator, threshold: threshold, logger: logger}
}

// Init initialises the underlying estimator
func (a *Adapter) Init(ctx context.Context) error {
	if err := a.estimator.Init(ctx); err != nil {
		return types.NewError(types.KindModelLoadFailure, "pose model failed to initialise", err)
	}
	return nil
}

// Detect runs pose estimation on the original, unscaled image and returns the
// first pose's torso keypoints in raw-image coordinates.
func (a *Adapter) Detect(ctx context.Context, raw image.Image) (types.RequiredKeypoints, error) {
	poses, err := a.estimator.Estimate(ctx, raw)
	if err != nil {
		return types.RequiredKeypoints{}, types.NewError(types.KindNoPersonDetected, "pose estimation failed", err)
	}
	if len(poses) == 0 {
		return types.RequiredKeypoints{}, types.Errorf(types.KindNoPersonDetected, "no person detected")
	}
	if len(poses) > 1 {
		a.logger.Debug("multiple poses detected, using the first", zap.Int("poses", len(poses)))
	}

	return a.Extract(poses[0])
}

// Extract pulls the four required keypoints from a pose and applies the confidence gate
func (a *Adapter) Extract(p types.Pose) (types.RequiredKeypoints, error) {
	found := make(map[string]types.Keypoint, len(types.RequiredKeypointNames))
	for _, name := range types.RequiredKeypointNames {
		kp, ok := p.Find(name)
		if !ok {
			return types.RequiredKeypoints{}, types.Errorf(types.KindNoPersonDetected, "keypoint %s missing", name)
		}
		found[name] = kp
	}

	for _, name := range types.RequiredKeypointNames {
		if kp := found[name]; !(kp.Score > a.threshold) {
			return types.RequiredKeypoints{}, types.Errorf(types.KindLowConfidenceDetection,
				"keypoint %s confidence %.2f is not above %.2f", name, kp.Score, a.threshold)
		}
	}

	return types.RequiredKeypoints{
		LeftShoulder:  found[types.LeftShoulder],
		RightShoulder: found[types.RightShoulder],
		LeftHip:       found[types.LeftHip],
		RightHip:      found[types.RightHip],
	}, nil
}
