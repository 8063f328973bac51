package pose

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/virtual-tryon/pkg/types"
)

type fakeEstimator struct {
	initErr error
	poses   []types.Pose
	err     error
	seen    image.Rectangle
}

func (f *fakeEstimator) Init(ctx context.Context) error { return f.initErr }

func (f *fakeEstimator) Estimate(ctx context.Context, img image.Image) ([]types.Pose, error) {
	f.seen = img.Bounds()
	return f.poses, f.err
}

type fakeVisionClient struct {
	pingErr error
	reply   string
	prompt  string
	imgB64  string
}

func (f *fakeVisionClient) Ping(ctx context.Context, model string) error { return f.pingErr }

func (f *fakeVisionClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.prompt, f.imgB64 = prompt, imgB64
	return f.reply, nil
}

func torsoPose(score float64) types.Pose {
	return types.Pose{Keypoints: []types.Keypoint{
		{Name: "nose", X: 150, Y: 10, Score: 0.1},
		{Name: types.LeftShoulder, X: 100, Y: 50, Score: score},
		{Name: types.RightShoulder, X: 200, Y: 50, Score: 0.9},
		{Name: types.LeftHip, X: 110, Y: 250, Score: 0.9},
		{Name: types.RightHip, X: 190, Y: 250, Score: 0.9},
	}}
}

func TestDetectSuccess(t *testing.T) {
	est := &fakeEstimator{poses: []types.Pose{torsoPose(0.9), torsoPose(0.1)}}
	a := NewAdapter(est, zaptest.NewLogger(t))

	raw := image.NewNRGBA(image.Rect(0, 0, 1600, 1200))
	kp, err := a.Detect(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, raw.Bounds(), est.seen, "detection runs on the unscaled image")
	assert.Equal(t, 100.0, kp.LeftShoulder.X)
	assert.Equal(t, 200.0, kp.RightShoulder.X)
	assert.Equal(t, 250.0, kp.LeftHip.Y)
	assert.Equal(t, 190.0, kp.RightHip.X)
}

func TestDetectNoPoses(t *testing.T) {
	a := NewAdapter(&fakeEstimator{}, nil)
	_, err := a.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, types.ErrNoPersonDetected)
}

func TestDetectEstimatorError(t *testing.T) {
	cause := errors.New("model crashed")
	a := NewAdapter(&fakeEstimator{err: cause}, nil)
	_, err := a.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, types.ErrNoPersonDetected)
	assert.ErrorIs(t, err, cause)
}

func TestExtractMissingKeypoint(t *testing.T) {
	p := torsoPose(0.9)
	p.Keypoints = p.Keypoints[:4] // drop right_hip

	_, err := NewAdapter(&fakeEstimator{}, nil).Extract(p)
	assert.ErrorIs(t, err, types.ErrNoPersonDetected)
}

func TestExtractConfidenceBoundary(t *testing.T) {
	tests := []struct {
		score float64
		ok    bool
	}{
		{0.0, false},
		{0.29, false},
		{0.3, false},
		{0.30001, true},
		{1.0, true},
	}
	a := NewAdapter(&fakeEstimator{}, nil)
	for _, tt := range tests {
		_, err := a.Extract(torsoPose(tt.score))
		if tt.ok {
			assert.NoError(t, err, "score %v", tt.score)
		} else {
			assert.ErrorIs(t, err, types.ErrLowConfidenceDetection, "score %v", tt.score)
		}
	}
}

func TestExtractIgnoresOtherKeypoints(t *testing.T) {
	// nose has score 0.1 but is not required
	_, err := NewAdapter(&fakeEstimator{}, nil).Extract(torsoPose(0.5))
	assert.NoError(t, err)
}

func TestInitWrapsModelLoadFailure(t *testing.T) {
	a := NewAdapter(&fakeEstimator{initErr: errors.New("connection refused")}, nil)
	assert.ErrorIs(t, a.Init(context.Background()), types.ErrModelLoadFailure)
	assert.NoError(t, NewAdapter(&fakeEstimator{}, nil).Init(context.Background()))
}

func TestVisionEstimator(t *testing.T) {
	c := &fakeVisionClient{reply: "```json\n" + `{"space": "normalized", "poses": [{"keypoints": [
		{"name": "left_shoulder", "x": 0.25, "y": 0.1, "score": 0.9}]}]}` + "\n```"}
	e := NewVisionEstimator(c, VisionConfig{Model: "llava", SendMaxDim: 64})

	require.NoError(t, e.Init(context.Background()))

	poses, err := e.Estimate(context.Background(), image.NewNRGBA(image.Rect(0, 0, 400, 200)))
	require.NoError(t, err)
	require.Len(t, poses, 1)
	assert.Equal(t, 100.0, poses[0].Keypoints[0].X, "mapped to the full-size image, not the one sent")
	assert.Equal(t, 20.0, poses[0].Keypoints[0].Y)
	assert.Equal(t, DefaultPrompt, c.prompt)
	assert.NotEmpty(t, c.imgB64)
}

func TestVisionEstimatorBadReply(t *testing.T) {
	e := NewVisionEstimator(&fakeVisionClient{reply: "there is a person"}, VisionConfig{Model: "llava"})
	_, err := e.Estimate(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	assert.Error(t, err)
}

func TestVisionEstimatorInitFailure(t *testing.T) {
	e := NewVisionEstimator(&fakeVisionClient{pingErr: errors.New("down")}, VisionConfig{Model: "llava"})
	assert.Error(t, e.Init(context.Background()))
}

func TestStaticEstimatorFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.json")
	doc := `{"poses": [{"keypoints": [{"name": "left_hip", "x": 5, "y": 6, "score": 0.8}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	e := NewStaticEstimator(path)
	_, err := e.Estimate(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	assert.Error(t, err, "not initialised")

	require.NoError(t, e.Init(context.Background()))
	poses, err := e.Estimate(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)
	assert.Equal(t, 5.0, poses[0].Keypoints[0].X)
}

func TestStaticEstimatorInitErrors(t *testing.T) {
	assert.Error(t, NewStaticEstimator(filepath.Join(t.TempDir(), "nope.json")).Init(context.Background()))
	assert.Error(t, NewStaticEstimatorFromBytes([]byte(`{"poses": "x"}`)).Init(context.Background()))
}

func TestDetectRejectsPixelValuesInNormalizedDocument(t *testing.T) {
	doc := `{"space": "normalized", "poses": [{"keypoints": [
	  {"name": "left_shoulder",  "x": 300, "y": 200, "score": 0.9},
	  {"name": "right_shoulder", "x": 900, "y": 200, "score": 0.9},
	  {"name": "left_hip",       "x": 350, "y": 900, "score": 0.9},
	  {"name": "right_hip",      "x": 850, "y": 900, "score": 0.9}
	]}]}`
	e := NewStaticEstimatorFromBytes([]byte(doc))
	a := NewAdapter(e, nil)
	require.NoError(t, a.Init(context.Background()))

	_, err := a.Detect(context.Background(), image.NewNRGBA(image.Rect(0, 0, 1200, 1600)))
	assert.ErrorIs(t, err, types.ErrNoPersonDetected)
}
