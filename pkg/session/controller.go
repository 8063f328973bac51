package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/virtual-tryon/internal/metrics"
	"github.com/menta2k/virtual-tryon/pkg/canvas"
	"github.com/menta2k/virtual-tryon/pkg/fit"
	"github.com/menta2k/virtual-tryon/pkg/garment"
	"github.com/menta2k/virtual-tryon/pkg/ingest"
	"github.com/menta2k/virtual-tryon/pkg/pose"
	"github.com/menta2k/virtual-tryon/pkg/render"
	"github.com/menta2k/virtual-tryon/pkg/status"
	"github.com/menta2k/virtual-tryon/pkg/types"
)

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Ingest              ingest.Config
	ConfidenceThreshold float64
	Fit                 fit.Config
	Render              render.Config

	Logger   *zap.Logger
	Reporter status.Reporter
	Metrics  *metrics.Metrics
}

// Outcome describes a successful try-on
type Outcome struct {
	Keypoints    types.RequiredKeypoints
	Scale        types.ScaleFactors
	Measurements fit.Measurements
	Rect         types.FitRectangle
	Duration     time.Duration
}

// Controller owns one session: its state, display surface, photo and garment
type Controller struct {
	id       string
	logger   *zap.Logger
	reporter status.Reporter
	metrics  *metrics.Metrics

	ingester *ingest.Ingester
	adapter  *pose.Adapter
	calc     *fit.Calculator
	renderer *render.Renderer
	surface  *canvas.Surface

	mu          sync.Mutex
	state       SessionState
	photo       *ingest.Decoded
	garment     *garment.Asset
	last        *Outcome
	modelDone   chan struct{}
	garmentDone chan struct{}
}

// NewController creates a session around a pose estimator
func NewController(estimator pose.Estimator, opts Options) *Controller {
	id := uuid.NewString()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", id))

	reporter := opts.Reporter
	if reporter == nil {
		reporter = status.Discard
	}

	ingestCfg := opts.Ingest
	if ingestCfg == (ingest.Config{}) {
		ingestCfg = ingest.DefaultConfig()
	}
	threshold := opts.ConfidenceThreshold
	if threshold == 0 {
		threshold = pose.DefaultConfidenceThreshold
	}
	fitCfg := opts.Fit
	if fitCfg == (fit.Config{}) {
		fitCfg = fit.DefaultConfig()
	}
	renderCfg := opts.Render
	if renderCfg == (render.Config{}) {
		renderCfg = render.DefaultConfig()
	}

	return &Controller{
		id:       id,
		logger:   logger,
		reporter: reporter,
		metrics:  opts.Metrics,
		ingester: ingest.NewWithConfig(ingestCfg),
		adapter:  pose.NewAdapterWithThreshold(estimator, threshold, logger),
		calc:     fit.NewWithConfig(fitCfg),
		renderer: render.NewWithConfig(renderCfg),
		surface:  canvas.NewSurface(0, 0),
		state:    NewSessionState(),
	}
}

// ID returns the session identifier
func (c *Controller) ID() string {
	return c.id
}

// Start begins loading the pose model in the background. Calls after the first are ignored.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.modelDone != nil {
		c.mu.Unlock()
		return
	}
	done := make(chan struct{})
	c.modelDone = done
	c.state = c.state.StartModelLoad()
	c.mu.Unlock()

	c.reporter.Report("Loading pose model...", status.Info)
	c.logger.Info("loading pose model")

	go func() {
		defer close(done)
		err := c.adapter.Init(ctx)

		c.mu.Lock()
		c.state = c.state.ModelLoaded(err)
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("pose model failed to load", zap.Error(err))
			c.reporter.Report("Failed to load the pose model. Please reload.", status.Error)
			return
		}
		c.logger.Info("pose model ready")
		c.reporter.Report("Pose model ready", status.Success)
	}()
}

// LoadGarment starts loading the garment from a file path or URL in the background
func (c *Controller) LoadGarment(ctx context.Context, source string) {
	asset := garment.NewAsset(source)
	done := make(chan struct{})

	c.mu.Lock()
	c.garment = asset
	c.garmentDone = done
	c.state = c.state.GarmentLoading()
	c.mu.Unlock()

	go func() {
		defer close(done)
		err := asset.Load(ctx)
		if err != nil {
			err = types.NewError(types.KindGarmentAssetNotReady, "garment failed to load", err)
		}

		c.mu.Lock()
		current := c.garment == asset
		if current {
			c.state = c.state.GarmentLoaded(err)
		}
		c.mu.Unlock()

		if !current {
			return
		}
		if err != nil {
			c.logger.Error("garment failed to load", zap.String("source", source), zap.Error(err))
			c.reporter.Report("Failed to load the garment image", status.Error)
			return
		}
		c.logger.Debug("garment loaded", zap.String("source", source))
	}()
}

// UseGarment installs an already loaded garment asset
func (c *Controller) UseGarment(asset *garment.Asset) {
	var err error
	if !asset.Ready() {
		err = types.Errorf(types.KindGarmentAssetNotReady, "garment is not loaded")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.garment = asset
	c.garmentDone = nil
	c.state = c.state.GarmentLoaded(err)
}

// Await blocks until background model and garment loads have finished and
// returns their errors.
func (c *Controller) Await(ctx context.Context) error {
	c.mu.Lock()
	waits := []chan struct{}{c.modelDone, c.garmentDone}
	c.mu.Unlock()

	for _, done := range waits {
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.state.ModelFailed {
		errs = append(errs, types.Errorf(types.KindModelLoadFailure, "pose model failed to load"))
	}
	if c.garment != nil {
		if err := c.garment.Err(); err != nil {
			errs = append(errs, types.NewError(types.KindGarmentAssetNotReady, "garment failed to load", err))
		}
	}
	return errors.Join(errs...)
}

// Upload ingests a photo onto the display surface
func (c *Controller) Upload(u ingest.Upload) (*ingest.Decoded, error) {
	c.mu.Lock()
	if reason, blocked := c.state.UploadBlocked(); blocked {
		c.mu.Unlock()
		err := types.Errorf(types.KindActionBlocked, "%s", reason)
		c.metrics.RecordUpload(err)
		c.reporter.Report(reason, status.Error)
		return nil, err
	}

	decoded, err := c.ingester.Ingest(u, c.surface)
	if err == nil {
		c.photo = decoded
		c.last = nil
		c.state = c.state.ImageIngested()
	}
	c.mu.Unlock()

	c.metrics.RecordUpload(err)
	if err != nil {
		c.logger.Warn("upload rejected", zap.String("name", u.Name), zap.Error(err))
		c.reporter.Report(c.uploadMessage(err), status.Error)
		return nil, err
	}

	c.logger.Info("photo uploaded",
		zap.String("name", u.Name),
		zap.String("format", decoded.Format),
		zap.Int("raw_width", decoded.RawWidth),
		zap.Int("raw_height", decoded.RawHeight),
		zap.Int("display_width", decoded.DisplayWidth),
		zap.Int("display_height", decoded.DisplayHeight))
	c.reporter.Report("Photo uploaded", status.Info)
	return decoded, nil
}

// TryOn runs detect, fit and render on the current photo. It is rejected, not
// queued, while another run is in progress or readiness is incomplete.
func (c *Controller) TryOn(ctx context.Context) (out *Outcome, err error) {
	c.mu.Lock()
	next, err := c.state.BeginTryOn()
	if err != nil {
		c.mu.Unlock()
		c.metrics.RecordBlocked()
		c.logger.Debug("try-on blocked", zap.Error(err))
		c.reporter.Report(blockedMessage(err), status.Info)
		return nil, err
	}
	c.state = next
	generation := next.Generation()
	photo, asset := c.photo, c.garment
	work := c.surface.Clone()
	c.mu.Unlock()

	c.metrics.PipelineStarted()
	c.reporter.Report("Detecting pose...", status.Info)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			out, err = nil, types.NewError(types.KindRenderFailure, "try-on pipeline panicked", fmt.Errorf("%v", p))
		}
		out, err = c.finish(generation, work, out, err, time.Since(start))
	}()

	return c.run(ctx, photo, asset, work)
}

func (c *Controller) run(ctx context.Context, photo *ingest.Decoded, asset *garment.Asset, work *canvas.Surface) (*Outcome, error) {
	if !asset.Ready() {
		return nil, types.Errorf(types.KindGarmentAssetNotReady, "garment asset is not loaded")
	}

	kp, err := c.adapter.Detect(ctx, photo.Raw)
	if err != nil {
		return nil, err
	}

	scale, err := fit.NewScaleFactors(photo.DisplayWidth, photo.DisplayHeight, photo.RawWidth, photo.RawHeight)
	if err != nil {
		return nil, types.NewError(types.KindRenderFailure, "invalid display scale", err)
	}
	m := c.calc.Measure(kp, scale)
	rect := m.Rect()

	c.logger.Debug("garment fit computed",
		zap.Float64("x", rect.X),
		zap.Float64("y", rect.Y),
		zap.Float64("width", rect.Width),
		zap.Float64("height", rect.Height))

	if err := c.renderer.Render(work, photo.Display, asset, rect); err != nil {
		return nil, err
	}
	return &Outcome{Keypoints: kp, Scale: scale, Measurements: m, Rect: rect}, nil
}

// finish releases Processing and commits the scratch surface when the run is
// still current.
func (c *Controller) finish(generation uint64, work *canvas.Surface, out *Outcome, err error, d time.Duration) (*Outcome, error) {
	c.mu.Lock()
	current := c.state.Generation() == generation
	c.state = c.state.FinishTryOn(generation, err)
	if current && err == nil {
		out.Duration = d
		c.surface.ReplaceWith(work)
		c.last = out
	}
	c.mu.Unlock()

	if !current {
		c.metrics.PipelineDiscarded(d)
		c.logger.Info("try-on result discarded after reset", zap.Duration("duration", d), zap.NamedError("run_error", err))
		return nil, types.Errorf(types.KindActionBlocked, "session was reset while the try-on was running")
	}
	c.metrics.PipelineFinished(err, d)
	if err != nil {
		c.logger.Warn("try-on failed", zap.Duration("duration", d), zap.Error(err))
		c.reporter.Report(tryOnMessage(err), status.Error)
		return nil, err
	}

	c.logger.Info("try-on rendered", zap.Duration("duration", d))
	c.reporter.Report("Virtual try-on complete!", status.Success)
	return out, nil
}

// Reset forgets the photo and clears the display surface
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = c.state.Reset()
	c.photo = nil
	c.last = nil
	c.surface.Clear()
	c.mu.Unlock()

	c.logger.Info("session reset")
	c.reporter.Report("Upload a photo to try on the garment", status.Info)
}

// State returns a copy of the session state
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the display surface
func (c *Controller) Snapshot() *image.NRGBA {
	return c.surface.Snapshot()
}

// LastOutcome returns the outcome shown on the surface, or nil
func (c *Controller) LastOutcome() *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// DebugOverlay draws the detected keypoints and fit rectangle over the surface
func (c *Controller) DebugOverlay() (*image.NRGBA, error) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()

	if last == nil {
		return nil, fmt.Errorf("no rendered try-on to annotate")
	}
	m := last.Measurements
	kps := []types.Keypoint{m.LeftShoulder, m.RightShoulder, m.LeftHip, m.RightHip}
	return canvas.DebugOverlay(c.surface.Snapshot(), kps, last.Rect), nil
}

func (c *Controller) uploadMessage(err error) string {
	switch types.KindOf(err) {
	case types.KindInvalidFileType:
		return "Please upload an image file"
	case types.KindFileTooLarge:
		return fmt.Sprintf("Image is too large. Please upload an image under %dMB", c.ingester.Config().MaxUploadBytes>>20)
	case types.KindImageDecodeFailure:
		return "Could not read the image. Please try another photo"
	}
	return "Upload failed"
}

func tryOnMessage(err error) string {
	switch types.KindOf(err) {
	case types.KindNoPersonDetected:
		return "No person detected. Please upload a clear photo of a person"
	case types.KindLowConfidenceDetection:
		return "Could not detect the body clearly. Please use a front-facing photo"
	case types.KindGarmentAssetNotReady:
		return "The garment image is not loaded yet"
	}
	return "Error processing the image. Please try again"
}

func blockedMessage(err error) string {
	var e *types.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Try-on is not available right now"
}
