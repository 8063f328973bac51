// Package tryon overlays a garment image onto a photo of a person.
//
// The pipeline detects the person's shoulders and hips with a pose-estimation
// backend, derives a placement rectangle for the garment from those keypoints,
// and composites the garment over the photo with a multiply blend.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		tryon "github.com/menta2k/virtual-tryon"
//		"github.com/menta2k/virtual-tryon/pkg/imageio"
//		"github.com/menta2k/virtual-tryon/pkg/pose"
//	)
//
//	func main() {
//		result, err := tryon.Run(context.Background(), tryon.Request{
//			PhotoPath: "me.jpg",
//			Garment:   "assets/dress.png",
//			Estimator: pose.NewStaticEstimator("me.poses.json"),
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := imageio.Save(result.Image, "me_tryon.png", "png", 90, false); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Ingest (pkg/ingest): validates an upload and lays it out within 600x800
//  2. Pose (pkg/pose): runs a pose backend and gates the torso keypoints on confidence
//  3. Fit (pkg/fit): turns four keypoints into the garment rectangle
//  4. Render (pkg/render): composites photo and garment on a canvas.Surface
//  5. Session (pkg/session): the state machine that gates and sequences the above
//
// Pose backends are an Ollama or llama.cpp vision model (pkg/ollama,
// pkg/llamacpp) or a pose document on disk.
package tryon

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/menta2k/virtual-tryon/internal/config"
	"github.com/menta2k/virtual-tryon/internal/utils"
	"github.com/menta2k/virtual-tryon/pkg/client"
	"github.com/menta2k/virtual-tryon/pkg/ingest"
	"github.com/menta2k/virtual-tryon/pkg/llamacpp"
	"github.com/menta2k/virtual-tryon/pkg/ollama"
	"github.com/menta2k/virtual-tryon/pkg/pose"
	"github.com/menta2k/virtual-tryon/pkg/session"
)

// Version of the virtual try-on library
const Version = "1.0.0"

// Request describes a single try-on
type Request struct {
	// PhotoPath is read when Photo has no Body
	PhotoPath string
	Photo     ingest.Upload

	// Garment is a file path or http(s) URL
	Garment   string
	Estimator pose.Estimator
	Options   session.Options

	// Debug also returns the keypoint and fit rectangle overlay
	Debug bool
}

// Result is a completed try-on
type Result struct {
	SessionID string
	Image     *image.NRGBA
	Debug     *image.NRGBA
	Photo     *ingest.Decoded
	Outcome   *session.Outcome
}

// Run loads the model and garment, ingests the photo and runs the pipeline once
func Run(ctx context.Context, req Request) (*Result, error) {
	if req.Estimator == nil {
		return nil, fmt.Errorf("a pose estimator is required")
	}
	if req.Garment == "" {
		return nil, fmt.Errorf("a garment source is required")
	}

	upload := req.Photo
	if upload.Body == nil {
		f, u, err := OpenPhoto(req.PhotoPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		upload = u
	}

	c := session.NewController(req.Estimator, req.Options)
	c.Start(ctx)
	c.LoadGarment(ctx, req.Garment)
	if err := c.Await(ctx); err != nil {
		return nil, err
	}

	decoded, err := c.Upload(upload)
	if err != nil {
		return nil, err
	}

	out, err := c.TryOn(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SessionID: c.ID(),
		Image:     c.Snapshot(),
		Photo:     decoded,
		Outcome:   out,
	}
	if req.Debug {
		if result.Debug, err = c.DebugOverlay(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// OpenPhoto opens a photo on disk as an upload, declaring the media type a
// browser would derive from its extension. The caller closes the file.
func OpenPhoto(path string) (*os.File, ingest.Upload, error) {
	if path == "" {
		return nil, ingest.Upload{}, fmt.Errorf("a photo is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ingest.Upload{}, fmt.Errorf("failed to open photo: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ingest.Upload{}, fmt.Errorf("failed to stat photo: %w", err)
	}
	return f, ingest.Upload{
		Name:      info.Name(),
		MediaType: utils.MediaTypeFor(path),
		Size:      info.Size(),
		Body:      f,
	}, nil
}

// NewEstimator builds the pose backend selected by cfg
func NewEstimator(cfg *config.Config) (pose.Estimator, error) {
	var vc client.VisionClient
	var err error

	switch cfg.Pose.Backend {
	case config.BackendStatic:
		return pose.NewStaticEstimator(cfg.Pose.StaticFile), nil
	case config.BackendOllama:
		vc, err = ollama.NewClient(cfg.Pose.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case config.BackendLlamaCpp:
		vc, err = llamacpp.NewClient(cfg.Pose.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown pose backend: %s", cfg.Pose.Backend)
	}

	return pose.NewVisionEstimator(vc, pose.VisionConfig{
		Model:       cfg.Pose.Model,
		SendFormat:  cfg.Pose.SendFormat,
		SendMaxDim:  cfg.Pose.SendMaxDim,
		SendQuality: cfg.Pose.SendQuality,
	}), nil
}

// SessionOptions maps cfg onto controller options
func SessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Ingest:              cfg.IngestOptions(),
		ConfidenceThreshold: cfg.Pose.ConfidenceThreshold,
		Fit:                 cfg.FitOptions(),
		Render:              cfg.RenderOptions(),
	}
}
