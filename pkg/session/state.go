// Package session gates try-on actions on model, photo and garment readiness
// and runs the detect, fit and render pipeline for one photo at a time.
package session

import (
	"github.com/menta2k/virtual-tryon/pkg/types"
)

// Phase is the coarse state a session is in
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseModelLoading
	PhaseModelReady
	PhaseImageUploaded
	PhaseProcessing
	PhaseRendered
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseModelLoading:
		return "model_loading"
	case PhaseModelReady:
		return "model_ready"
	case PhaseImageUploaded:
		return "image_uploaded"
	case PhaseProcessing:
		return "processing"
	case PhaseRendered:
		return "rendered"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// SessionState is the readiness of one session. It is a value: every
// transition returns the next state and leaves the receiver untouched.
type SessionState struct {
	ModelLoading  bool
	ModelReady    bool
	ModelFailed   bool
	ImageUploaded bool
	GarmentReady  bool
	Processing    bool
	Rendered      bool

	// LastErr is the error of the most recent failed action, cleared by the next success
	LastErr error

	generation uint64
}

// NewSessionState returns the initial state
func NewSessionState() SessionState {
	return SessionState{}
}

// Phase derives the coarse phase from the readiness flags
func (s SessionState) Phase() Phase {
	switch {
	case s.ModelFailed:
		return PhaseFailed
	case s.Processing:
		return PhaseProcessing
	case s.Rendered:
		return PhaseRendered
	case s.ImageUploaded:
		return PhaseImageUploaded
	case s.ModelReady:
		return PhaseModelReady
	case s.ModelLoading:
		return PhaseModelLoading
	}
	return PhaseIdle
}

// Generation identifies the photo a pipeline run was started for. Reset and
// every new upload advance it.
func (s SessionState) Generation() uint64 {
	return s.generation
}

// StartModelLoad enters ModelLoading. Only the first call has an effect.
func (s SessionState) StartModelLoad() SessionState {
	if s.ModelLoading || s.ModelReady || s.ModelFailed {
		return s
	}
	s.ModelLoading = true
	return s
}

// ModelLoaded records the outcome of model initialisation. A failure is terminal.
func (s SessionState) ModelLoaded(err error) SessionState {
	s.ModelLoading = false
	if err != nil {
		s.ModelReady = false
		s.ModelFailed = true
		s.LastErr = err
		return s
	}
	s.ModelReady = true
	return s
}

// GarmentLoading marks a new garment load as pending
func (s SessionState) GarmentLoading() SessionState {
	s.GarmentReady = false
	return s
}

// GarmentLoaded records the outcome of loading the garment asset
func (s SessionState) GarmentLoaded(err error) SessionState {
	s.GarmentReady = err == nil
	if err != nil {
		s.LastErr = err
	}
	return s
}

// UploadBlocked reports why a photo cannot be uploaded right now
func (s SessionState) UploadBlocked() (string, bool) {
	if s.Processing {
		return "a try-on is in progress, wait for it to finish", true
	}
	return "", false
}

// ImageIngested records a successfully ingested photo. Any previous render is gone.
func (s SessionState) ImageIngested() SessionState {
	s.ImageUploaded = true
	s.Rendered = false
	s.LastErr = nil
	s.generation++
	return s
}

// TryOnBlocked reports why the try-on action is not allowed right now
func (s SessionState) TryOnBlocked() (string, bool) {
	switch {
	case s.Processing:
		return "a try-on is already in progress", true
	case s.ModelFailed:
		return "the pose model failed to load, reload the session", true
	case !s.ModelReady:
		return "the pose model is still loading", true
	case !s.ImageUploaded:
		return "upload a photo first", true
	case !s.GarmentReady:
		return "the garment is still loading", true
	}
	return "", false
}

// CanTryOn reports whether the try-on action is enabled
func (s SessionState) CanTryOn() bool {
	_, blocked := s.TryOnBlocked()
	return !blocked
}

// BeginTryOn enters Processing, or returns an ActionBlocked error and the
// unchanged state when the guard does not hold.
func (s SessionState) BeginTryOn() (SessionState, error) {
	if reason, blocked := s.TryOnBlocked(); blocked {
		return s, types.Errorf(types.KindActionBlocked, "%s", reason)
	}
	s.Processing = true
	return s, nil
}

// FinishTryOn releases Processing for the run started at generation. A run
// overtaken by Reset only releases the flag; its outcome is discarded.
func (s SessionState) FinishTryOn(generation uint64, err error) SessionState {
	s.Processing = false
	if generation != s.generation {
		return s
	}
	if err != nil {
		s.Rendered = false
		s.LastErr = err
		return s
	}
	s.Rendered = true
	s.LastErr = nil
	return s
}

// Reset forgets the photo and any render. Model and garment readiness are
// kept, and an outstanding run keeps Processing until it finishes.
func (s SessionState) Reset() SessionState {
	s.ImageUploaded = false
	s.Rendered = false
	s.LastErr = nil
	s.generation++
	return s
}
