// Package garment holds the garment image drawn over the photo.
package garment

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/menta2k/virtual-tryon/pkg/imageio"
)

// Asset is a garment image whose load may still be pending
type Asset struct {
	mu     sync.RWMutex
	source string
	img    image.Image
	err    error
}

// NewAsset creates a pending asset for source
func NewAsset(source string) *Asset {
	return &Asset{source: source}
}

// FromImage creates a ready asset from an already decoded image
func FromImage(source string, img image.Image) *Asset {
	return &Asset{source: source, img: img}
}

// Load reads a garment from a file path or http(s) URL
func Load(ctx context.Context, source string) (*Asset, error) {
	a := NewAsset(source)
	return a, a.Load(ctx)
}

// Load fetches and decodes the asset, recording the outcome
func (a *Asset) Load(ctx context.Context) error {
	img, err := imageio.Load(ctx, a.source)
	if err == nil && (img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0) {
		err = fmt.Errorf("garment %s has empty dimensions", a.source)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.err = fmt.Errorf("failed to load garment: %w", err)
		return a.err
	}
	a.img, a.err = img, nil
	return nil
}

// Source returns where the asset is loaded from
func (a *Asset) Source() string {
	return a.source
}

// Ready reports whether the image is fully loaded
func (a *Asset) Ready() bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.img != nil
}

// Err returns the load error, if any
func (a *Asset) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Image returns the garment image, or nil while not ready
func (a *Asset) Image() image.Image {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.img
}
