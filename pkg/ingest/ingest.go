// Package ingest validates an uploaded photo and lays it out on the display surface.
package ingest

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/virtual-tryon/pkg/canvas"
	"github.com/menta2k/virtual-tryon/pkg/imageio"
	"github.com/menta2k/virtual-tryon/pkg/types"
)

// Defaults for upload validation and display layout
const (
	DefaultMaxUploadBytes   = 10 << 20
	DefaultMaxDisplayWidth  = 600
	DefaultMaxDisplayHeight = 800
)

// Config holds the ingestion limits
type Config struct {
	MaxUploadBytes   int64
	MaxDisplayWidth  int
	MaxDisplayHeight int
}

// DefaultConfig returns the standard limits
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes:   DefaultMaxUploadBytes,
		MaxDisplayWidth:  DefaultMaxDisplayWidth,
		MaxDisplayHeight: DefaultMaxDisplayHeight,
	}
}

// Upload is a user-supplied file with its declared media type and size
type Upload struct {
	Name      string
	MediaType string
	Size      int64
	Body      io.Reader
}

// Decoded is an ingested photo
type Decoded struct {
	// Raw is the original decoded image, used for pose detection
	Raw image.Image
	// Display is Raw resized to the display dimensions
	Display image.Image
	Format  string

	RawWidth      int
	RawHeight     int
	DisplayWidth  int
	DisplayHeight int
}

// Ingester validates and decodes uploads
type Ingester struct {
	config Config
}

// New creates an Ingester with default limits
func New() *Ingester {
	return &Ingester{config: DefaultConfig()}
}

// NewWithConfig creates an Ingester with custom limits
func NewWithConfig(config Config) *Ingester {
	return &Ingester{config: config}
}

// Config returns the ingestion limits
func (in *Ingester) Config() Config {
	return in.config
}

// Ingest validates, decodes and lays out an upload, then replaces the surface
// content with the photo at its display size.
func (in *Ingester) Ingest(u Upload, surface *canvas.Surface) (*Decoded, error) {
	if !IsImageMediaType(u.MediaType) {
		return nil, types.Errorf(types.KindInvalidFileType, "%q is not an image (media type %q)", u.Name, u.MediaType)
	}
	if u.Size > in.config.MaxUploadBytes {
		return nil, types.Errorf(types.KindFileTooLarge, "%q is %d bytes, limit is %d", u.Name, u.Size, in.config.MaxUploadBytes)
	}
	if u.Body == nil {
		return nil, types.Errorf(types.KindImageDecodeFailure, "%q has no content", u.Name)
	}

	// The declared size may lie; never read past the limit.
	data, err := io.ReadAll(io.LimitReader(u.Body, in.config.MaxUploadBytes+1))
	if err != nil {
		return nil, types.NewError(types.KindImageDecodeFailure, "failed to read upload", err)
	}
	if int64(len(data)) > in.config.MaxUploadBytes {
		return nil, types.Errorf(types.KindFileTooLarge, "%q exceeds %d bytes", u.Name, in.config.MaxUploadBytes)
	}

	raw, format, err := imageio.Decode(data)
	if err != nil {
		return nil, types.NewError(types.KindImageDecodeFailure, fmt.Sprintf("failed to decode %q", u.Name), err)
	}

	b := raw.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, types.Errorf(types.KindImageDecodeFailure, "%q has empty dimensions", u.Name)
	}

	w, h := DisplaySize(b.Dx(), b.Dy(), in.config.MaxDisplayWidth, in.config.MaxDisplayHeight)
	display := raw
	if w != b.Dx() || h != b.Dy() {
		display = imaging.Resize(raw, w, h, imaging.Lanczos)
	}

	decoded := &Decoded{
		Raw:           raw,
		Display:       display,
		Format:        format,
		RawWidth:      b.Dx(),
		RawHeight:     b.Dy(),
		DisplayWidth:  w,
		DisplayHeight: h,
	}

	if surface != nil {
		surface.Resize(w, h)
		surface.SetComposite(canvas.DefaultComposite)
		if err := surface.DrawImage(display, image.Rect(0, 0, w, h)); err != nil {
			return nil, types.NewError(types.KindImageDecodeFailure, "failed to draw photo", err)
		}
	}

	return decoded, nil
}

// IngestBytes is a convenience wrapper for in-memory uploads
func (in *Ingester) IngestBytes(name, mediaType string, data []byte, surface *canvas.Surface) (*Decoded, error) {
	return in.Ingest(Upload{Name: name, MediaType: mediaType, Size: int64(len(data)), Body: bytes.NewReader(data)}, surface)
}

// IsImageMediaType reports whether a declared media type is an image kind
func IsImageMediaType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	return strings.HasPrefix(mt, "image/") && len(mt) > len("image/")
}

// DisplayScale returns the factor that fits width x height into maxW x maxH,
// or 1 when the image already fits.
func DisplayScale(width, height, maxW, maxH int) float64 {
	if width <= maxW && height <= maxH {
		return 1
	}
	return math.Min(float64(maxW)/float64(width), float64(maxH)/float64(height))
}

// DisplaySize fits width x height into maxW x maxH preserving aspect ratio.
// Images that already fit keep their size.
func DisplaySize(width, height, maxW, maxH int) (int, int) {
	scale := DisplayScale(width, height, maxW, maxH)
	if scale == 1 {
		return width, height
	}
	w := max(1, int(math.Round(float64(width)*scale)))
	h := max(1, int(math.Round(float64(height)*scale)))
	return min(w, maxW), min(h, maxH)
}
