package garment

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 12))
	img.SetNRGBA(1, 1, color.NRGBA{200, 10, 10, 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dress.png")
	writePNG(t, path)

	a, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, a.Ready())
	assert.NoError(t, a.Err())
	assert.Equal(t, image.Rect(0, 0, 8, 12), a.Image().Bounds())
	assert.Equal(t, path, a.Source())
}

func TestLoadMissingFile(t *testing.T) {
	a, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
	assert.False(t, a.Ready())
	assert.Error(t, a.Err())
	assert.Nil(t, a.Image())
}

func TestLoadFromURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dress.png")
	writePNG(t, path)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, path)
	}))
	defer srv.Close()

	a, err := Load(context.Background(), srv.URL+"/dress.png")
	require.NoError(t, err)
	assert.True(t, a.Ready())
}

func TestPendingAsset(t *testing.T) {
	a := NewAsset("dress.png")
	assert.False(t, a.Ready())

	var nilAsset *Asset
	assert.False(t, nilAsset.Ready())
	assert.Nil(t, nilAsset.Image())
}

func TestFromImage(t *testing.T) {
	a := FromImage("mem", image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	assert.True(t, a.Ready())
}
