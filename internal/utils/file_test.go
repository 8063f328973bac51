package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("photo.JPG"))
	assert.True(t, IsImageFile("/tmp/a.webp"))
	assert.False(t, IsImageFile("notes.txt"))
	assert.False(t, IsImageFile("noext"))
}

func TestMediaTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", MediaTypeFor("me.jpeg"))
	assert.Equal(t, "image/webp", MediaTypeFor("me.WEBP"))
	assert.Equal(t, "application/octet-stream", MediaTypeFor("blob"))
}

func TestGenerateOutputFilename(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "photo_tryon.png"), GenerateOutputFilename("/in/photo.jpg", "out", "", "_tryon", "png"))
	assert.Equal(t, filepath.Join("out", "x_photo.jpg"), GenerateOutputFilename("photo.jpg", "out", "x_", "", ""))
	assert.Equal(t, filepath.Join("out", "photo.jpg"), GenerateOutputFilename("photo", "out", "", "", ""))
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
	assert.False(t, FileExists(dir))

	f := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	assert.True(t, FileExists(f))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "12.0 MB", FormatFileSize(12<<20))
}
