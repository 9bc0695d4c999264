package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestIsImagePath(t *testing.T) {
	assert.True(t, IsImagePath("frame.jpg"))
	assert.True(t, IsImagePath("FRAME.PNG"))
	assert.True(t, IsImagePath("scan.tiff"))
	assert.True(t, IsImagePath("photo.webp"))
	assert.False(t, IsImagePath("notes.txt"))
	assert.False(t, IsImagePath("frame.kolo"))
	assert.False(t, IsImagePath("noext"))
}

func TestDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.png")
	writeTestPNG(t, path, 64, 48)

	w, h, err := Dimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

func TestDimensionsErrors(t *testing.T) {
	_, _, err := Dimensions(filepath.Join(t.TempDir(), "absent.png"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, _, err = Dimensions(bad)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.png")
	writeTestPNG(t, path, 32, 16)

	img, err := Load(path)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, 32, b.Dx())
	assert.Equal(t, 16, b.Dy())
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "b.png"), 8, 8)
	writeTestPNG(t, filepath.Join(dir, "a.png"), 8, 8)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.kolo"), []byte(""), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	names, err := ListDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, names)
}
