// Package imageio loads dataset images and probes their pixel
// dimensions without decoding full rasters.
package imageio

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	// Register decoders beyond the stdlib set so DecodeConfig can probe
	// every format the annotation workflow accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageExts is the accepted set of image file extensions, lower case.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// IsImagePath reports whether the path has a recognized image
// extension.
func IsImagePath(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Dimensions returns the pixel size of an image by reading only its
// header.
func Dimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("imageio: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("imageio: probe %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Load decodes the full image, applying EXIF orientation so the raster
// matches what the annotator sees.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imageio: load %s: %w", path, err)
	}
	return img, nil
}

// ListDir returns the image files directly inside dir, sorted by name.
// This is the image ordering the annotator steps through.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("imageio: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsImagePath(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
