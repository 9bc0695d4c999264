// Package export converts between the native annotation format and the
// COCO and YOLO interchange formats, and runs whole-project exports in
// the background.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"kolo-studio/internal/annotation"
	"kolo-studio/internal/category"
	"kolo-studio/internal/kolofile"
	"kolo-studio/pkg/geometry"
)

// ImageSet is one image's worth of annotations plus the pixel
// dimensions every interchange format needs for coordinate conversion.
type ImageSet struct {
	Name    string // image file name, relative to the image directory
	Width   int
	Height  int
	Records []kolofile.Record
}

// MissingImageDimensionsError marks an image whose pixel size could not
// be determined. Conversion skips that image and continues with the
// rest.
type MissingImageDimensionsError struct {
	Image string
}

func (e *MissingImageDimensionsError) Error() string {
	return fmt.Sprintf("export: %s: missing image dimensions", e.Image)
}

// COCO document structure, the subset the detection workflow uses.
type cocoDoc struct {
	Info        cocoInfo         `json:"info"`
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoInfo struct {
	Description string `json:"description"`
	DateCreated string `json:"date_created"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoAnnotation struct {
	ID         int        `json:"id"`
	ImageID    int        `json:"image_id"`
	CategoryID int        `json:"category_id"`
	BBox       [4]float64 `json:"bbox"` // top-left x, y, width, height in pixels
	Area       float64    `json:"area"`
	Iscrowd    int        `json:"iscrowd"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// EncodeCOCO writes all image sets as a single COCO JSON document.
// Category ids follow registry order shifted by one, matching the COCO
// convention of 1-based category ids. Images without dimensions are
// skipped and reported; they never abort the export.
func EncodeCOCO(w io.Writer, sets []ImageSet, reg *category.Registry) ([]*MissingImageDimensionsError, error) {
	doc := cocoDoc{
		Info: cocoInfo{
			Description: "kolo-studio export",
			DateCreated: time.Now().Format(time.RFC3339),
		},
		Images:      []cocoImage{},
		Annotations: []cocoAnnotation{},
		Categories:  []cocoCategory{},
	}
	for _, c := range reg.Categories() {
		doc.Categories = append(doc.Categories, cocoCategory{ID: c.ID + 1, Name: c.Name})
	}

	var skipped []*MissingImageDimensionsError
	annID := 0
	for i, set := range sets {
		if set.Width <= 0 || set.Height <= 0 {
			skipped = append(skipped, &MissingImageDimensionsError{Image: set.Name})
			continue
		}
		imgID := i + 1
		doc.Images = append(doc.Images, cocoImage{
			ID: imgID, FileName: set.Name, Width: set.Width, Height: set.Height,
		})
		for _, rec := range set.Records {
			catID, ok := reg.ID(rec.Name)
			if !ok {
				// Registry is built from the same records upstream, so an
				// unknown name here is a caller bug worth failing loudly.
				return skipped, fmt.Errorf("export: %s: unregistered category %q", set.Name, rec.Name)
			}
			r := rec.Box.PixelRect(float64(set.Width), float64(set.Height))
			annID++
			doc.Annotations = append(doc.Annotations, cocoAnnotation{
				ID:         annID,
				ImageID:    imgID,
				CategoryID: catID + 1,
				BBox:       [4]float64{r.X, r.Y, r.Width, r.Height},
				Area:       r.Area(),
				Iscrowd:    0,
			})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return skipped, fmt.Errorf("export: encode coco: %w", err)
	}
	return skipped, nil
}

// DecodeCOCO parses a COCO document back into per-image sets. Category
// names are resolved through the registry with auto-registration, so an
// import can never fail on an unknown category. Annotations that refer
// to a missing image or category, or carry degenerate geometry, are
// dropped.
func DecodeCOCO(r io.Reader, reg *category.Registry) ([]ImageSet, error) {
	var doc cocoDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("export: decode coco: %w", err)
	}

	names := make(map[int]string, len(doc.Categories))
	for _, c := range doc.Categories {
		names[c.ID] = c.Name
		reg.Ensure(c.Name)
	}

	sets := make([]ImageSet, 0, len(doc.Images))
	index := make(map[int]int, len(doc.Images))
	for _, img := range doc.Images {
		index[img.ID] = len(sets)
		sets = append(sets, ImageSet{Name: img.FileName, Width: img.Width, Height: img.Height})
	}

	for _, a := range doc.Annotations {
		i, ok := index[a.ImageID]
		if !ok {
			continue
		}
		name, ok := names[a.CategoryID]
		if !ok {
			continue
		}
		set := &sets[i]
		r := geometry.Rect{X: a.BBox[0], Y: a.BBox[1], Width: a.BBox[2], Height: a.BBox[3]}
		box := annotation.BoxFromPixelRect(r, float64(set.Width), float64(set.Height))
		if !box.Valid() {
			continue
		}
		set.Records = append(set.Records, kolofile.Record{Name: name, Box: box})
	}
	return sets, nil
}
