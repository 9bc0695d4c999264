// Command koloconv converts annotation datasets between the native
// kolo format, COCO JSON, and YOLO label files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"kolo-studio/internal/category"
	"kolo-studio/internal/export"
	"kolo-studio/internal/imageio"
	"kolo-studio/internal/kolofile"
)

func main() {
	in := flag.String("in", "", "Input: image directory with .kolo files, a COCO JSON file, or a YOLO label directory")
	from := flag.String("from", "kolo", "Input format: kolo, coco, or yolo")
	to := flag.String("to", "", "Output format: kolo, coco, or yolo")
	out := flag.String("out", "", "Output: COCO JSON file path, or a directory for kolo/yolo")
	flag.Parse()

	if *in == "" || *to == "" || *out == "" {
		fmt.Println("Usage: koloconv -in <path> [-from kolo|coco|yolo] -to <kolo|coco|yolo> -out <path>")
		os.Exit(1)
	}

	srcFormat, err := export.ParseFormat(*from)
	if err != nil {
		fatal(err)
	}
	dstFormat, err := export.ParseFormat(*to)
	if err != nil {
		fatal(err)
	}

	reg := category.NewRegistry()
	sets, err := loadSets(srcFormat, *in, reg)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Loaded %d annotated images, %d categories\n", len(sets), reg.Len())

	summary, err := export.Run(context.Background(), export.Job{
		Format:   dstFormat,
		Out:      *out,
		Sets:     sets,
		Registry: reg,
	})
	if err != nil {
		fatal(err)
	}

	for image, imgErr := range summary.Errors {
		fmt.Fprintf(os.Stderr, "%s: %v\n", image, imgErr)
	}
	fmt.Println(summary.String())
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// loadSets reads the input dataset in the given format.
func loadSets(format export.Format, in string, reg *category.Registry) ([]export.ImageSet, error) {
	switch format {
	case export.FormatNative:
		return loadNative(in, reg)

	case export.FormatCOCO:
		f, err := os.Open(in)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return export.DecodeCOCO(f, reg)

	case export.FormatYOLO:
		return export.DecodeYOLO(in, reg)

	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

// loadNative scans a directory of images and their sidecar .kolo files.
// Images without annotations are skipped; malformed lines are reported
// and skipped.
func loadNative(dir string, reg *category.Registry) ([]export.ImageSet, error) {
	names, err := imageio.ListDir(dir)
	if err != nil {
		return nil, err
	}

	var sets []export.ImageSet
	for _, name := range names {
		path := filepath.Join(dir, name)
		result, err := kolofile.LoadFor(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if result.SkippedCount() > 0 {
			fmt.Fprintf(os.Stderr, "%s: skipped %d malformed lines\n", name, result.SkippedCount())
		}
		if len(result.Records) == 0 {
			continue
		}
		for _, rec := range result.Records {
			reg.Ensure(rec.Name)
		}

		w, h, err := imageio.Dimensions(path)
		if err != nil {
			// COCO export reports the missing dimensions per image.
			w, h = 0, 0
		}
		sets = append(sets, export.ImageSet{
			Name:    name,
			Width:   w,
			Height:  h,
			Records: result.Records,
		})
	}
	return sets, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "koloconv: %v\n", err)
	os.Exit(1)
}
