package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"kolo-studio/internal/annotation"
	"kolo-studio/internal/category"
	"kolo-studio/internal/kolofile"
)

// classesFile is the YOLO class list sidecar, one name per line in
// class-index order.
const classesFile = "classes.txt"

// EncodeYOLO writes one label file per image into dir, in the YOLO
// layout: `classIndex cx cy w h` per line, all normalized, plus a
// classes.txt sidecar listing category names in registry order. YOLO
// coordinates are already normalized, so image dimensions are not
// required here.
func EncodeYOLO(dir string, sets []ImageSet, reg *category.Registry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := writeClasses(filepath.Join(dir, classesFile), reg.Names()); err != nil {
		return err
	}
	for _, set := range sets {
		if err := writeYOLOLabels(dir, set, reg); err != nil {
			return err
		}
	}
	return nil
}

func writeClasses(path string, names []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("export: write classes: %w", err)
	}
	return f.Close()
}

func writeYOLOLabels(dir string, set ImageSet, reg *category.Registry) error {
	path := filepath.Join(dir, labelName(set.Name))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range set.Records {
		idx, ok := reg.ID(rec.Name)
		if !ok {
			f.Close()
			return fmt.Errorf("export: %s: unregistered category %q", set.Name, rec.Name)
		}
		fmt.Fprintf(w, "%d %.6f %.6f %.6f %.6f\n", idx, rec.Box.CX, rec.Box.CY, rec.Box.W, rec.Box.H)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return f.Close()
}

func labelName(imageName string) string {
	ext := filepath.Ext(imageName)
	return strings.TrimSuffix(imageName, ext) + ".txt"
}

// DecodeYOLO reads a YOLO label directory back into per-image sets. The
// classes.txt sidecar is required; its names are auto-registered. Label
// lines with an out-of-range class index or degenerate geometry are
// dropped, matching the lenient native decoder.
//
// YOLO labels do not record image names, only basenames, so the
// returned set names carry the label file's base name with no image
// extension.
func DecodeYOLO(dir string, reg *category.Registry) ([]ImageSet, error) {
	names, err := readClasses(filepath.Join(dir, classesFile))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		reg.Ensure(name)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	var sets []ImageSet
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" || e.Name() == classesFile {
			continue
		}
		records, err := readYOLOLabels(filepath.Join(dir, e.Name()), names)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ImageSet{
			Name:    strings.TrimSuffix(e.Name(), ".txt"),
			Records: records,
		})
	}
	return sets, nil
}

func readClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("export: read classes: %w", err)
	}
	return names, nil
}

func readYOLOLabels(path string, names []string) ([]kolofile.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	defer f.Close()

	var records []kolofile.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 5 {
			continue
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 0 || idx >= len(names) {
			continue
		}
		var vals [4]float64
		bad := false
		for i, fv := range fields[1:] {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				bad = true
				break
			}
			vals[i] = v
		}
		if bad {
			continue
		}
		box := annotation.Box{CX: vals[0], CY: vals[1], W: vals[2], H: vals[3]}
		if !box.Valid() {
			continue
		}
		records = append(records, kolofile.Record{Name: names[idx], Box: box})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	return records, nil
}
