// Package kolofile reads and writes the native per-image annotation
// format: one line per annotation, space-separated, with the category
// name Base64-encoded so arbitrary names cannot collide with the field
// delimiter.
//
//	base64(categoryName) centerX centerY width height
//
// Geometry fields are normalized floats written with nine decimal
// places. The file lives next to its image with the extension .kolo.
package kolofile

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"kolo-studio/internal/annotation"
)

// Ext is the native annotation file extension.
const Ext = ".kolo"

// Record is one decoded annotation line: the category by name plus the
// normalized box.
type Record struct {
	Name string
	Box  annotation.Box
}

// MalformedRecordError describes a single unparsable line. Decoding
// skips such lines and keeps going; the error is collected, not fatal.
type MalformedRecordError struct {
	Line   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("kolofile: line %d: %s", e.Line, e.Reason)
}

// Result holds a decode outcome: the recovered records plus the lines
// that had to be skipped.
type Result struct {
	Records []Record
	Skipped []*MalformedRecordError
}

// SkippedCount returns the number of lines skipped during decoding.
func (r Result) SkippedCount() int {
	return len(r.Skipped)
}

// Decode parses native-format lines from r. Malformed lines (wrong
// field count, undecodable Base64, non-numeric or non-positive
// geometry) are skipped and reported in the result; they never abort
// the load. Blank lines are ignored.
func Decode(r io.Reader) (Result, error) {
	var res Result
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, reason := decodeLine(line)
		if reason != "" {
			res.Skipped = append(res.Skipped, &MalformedRecordError{Line: lineNo, Reason: reason})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("kolofile: read: %w", err)
	}
	return res, nil
}

func decodeLine(line string) (Record, string) {
	parts := strings.Fields(line)
	if len(parts) != 5 {
		return Record{}, fmt.Sprintf("expected 5 fields, got %d", len(parts))
	}

	nameBytes, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return Record{}, fmt.Sprintf("bad category token: %v", err)
	}

	var vals [4]float64
	for i, p := range parts[1:] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Record{}, fmt.Sprintf("bad geometry field %q", p)
		}
		vals[i] = v
	}

	box := annotation.Box{CX: vals[0], CY: vals[1], W: vals[2], H: vals[3]}
	if !box.Valid() {
		return Record{}, fmt.Sprintf("degenerate box %v", box)
	}
	return Record{Name: string(nameBytes), Box: box}, ""
}

// Encode writes records to w in native format, ordered by category name
// with the input order preserved within a category.
func Encode(w io.Writer, records []Record) error {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	bw := bufio.NewWriter(w)
	for _, rec := range sorted {
		name := base64.StdEncoding.EncodeToString([]byte(rec.Name))
		_, err := fmt.Fprintf(bw, "%s %.9f %.9f %.9f %.9f\n",
			name, rec.Box.CX, rec.Box.CY, rec.Box.W, rec.Box.H)
		if err != nil {
			return fmt.Errorf("kolofile: write: %w", err)
		}
	}
	return bw.Flush()
}

// PathFor returns the annotation file path for an image path: the same
// base name with the native extension.
func PathFor(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + Ext
}

// LoadFor reads the annotation file belonging to an image. A missing
// file yields an empty result, not an error: an image with no
// annotations simply has no file yet.
func LoadFor(imagePath string) (Result, error) {
	f, err := os.Open(PathFor(imagePath))
	if os.IsNotExist(err) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("kolofile: open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// SaveFor writes the annotation file belonging to an image. An empty
// record set still writes a file so a deliberate "clear all" survives a
// reload.
func SaveFor(imagePath string, records []Record) error {
	f, err := os.Create(PathFor(imagePath))
	if err != nil {
		return fmt.Errorf("kolofile: create: %w", err)
	}
	if err := Encode(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
