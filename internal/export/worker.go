package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"kolo-studio/internal/category"
	"kolo-studio/internal/kolofile"
)

// Format selects an interchange format for a conversion job.
type Format string

const (
	FormatCOCO   Format = "coco"
	FormatYOLO   Format = "yolo"
	FormatNative Format = "kolo"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCOCO, FormatYOLO, FormatNative:
		return Format(s), nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

// Job is one whole-project export request. Sets must be snapshots: the
// worker reads them from a goroutine, so handing it the live per-image
// stores would race with editing.
type Job struct {
	Format   Format
	Out      string // output directory, or the document path for COCO
	Sets     []ImageSet
	Registry *category.Registry
}

// Summary reports a finished job. An image that could not be exported
// fails alone; the job keeps going and records the first error seen for
// that image.
type Summary struct {
	Succeeded int
	Failed    int
	Errors    map[string]error
}

func (s *Summary) fail(image string, err error) {
	s.Failed++
	if s.Errors == nil {
		s.Errors = make(map[string]error)
	}
	if _, seen := s.Errors[image]; !seen {
		s.Errors[image] = err
	}
}

// String formats the summary for the converter CLI and the status bar.
func (s Summary) String() string {
	if s.Failed == 0 {
		return fmt.Sprintf("%d images exported", s.Succeeded)
	}
	return fmt.Sprintf("%d images exported, %d failed", s.Succeeded, s.Failed)
}

// Run executes a job, checking ctx between images. On cancellation it
// returns ctx.Err() along with the partial summary; files already
// written stay on disk.
func Run(ctx context.Context, job Job) (Summary, error) {
	switch job.Format {
	case FormatCOCO:
		return runCOCO(ctx, job)
	case FormatYOLO:
		return runYOLO(ctx, job)
	case FormatNative:
		return runNative(ctx, job)
	default:
		return Summary{}, fmt.Errorf("export: unknown format %q", job.Format)
	}
}

// Start runs a job on its own goroutine and delivers the result on the
// returned channel. Cancel ctx to stop it early.
func Start(ctx context.Context, job Job) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		summary, err := Run(ctx, job)
		if err != nil {
			log.Printf("export: %s job: %v", job.Format, err)
		}
		ch <- Result{Summary: summary, Err: err}
	}()
	return ch
}

// Result pairs a job summary with its terminal error, if any.
type Result struct {
	Summary Summary
	Err     error
}

func runCOCO(ctx context.Context, job Job) (Summary, error) {
	var summary Summary

	// Assemble per image so cancellation lands between images, then
	// write the single document at the end.
	kept := make([]ImageSet, 0, len(job.Sets))
	for _, set := range job.Sets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if set.Width <= 0 || set.Height <= 0 {
			summary.fail(set.Name, &MissingImageDimensionsError{Image: set.Name})
			continue
		}
		kept = append(kept, set)
		summary.Succeeded++
	}

	f, err := os.Create(job.Out)
	if err != nil {
		return summary, fmt.Errorf("export: %w", err)
	}
	if _, err := EncodeCOCO(f, kept, job.Registry); err != nil {
		f.Close()
		return summary, err
	}
	return summary, f.Close()
}

func runYOLO(ctx context.Context, job Job) (Summary, error) {
	var summary Summary

	if err := os.MkdirAll(job.Out, 0o755); err != nil {
		return summary, fmt.Errorf("export: %w", err)
	}
	if err := writeClasses(filepath.Join(job.Out, classesFile), job.Registry.Names()); err != nil {
		return summary, err
	}
	for _, set := range job.Sets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := writeYOLOLabels(job.Out, set, job.Registry); err != nil {
			summary.fail(set.Name, err)
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}

func runNative(ctx context.Context, job Job) (Summary, error) {
	var summary Summary

	if err := os.MkdirAll(job.Out, 0o755); err != nil {
		return summary, fmt.Errorf("export: %w", err)
	}
	for _, set := range job.Sets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := kolofile.SaveFor(filepath.Join(job.Out, set.Name), set.Records); err != nil {
			summary.fail(set.Name, err)
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}
