package detect

import (
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"

	"kolo-studio/internal/annotation"
)

// Config selects the model file and its decode parameters.
type Config struct {
	ModelPath  string   // ONNX weights
	ClassNames []string // model output order, from the training class list
	InputSize  int      // square letterbox side, e.g. 640
	ConfThresh float32  // minimum objectness * class score
	NMSThresh  float32  // IoU threshold for non-maximum suppression
}

// DefaultConfig returns the decode parameters the bundled models were
// exported with.
func DefaultConfig(modelPath string, classNames []string) Config {
	return Config{
		ModelPath:  modelPath,
		ClassNames: classNames,
		InputSize:  640,
		ConfThresh: 0.25,
		NMSThresh:  0.45,
	}
}

// Detector wraps an ONNX detection network. It is not safe for
// concurrent use; run detections from a single worker goroutine.
type Detector struct {
	net gocv.Net
	cfg Config
}

// NewDetector loads the network from the configured model file.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("detect: invalid input size %d", cfg.InputSize)
	}
	if len(cfg.ClassNames) == 0 {
		return nil, fmt.Errorf("detect: empty class list")
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("detect: cannot load model %s", cfg.ModelPath)
	}
	return &Detector{net: net, cfg: cfg}, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}

// Detect runs the model over one image and returns normalized
// candidates ordered by descending confidence.
func (d *Detector) Detect(img image.Image) ([]Candidate, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("detect: convert image: %w", err)
	}
	defer mat.Close()

	srcW := float64(mat.Cols())
	srcH := float64(mat.Rows())

	boxed, scale, padX, padY := d.letterbox(mat)
	defer boxed.Close()

	blob := gocv.BlobFromImage(boxed, 1.0/255.0, image.Pt(d.cfg.InputSize, d.cfg.InputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	return d.decode(out, srcW, srcH, scale, padX, padY)
}

// letterbox scales the image to fit the square model input, padding the
// short side so the aspect ratio survives.
func (d *Detector) letterbox(src gocv.Mat) (boxed gocv.Mat, scale, padX, padY float64) {
	size := float64(d.cfg.InputSize)
	scale = size / float64(src.Cols())
	if s := size / float64(src.Rows()); s < scale {
		scale = s
	}
	newW := int(float64(src.Cols()) * scale)
	newH := int(float64(src.Rows()) * scale)
	padX = (size - float64(newW)) / 2
	padY = (size - float64(newH)) / 2

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationLinear)

	boxed = gocv.NewMat()
	gocv.CopyMakeBorder(resized, &boxed,
		int(padY), d.cfg.InputSize-newH-int(padY),
		int(padX), d.cfg.InputSize-newW-int(padX),
		gocv.BorderConstant, gocv.NewScalar(114, 114, 114, 0))
	return boxed, scale, padX, padY
}

// decode parses the detection head output: rows of
// (cx, cy, w, h, objectness, classScores...) in input pixels.
func (d *Detector) decode(out gocv.Mat, srcW, srcH, scale, padX, padY float64) ([]Candidate, error) {
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("detect: read output: %w", err)
	}

	stride := 5 + len(d.cfg.ClassNames)
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("detect: output size %d not divisible by row stride %d", len(data), stride)
	}

	var rects []image.Rectangle
	var scores []float32
	var classes []int
	for i := 0; i+stride <= len(data); i += stride {
		row := data[i : i+stride]
		obj := row[4]
		if obj < d.cfg.ConfThresh {
			continue
		}
		best := 0
		for c := 1; c < len(d.cfg.ClassNames); c++ {
			if row[5+c] > row[5+best] {
				best = c
			}
		}
		score := obj * row[5+best]
		if score < d.cfg.ConfThresh {
			continue
		}
		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		rects = append(rects, image.Rect(
			int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, score)
		classes = append(classes, best)
	}
	if len(rects) == 0 {
		return nil, nil
	}

	indices := make([]int, len(rects))
	for i := range indices {
		indices[i] = -1
	}
	gocv.NMSBoxes(rects, scores, d.cfg.ConfThresh, d.cfg.NMSThresh, indices)

	var candidates []Candidate
	for _, idx := range indices {
		if idx < 0 {
			break
		}
		r := rects[idx]
		// Undo the letterbox, then normalize against the source image.
		x := (float64(r.Min.X) - padX) / scale
		y := (float64(r.Min.Y) - padY) / scale
		w := float64(r.Dx()) / scale
		h := float64(r.Dy()) / scale
		box := annotation.Box{
			CX: (x + w/2) / srcW,
			CY: (y + h/2) / srcH,
			W:  w / srcW,
			H:  h / srcH,
		}.Clamp()
		if !box.Valid() {
			continue
		}
		candidates = append(candidates, Candidate{
			Name:       d.cfg.ClassNames[classes[idx]],
			Box:        box,
			Confidence: float64(scores[idx]),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates, nil
}
