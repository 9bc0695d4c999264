package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kolo-studio/internal/annotation"
	"kolo-studio/internal/category"
	"kolo-studio/internal/kolofile"
)

func testSets() []ImageSet {
	return []ImageSet{
		{
			Name: "street01.jpg", Width: 1920, Height: 1080,
			Records: []kolofile.Record{
				{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
				{Name: "person", Box: annotation.Box{CX: 0.123456789, CY: 0.7, W: 0.05, H: 0.25}},
			},
		},
		{
			Name: "street02.jpg", Width: 640, Height: 480,
			Records: []kolofile.Record{
				{Name: "car", Box: annotation.Box{CX: 0.25, CY: 0.25, W: 0.1, H: 0.1}},
			},
		},
	}
}

func testRegistry(t *testing.T, sets []ImageSet) *category.Registry {
	t.Helper()
	reg := category.NewRegistry()
	for _, set := range sets {
		for _, rec := range set.Records {
			reg.Ensure(rec.Name)
		}
	}
	return reg
}

func requireSetsEqual(t *testing.T, want, got []ImageSet, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Len(t, got[i].Records, len(want[i].Records), "image %s", want[i].Name)
		for j, w := range want[i].Records {
			g := got[i].Records[j]
			assert.Equal(t, w.Name, g.Name)
			assert.InDelta(t, w.Box.CX, g.Box.CX, tol)
			assert.InDelta(t, w.Box.CY, g.Box.CY, tol)
			assert.InDelta(t, w.Box.W, g.Box.W, tol)
			assert.InDelta(t, w.Box.H, g.Box.H, tol)
		}
	}
}

func TestCOCORoundTrip(t *testing.T) {
	sets := testSets()
	reg := testRegistry(t, sets)

	var buf bytes.Buffer
	skipped, err := EncodeCOCO(&buf, sets, reg)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	fresh := category.NewRegistry()
	got, err := DecodeCOCO(&buf, fresh)
	require.NoError(t, err)

	requireSetsEqual(t, sets, got, 1e-4)
	assert.Equal(t, reg.Names(), fresh.Names(), "import re-registers categories in order")
}

func TestCOCOPixelGeometry(t *testing.T) {
	sets := []ImageSet{{
		Name: "a.png", Width: 1000, Height: 1000,
		Records: []kolofile.Record{
			{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
		},
	}}
	reg := testRegistry(t, sets)

	var buf bytes.Buffer
	_, err := EncodeCOCO(&buf, sets, reg)
	require.NoError(t, err)

	out := buf.String()
	// Pixel bbox is top-left based: (400,400) size 200x200, area 40000.
	assert.Contains(t, out, `"bbox": [`)
	assert.Contains(t, out, "400,")
	assert.Contains(t, out, `"area": 40000`)
	assert.Contains(t, out, `"iscrowd": 0`)
}

func TestCOCOSkipsImageWithoutDimensions(t *testing.T) {
	sets := testSets()
	sets[1].Width = 0
	reg := testRegistry(t, sets)

	var buf bytes.Buffer
	skipped, err := EncodeCOCO(&buf, sets, reg)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "street02.jpg", skipped[0].Image)

	got, err := DecodeCOCO(&buf, category.NewRegistry())
	require.NoError(t, err)
	require.Len(t, got, 1, "the dimensionless image is absent, the rest survive")
	assert.Equal(t, "street01.jpg", got[0].Name)
}

func TestCOCOImportAutoRegistersUnknownCategories(t *testing.T) {
	sets := testSets()
	reg := testRegistry(t, sets)
	var buf bytes.Buffer
	_, err := EncodeCOCO(&buf, sets, reg)
	require.NoError(t, err)

	partial := category.NewRegistry()
	partial.Register("car")
	_, err = DecodeCOCO(&buf, partial)
	require.NoError(t, err)

	id, ok := partial.ID("person")
	require.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestYOLORoundTrip(t *testing.T) {
	dir := t.TempDir()
	sets := testSets()
	reg := testRegistry(t, sets)

	require.NoError(t, EncodeYOLO(dir, sets, reg))

	classes, err := os.ReadFile(filepath.Join(dir, "classes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "car\nperson\n", string(classes))

	fresh := category.NewRegistry()
	got, err := DecodeYOLO(dir, fresh)
	require.NoError(t, err)
	assert.Equal(t, []string{"car", "person"}, fresh.Names())

	// Label files carry no image extension.
	want := testSets()
	want[0].Name = "street01"
	want[0].Width, want[0].Height = 0, 0
	want[1].Name = "street02"
	want[1].Width, want[1].Height = 0, 0
	requireSetsEqual(t, want, got, 1e-4)
}

func TestYOLOLabelFormat(t *testing.T) {
	dir := t.TempDir()
	sets := []ImageSet{{
		Name: "a.jpg", Width: 100, Height: 100,
		Records: []kolofile.Record{
			{Name: "person", Box: annotation.Box{CX: 0.5, CY: 0.25, W: 0.1, H: 0.2}},
		},
	}}
	reg := category.NewRegistry()
	reg.Register("car")
	reg.Register("person")

	require.NoError(t, EncodeYOLO(dir, sets, reg))

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1 0.500000 0.250000 0.100000 0.200000\n", string(data))
}

func TestYOLODecodeDropsBadLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classes.txt"), []byte("car\n"), 0o644))
	label := strings.Join([]string{
		"0 0.5 0.5 0.2 0.2",
		"7 0.5 0.5 0.2 0.2",  // class index out of range
		"0 0.5 0.5 0.2",      // short line
		"0 0.5 abc 0.2 0.2",  // non-numeric
		"0 0.5 0.5 0.0 0.2",  // zero width
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte(label), 0o644))

	got, err := DecodeYOLO(dir, category.NewRegistry())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Records, 1)
}

func TestRunYOLOSummary(t *testing.T) {
	dir := t.TempDir()
	sets := testSets()
	reg := testRegistry(t, sets)

	summary, err := Run(context.Background(), Job{
		Format: FormatYOLO, Out: dir, Sets: sets, Registry: reg,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, "2 images exported", summary.String())
}

func TestRunCOCOFailuresAreIsolated(t *testing.T) {
	dir := t.TempDir()
	sets := testSets()
	sets[0].Height = 0
	reg := testRegistry(t, sets)

	out := filepath.Join(dir, "out.json")
	summary, err := Run(context.Background(), Job{
		Format: FormatCOCO, Out: out, Sets: sets, Registry: reg,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	var dimErr *MissingImageDimensionsError
	require.ErrorAs(t, summary.Errors["street01.jpg"], &dimErr)
	assert.Equal(t, "1 images exported, 1 failed", summary.String())
}

func TestRunNative(t *testing.T) {
	dir := t.TempDir()
	sets := testSets()
	reg := testRegistry(t, sets)

	summary, err := Run(context.Background(), Job{
		Format: FormatNative, Out: dir, Sets: sets, Registry: reg,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)

	res, err := kolofile.LoadFor(filepath.Join(dir, "street01.jpg"))
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Job{
		Format: FormatYOLO, Out: t.TempDir(), Sets: testSets(), Registry: category.NewRegistry(),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartDeliversResult(t *testing.T) {
	dir := t.TempDir()
	sets := testSets()
	reg := testRegistry(t, sets)

	res := <-Start(context.Background(), Job{
		Format: FormatYOLO, Out: dir, Sets: sets, Registry: reg,
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Summary.Succeeded)
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"coco", "yolo", "kolo"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}
	_, err := ParseFormat("voc")
	assert.Error(t, err)
}
