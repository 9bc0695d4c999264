package app

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kolo-studio/internal/annotation"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, f.Close())
}

// newTestProject builds a project directory with two images and returns
// a state with the project loaded.
func newTestProject(t *testing.T) (*State, string) {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 100, 100)
	writePNG(t, filepath.Join(dir, "b.png"), 200, 100)

	s := NewState()
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.NewProject(filepath.Join(dir, "test.koloproj"), dir))
	return s, dir
}

func TestNewProjectListsImages(t *testing.T) {
	s, _ := newTestProject(t)
	assert.Equal(t, []string{"a.png", "b.png"}, s.Images)
	assert.Equal(t, "", s.CurrentImage())
}

func TestOpenImageEmpty(t *testing.T) {
	s, _ := newTestProject(t)

	store, skipped, err := s.OpenImage("a.png")
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, "a.png", s.CurrentImage())

	w, h, err := s.ImageDims("a.png")
	require.NoError(t, err)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
}

func TestOpenImageLoadsAndAutoRegisters(t *testing.T) {
	s, dir := newTestProject(t)

	// "car" plus one malformed line.
	content := "Y2Fy 0.500000000 0.500000000 0.200000000 0.200000000\nbroken line\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.kolo"), []byte(content), 0o644))

	store, skipped, err := s.OpenImage("a.png")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Equal(t, 1, store.Len())

	id, ok := s.Registry.ID("car")
	require.True(t, ok)
	assert.Equal(t, 0, id)
	assert.Equal(t, id, store.All()[0].CategoryID)
}

func TestSaveImageWritesFileAndDB(t *testing.T) {
	s, dir := newTestProject(t)

	store, _, err := s.OpenImage("a.png")
	require.NoError(t, err)

	catID := s.Registry.Register("person")
	_, err = store.Create(annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, catID)
	require.NoError(t, err)

	require.NoError(t, s.SaveImage("a.png"))

	_, err = os.Stat(filepath.Join(dir, "a.kolo"))
	require.NoError(t, err)

	mirror, err := s.DB.LoadImage("a.png")
	require.NoError(t, err)
	require.Len(t, mirror, 1)
	assert.Equal(t, "person", mirror[0].Name)
}

func TestOpenImageReturnsSameStore(t *testing.T) {
	s, _ := newTestProject(t)

	first, _, err := s.OpenImage("a.png")
	require.NoError(t, err)
	catID := s.Registry.Register("car")
	_, err = first.Create(annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, catID)
	require.NoError(t, err)

	_, _, err = s.OpenImage("b.png")
	require.NoError(t, err)

	again, _, err := s.OpenImage("a.png")
	require.NoError(t, err)
	assert.Same(t, first, again, "reopening keeps unsaved edits")
	assert.Equal(t, 1, again.Len())
}

func TestSaveProjectPersistsCategories(t *testing.T) {
	s, dir := newTestProject(t)
	s.Registry.Register("car")
	s.Registry.Register("person")
	require.NoError(t, s.SaveProject())

	reopened := NewState()
	defer reopened.Close()
	require.NoError(t, reopened.LoadProject(filepath.Join(dir, "test.koloproj")))
	assert.Equal(t, []string{"car", "person"}, reopened.Registry.Names())

	stored, err := reopened.DB.LoadCategories()
	require.NoError(t, err)
	assert.Equal(t, []string{"car", "person"}, stored)
}

func TestStep(t *testing.T) {
	s, _ := newTestProject(t)

	_, _, err := s.OpenImage("a.png")
	require.NoError(t, err)

	next, ok := s.Step(1)
	require.True(t, ok)
	assert.Equal(t, "b.png", next)

	_, _, err = s.OpenImage("b.png")
	require.NoError(t, err)

	_, ok = s.Step(1)
	assert.False(t, ok, "already at the last image")

	prev, ok := s.Step(-1)
	require.True(t, ok)
	assert.Equal(t, "a.png", prev)
}

func TestExportSetsSkipsUnannotated(t *testing.T) {
	s, _ := newTestProject(t)

	store, _, err := s.OpenImage("a.png")
	require.NoError(t, err)
	catID := s.Registry.Register("car")
	_, err = store.Create(annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, catID)
	require.NoError(t, err)

	sets := s.ExportSets()
	require.Len(t, sets, 1)
	assert.Equal(t, "a.png", sets[0].Name)
	assert.Equal(t, 100, sets[0].Width)
	require.Len(t, sets[0].Records, 1)
	assert.Equal(t, "car", sets[0].Records[0].Name)
}

func TestExportSetsReadsClosedImagesFromDisk(t *testing.T) {
	s, dir := newTestProject(t)

	content := "Y2Fy 0.500000000 0.500000000 0.200000000 0.200000000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.kolo"), []byte(content), 0o644))

	sets := s.ExportSets()
	require.Len(t, sets, 1)
	assert.Equal(t, "b.png", sets[0].Name)
	assert.Equal(t, 200, sets[0].Width)
}

func TestEvents(t *testing.T) {
	s, _ := newTestProject(t)

	var opened []string
	s.On(EventImageOpened, func(data interface{}) {
		opened = append(opened, data.(string))
	})

	_, _, err := s.OpenImage("a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, opened)
}
