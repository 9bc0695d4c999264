// Package app provides application lifecycle management, state, and events.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"kolo-studio/internal/annotation"
	"kolo-studio/internal/category"
	"kolo-studio/internal/db"
	"kolo-studio/internal/export"
	"kolo-studio/internal/imageio"
	"kolo-studio/internal/kolofile"
	"kolo-studio/internal/project"
)

// State holds the application state: the open project, the category
// registry, and one annotation store per opened image.
type State struct {
	mu sync.RWMutex

	// Project
	ProjectPath string
	Project     *project.File
	Modified    bool

	// Categories, shared by every image in the project
	Registry *category.Registry

	// Database mirror, nil until a project is open
	DB *db.DB

	// Images
	Images  []string // image file names in the project directory, sorted
	Current int      // index into Images, -1 when nothing is open

	stores map[string]*annotation.Store
	dims   map[string][2]int

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventProjectLoaded EventType = iota
	EventProjectSaved
	EventImageOpened
	EventAnnotationsChanged
	EventCategoriesChanged
	EventModified
	EventDetectionComplete
	EventExportComplete
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates a new application state.
func NewState() *State {
	return &State{
		Registry:  category.NewRegistry(),
		Current:   -1,
		stores:    make(map[string]*annotation.Store),
		dims:      make(map[string][2]int),
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the project as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// NewProject creates and saves a fresh project over an image directory.
func (s *State) NewProject(path, imageDir string) error {
	name := filepath.Base(path)
	name = name[:len(name)-len(filepath.Ext(name))]

	proj := project.New(name, imageDir)
	proj.SetImageDir(path, imageDir)
	if err := proj.Save(path); err != nil {
		return fmt.Errorf("app: save project: %w", err)
	}
	return s.LoadProject(path)
}

// LoadProject loads a project from the specified path: the project
// file, the category list, the database mirror, and the image listing.
func (s *State) LoadProject(path string) error {
	proj, err := project.Load(path)
	if err != nil {
		return fmt.Errorf("app: load project: %w", err)
	}

	reg := category.NewRegistry()
	if err := reg.Load(proj.Categories); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	database, err := db.Open(proj.GetDatabasePath(path))
	if err != nil {
		return err
	}

	images, err := imageio.ListDir(proj.GetImageDir(path))
	if err != nil {
		database.Close()
		return err
	}

	s.mu.Lock()
	if s.DB != nil {
		s.DB.Close()
	}
	s.ProjectPath = path
	s.Project = proj
	s.Modified = false
	s.Registry = reg
	s.DB = database
	s.Images = images
	s.Current = -1
	s.stores = make(map[string]*annotation.Store)
	s.dims = make(map[string][2]int)
	s.mu.Unlock()

	s.Emit(EventProjectLoaded, path)
	return nil
}

// SaveProject writes the project file, including the current category
// list, and mirrors the categories to the database.
func (s *State) SaveProject() error {
	s.mu.Lock()
	if s.Project == nil {
		s.mu.Unlock()
		return fmt.Errorf("app: no project open")
	}
	s.Project.Categories = s.Registry.Names()
	path := s.ProjectPath
	proj := s.Project
	database := s.DB
	s.mu.Unlock()

	if err := proj.Save(path); err != nil {
		return fmt.Errorf("app: save project: %w", err)
	}
	if err := database.SaveCategories(proj.Categories); err != nil {
		return err
	}
	s.SetModified(false)
	s.Emit(EventProjectSaved, path)
	return nil
}

// ImagePath returns the absolute path of an image in the project.
func (s *State) ImagePath(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filepath.Join(s.Project.GetImageDir(s.ProjectPath), name)
}

// OpenImage loads an image's annotations into a store, creating the
// store on first open. Unknown category names in the annotation file
// are auto-registered. The returned skipped count is the number of
// malformed lines dropped during the load.
func (s *State) OpenImage(name string) (store *annotation.Store, skipped int, err error) {
	path := s.ImagePath(name)

	s.mu.Lock()
	store, ok := s.stores[name]
	s.mu.Unlock()
	if !ok {
		res, err := kolofile.LoadFor(path)
		if err != nil {
			return nil, 0, err
		}
		skipped = res.SkippedCount()

		store = annotation.NewStore()
		for _, rec := range res.Records {
			id := s.register(rec.Name)
			if _, err := store.Create(rec.Box, id); err != nil {
				skipped++
			}
		}

		s.mu.Lock()
		s.stores[name] = store
		s.mu.Unlock()
	}

	if _, _, err := s.ImageDims(name); err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	for i, img := range s.Images {
		if img == name {
			s.Current = i
			break
		}
	}
	s.mu.Unlock()

	s.Emit(EventImageOpened, name)
	return store, skipped, nil
}

func (s *State) register(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Registry.Ensure(name)
}

// ImageDims returns the pixel dimensions of a project image, probing
// the file header once and caching the result.
func (s *State) ImageDims(name string) (width, height int, err error) {
	s.mu.RLock()
	d, ok := s.dims[name]
	s.mu.RUnlock()
	if ok {
		return d[0], d[1], nil
	}

	width, height, err = imageio.Dimensions(s.ImagePath(name))
	if err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	s.dims[name] = [2]int{width, height}
	s.mu.Unlock()
	return width, height, nil
}

// SaveImage writes an image's annotations to its sibling .kolo file and
// mirrors them into the database in the same pass.
func (s *State) SaveImage(name string) error {
	s.mu.RLock()
	store, ok := s.stores[name]
	database := s.DB
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("app: image %s not open", name)
	}

	records, err := s.Records(store)
	if err != nil {
		return err
	}
	if err := kolofile.SaveFor(s.ImagePath(name), records); err != nil {
		return err
	}
	if err := database.ReplaceImage(name, records); err != nil {
		return err
	}
	s.Emit(EventAnnotationsChanged, name)
	return nil
}

// SaveAll saves every opened image and then the project file.
func (s *State) SaveAll() error {
	s.mu.RLock()
	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	s.mu.RUnlock()

	for _, name := range names {
		if err := s.SaveImage(name); err != nil {
			return err
		}
	}
	return s.SaveProject()
}

// Records converts a store snapshot to named records for the codecs.
func (s *State) Records(store *annotation.Store) ([]kolofile.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := store.Snapshot()
	records := make([]kolofile.Record, 0, len(snapshot))
	for _, a := range snapshot {
		name, ok := s.Registry.Name(a.CategoryID)
		if !ok {
			return nil, fmt.Errorf("app: annotation %d: unknown category id %d", a.ID, a.CategoryID)
		}
		records = append(records, kolofile.Record{Name: name, Box: a.Box})
	}
	return records, nil
}

// ExportSets snapshots every annotated image in the project for a
// background export job. Opened images contribute their live store's
// snapshot; the rest read from disk. Images with no annotations are
// left out.
func (s *State) ExportSets() []export.ImageSet {
	s.mu.RLock()
	images := make([]string, len(s.Images))
	copy(images, s.Images)
	s.mu.RUnlock()

	var sets []export.ImageSet
	for _, name := range images {
		set := export.ImageSet{Name: name}

		s.mu.RLock()
		store, open := s.stores[name]
		s.mu.RUnlock()

		if open {
			records, err := s.Records(store)
			if err != nil {
				continue
			}
			set.Records = records
		} else {
			res, err := kolofile.LoadFor(s.ImagePath(name))
			if err != nil {
				continue
			}
			set.Records = res.Records
		}
		if len(set.Records) == 0 {
			continue
		}

		// Zero dimensions are deliberate on probe failure: the COCO job
		// reports them per image instead of aborting the export.
		if w, h, err := s.ImageDims(name); err == nil {
			set.Width, set.Height = w, h
		}
		sets = append(sets, set)
	}
	return sets
}

// CurrentImage returns the name of the open image, or "".
func (s *State) CurrentImage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Current < 0 || s.Current >= len(s.Images) {
		return ""
	}
	return s.Images[s.Current]
}

// Step returns the image name delta positions away from the current
// one, clamped to the project's image list.
func (s *State) Step(delta int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Images) == 0 {
		return "", false
	}
	i := s.Current + delta
	if i < 0 {
		i = 0
	}
	if i >= len(s.Images) {
		i = len(s.Images) - 1
	}
	if i == s.Current {
		return "", false
	}
	return s.Images[i], true
}

// Close releases the project database.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DB == nil {
		return nil
	}
	err := s.DB.Close()
	s.DB = nil
	return err
}

// ProjectDir returns the directory containing the project file.
func (s *State) ProjectDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ProjectPath == "" {
		wd, _ := os.Getwd()
		return wd
	}
	return filepath.Dir(s.ProjectPath)
}
