// Package category provides the project-wide registry of annotation
// categories.
package category

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image/color"
	"strconv"

	"kolo-studio/pkg/colorutil"
)

// Category binds a stable small integer id to a display name. Ids are
// assigned on first registration and never change for the lifetime of a
// project.
type Category struct {
	ID   int
	Name string
}

// Registry is the ordered name-to-id mapping shared by every image in a
// project. It has a single writer (registration) and is passed
// explicitly to the components that need it rather than living in
// package-level state.
type Registry struct {
	ordered []Category
	byName  map[string]int
	byID    map[int]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]int),
		byID:   make(map[int]string),
	}
}

// Register adds a category name if absent and returns its id. The first
// registered name gets id 0, the next id 1, and so on; re-registering
// an existing name returns the original id.
func (r *Registry) Register(name string) int {
	if id, ok := r.byName[name]; ok {
		return id
	}
	id := len(r.ordered)
	r.ordered = append(r.ordered, Category{ID: id, Name: name})
	r.byName[name] = id
	r.byID[id] = name
	return id
}

// ID returns the id for a name.
func (r *Registry) ID(name string) (int, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Name returns the name for an id.
func (r *Registry) Name(id int) (string, bool) {
	name, ok := r.byID[id]
	return name, ok
}

// Len returns the number of registered categories.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Names returns every category name in registration order. This is the
// order used for YOLO class indices and the persisted class list.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, c := range r.ordered {
		names[i] = c.Name
	}
	return names
}

// Categories returns every category in registration order.
func (r *Registry) Categories() []Category {
	out := make([]Category, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Ensure resolves a category referenced by an interchange file. Unknown
// names are auto-registered so imports stay total and lossless.
func (r *Registry) Ensure(name string) int {
	return r.Register(name)
}

// Load replaces the registry contents with the given ordered name list.
// Duplicate names are rejected because they would alias an id.
func (r *Registry) Load(names []string) error {
	fresh := NewRegistry()
	for _, name := range names {
		if _, dup := fresh.byName[name]; dup {
			return fmt.Errorf("category: duplicate name %q", name)
		}
		fresh.Register(name)
	}
	*r = *fresh
	return nil
}

// Color returns a stable display color for a category name, derived
// from the trailing bytes of the name's MD5 digest. Values are pulled
// into a mid range so outlines never vanish against white or black
// backgrounds.
func Color(name string) color.RGBA {
	sum := md5.Sum([]byte(name))
	digest := hex.EncodeToString(sum[:])

	r, _ := strconv.ParseUint(digest[26:28], 16, 8)
	g, _ := strconv.ParseUint(digest[28:30], 16, 8)
	b, _ := strconv.ParseUint(digest[30:32], 16, 8)

	rf, gf, bf := float64(r), float64(g), float64(b)

	// Too close to white: raise saturation and drop brightness.
	dr, dg, db := 255-rf, 255-gf, 255-bf
	if dr*dr+dg*dg+db*db < 50*50 {
		h, s, v := colorutil.RGBToHSV(rf, gf, bf)
		s = min(1, s+0.16)
		v = max(0.24, v-0.31)
		rf, gf, bf = colorutil.HSVToRGB(h, s, v)
	}

	clamp := func(v float64) uint8 {
		if v < 60 {
			return 60
		}
		if v > 220 {
			return 220
		}
		return uint8(v)
	}
	return color.RGBA{R: clamp(rf), G: clamp(gf), B: clamp(bf), A: 255}
}
