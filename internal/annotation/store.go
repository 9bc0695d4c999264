package annotation

import "fmt"

// Annotation binds a normalized box to a category. The ID is unique
// within one image's store and stable across edits; it is never reused
// after a delete within the same session.
type Annotation struct {
	ID         int64 `json:"id"`
	CategoryID int   `json:"category_id"`
	Box        Box   `json:"box"`
}

// Store holds all annotations for one open image. It is the unit of
// mutation for interactive editing: every create, move, resize, and
// delete goes through it. The store does not persist itself; the codec
// layer serializes its contents on save.
//
// All methods are synchronous and effects are immediately visible to
// subsequent reads. The store is confined to the UI event thread;
// background exports work from a Snapshot instead of the live store.
type Store struct {
	order  []int64
	byID   map[int64]*Annotation
	nextID int64
}

// NewStore creates an empty annotation store.
func NewStore() *Store {
	return &Store{byID: make(map[int64]*Annotation)}
}

// Len returns the number of annotations in the store.
func (s *Store) Len() int {
	return len(s.order)
}

// Create validates the box, clamps it to the unit square, and adds a
// new annotation. The assigned annotation is returned by value.
func (s *Store) Create(box Box, categoryID int) (Annotation, error) {
	if !box.Valid() {
		return Annotation{}, fmt.Errorf("create %v: %w", box, ErrInvalidGeometry)
	}
	clamped := box.Clamp()
	if !clamped.Valid() {
		// Clamping a box that lies entirely outside the image collapses
		// it to zero size.
		return Annotation{}, fmt.Errorf("create %v: outside image: %w", box, ErrInvalidGeometry)
	}

	s.nextID++
	a := &Annotation{ID: s.nextID, CategoryID: categoryID, Box: clamped}
	s.byID[a.ID] = a
	s.order = append(s.order, a.ID)
	return *a, nil
}

// Update replaces the box of an existing annotation.
func (s *Store) Update(id int64, box Box) error {
	a, ok := s.byID[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if !box.Valid() {
		return fmt.Errorf("update %d: %w", id, ErrInvalidGeometry)
	}
	a.Box = box.Clamp()
	return nil
}

// SetCategory rebinds an existing annotation to another category.
func (s *Store) SetCategory(id int64, categoryID int) error {
	a, ok := s.byID[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	a.CategoryID = categoryID
	return nil
}

// Delete removes an annotation. The freed id is not reused.
func (s *Store) Delete(id int64) error {
	if _, ok := s.byID[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the annotation with the given id.
func (s *Store) Get(id int64) (Annotation, error) {
	a, ok := s.byID[id]
	if !ok {
		return Annotation{}, &NotFoundError{ID: id}
	}
	return *a, nil
}

// All returns every annotation in insertion order.
func (s *Store) All() []Annotation {
	out := make([]Annotation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Snapshot returns a point-in-time copy of the store's contents for
// background export. Later edits to the live store do not affect it.
func (s *Store) Snapshot() []Annotation {
	return s.All()
}

// Replace discards the current contents and loads the given
// annotations, preserving their order. Invalid boxes are skipped and
// counted rather than failing the whole load. Loaded annotations get
// fresh ids.
func (s *Store) Replace(annotations []Annotation) (skipped int) {
	s.order = s.order[:0]
	s.byID = make(map[int64]*Annotation, len(annotations))
	for _, a := range annotations {
		if _, err := s.Create(a.Box, a.CategoryID); err != nil {
			skipped++
		}
	}
	return skipped
}
