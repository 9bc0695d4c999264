package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kolo-studio/internal/annotation"
	"kolo-studio/pkg/geometry"
)

const (
	imgW = 1000.0
	imgH = 1000.0
)

func mustCreate(t *testing.T, s *annotation.Store, box annotation.Box, cat int) annotation.Annotation {
	t.Helper()
	a, err := s.Create(box, cat)
	require.NoError(t, err)
	return a
}

func TestHitTestBody(t *testing.T) {
	s := annotation.NewStore()
	a := mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0)

	hit, ok := HitTest(geometry.Point2D{X: 500, Y: 500}, s.All(), imgW, imgH, geometry.IdentityView(), 0)
	require.True(t, ok)
	assert.Equal(t, a.ID, hit.ID)
	assert.Equal(t, HandleBody, hit.Handle)

	_, ok = HitTest(geometry.Point2D{X: 50, Y: 50}, s.All(), imgW, imgH, geometry.IdentityView(), 0)
	assert.False(t, ok)
}

func TestHitTestSmallestAreaWinsWhenNested(t *testing.T) {
	s := annotation.NewStore()
	// Two fully overlapping boxes sharing a center: areas 0.3*1 vs 0.1*1
	// scaled: use 0.3x0.333 (about 0.1) and 0.6x0.5 = 0.3 normalized areas.
	small := mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.3, H: 0.3333333}, 0)
	mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.6, H: 0.5}, 0)

	hit, ok := HitTest(geometry.Point2D{X: 500, Y: 500}, s.All(), imgW, imgH, geometry.IdentityView(), 0)
	require.True(t, ok)
	assert.Equal(t, small.ID, hit.ID, "smallest-area box wins at a shared point")
}

func TestHitTestMostRecentWinsOnEqualArea(t *testing.T) {
	s := annotation.NewStore()
	mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0)
	second := mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0)

	hit, ok := HitTest(geometry.Point2D{X: 500, Y: 500}, s.All(), imgW, imgH, geometry.IdentityView(), 0)
	require.True(t, ok)
	assert.Equal(t, second.ID, hit.ID)
}

func TestHitTestSelectedTakesPrecedence(t *testing.T) {
	s := annotation.NewStore()
	big := mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.6, H: 0.6}, 0)
	mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0)

	hit, ok := HitTest(geometry.Point2D{X: 500, Y: 500}, s.All(), imgW, imgH, geometry.IdentityView(), big.ID)
	require.True(t, ok)
	assert.Equal(t, big.ID, hit.ID, "the selected box stays grabbable under an overlap")
}

func TestHitTestHandles(t *testing.T) {
	s := annotation.NewStore()
	// Pixel rect (400,400)-(600,600).
	a := mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0)

	tests := []struct {
		name   string
		point  geometry.Point2D
		handle HandleKind
	}{
		{"top-left corner", geometry.Point2D{X: 400, Y: 400}, HandleTopLeft},
		{"top-left within tolerance", geometry.Point2D{X: 396, Y: 403}, HandleTopLeft},
		{"top edge midpoint", geometry.Point2D{X: 500, Y: 399}, HandleTop},
		{"right edge midpoint", geometry.Point2D{X: 602, Y: 500}, HandleRight},
		{"bottom-right corner", geometry.Point2D{X: 600, Y: 600}, HandleBottomRight},
		{"bottom edge midpoint", geometry.Point2D{X: 500, Y: 601}, HandleBottom},
		{"left edge midpoint", geometry.Point2D{X: 398, Y: 500}, HandleLeft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := HitTest(tt.point, s.All(), imgW, imgH, geometry.IdentityView(), a.ID)
			require.True(t, ok)
			assert.Equal(t, tt.handle, hit.Handle)
		})
	}
}

func TestHitTestHandlesOnlyOnSelected(t *testing.T) {
	s := annotation.NewStore()
	a := mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0)

	// Unselected: a point just outside the corner is a miss, not a handle.
	_, ok := HitTest(geometry.Point2D{X: 396, Y: 396}, s.All(), imgW, imgH, geometry.IdentityView(), 0)
	assert.False(t, ok)

	hit, ok := HitTest(geometry.Point2D{X: 396, Y: 396}, s.All(), imgW, imgH, geometry.IdentityView(), a.ID)
	require.True(t, ok)
	assert.Equal(t, HandleTopLeft, hit.Handle)
}

func TestHitTestUnderZoom(t *testing.T) {
	s := annotation.NewStore()
	a := mustCreate(t, s, annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, 0)

	view := geometry.ViewTransform{Zoom: 2.0, PanX: -100, PanY: -100}
	// Pixel (500,500) maps to view (900,900).
	hit, ok := HitTest(geometry.Point2D{X: 900, Y: 900}, s.All(), imgW, imgH, view, 0)
	require.True(t, ok)
	assert.Equal(t, a.ID, hit.ID)

	// Pixel corner (400,400) maps to view (700,700).
	hit, ok = HitTest(geometry.Point2D{X: 700, Y: 700}, s.All(), imgW, imgH, view, a.ID)
	require.True(t, ok)
	assert.Equal(t, HandleTopLeft, hit.Handle)
}
