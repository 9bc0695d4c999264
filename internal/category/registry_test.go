package category

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, 0, r.Register("car"))
	assert.Equal(t, 1, r.Register("person"))
	assert.Equal(t, 2, r.Register("traffic light"))

	// Re-registering returns the original id.
	assert.Equal(t, 1, r.Register("person"))
	assert.Equal(t, 3, r.Len())
}

func TestRegistryLookups(t *testing.T) {
	r := NewRegistry()
	r.Register("car")
	r.Register("person")

	id, ok := r.ID("person")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	name, ok := r.Name(0)
	require.True(t, ok)
	assert.Equal(t, "car", name)

	_, ok = r.ID("bicycle")
	assert.False(t, ok)
	_, ok = r.Name(9)
	assert.False(t, ok)
}

func TestNamesPreserveRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zebra", "apple", "mango"} {
		r.Register(name)
	}
	if diff := cmp.Diff([]string{"zebra", "apple", "mango"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	r := NewRegistry()
	r.Register("old")

	require.NoError(t, r.Load([]string{"car", "person"}))
	assert.Equal(t, []string{"car", "person"}, r.Names())
	_, ok := r.ID("old")
	assert.False(t, ok)

	assert.Error(t, r.Load([]string{"car", "car"}))
}

func TestEnsureAutoRegisters(t *testing.T) {
	r := NewRegistry()
	r.Register("car")

	id := r.Ensure("bus")
	assert.Equal(t, 1, id)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, r.Ensure("bus"))
}

func TestColorStableAndBounded(t *testing.T) {
	a := Color("traffic light")
	b := Color("traffic light")
	assert.Equal(t, a, b, "color must be stable for a name")

	for _, name := range []string{"car", "person", "dog", "", "白菜"} {
		c := Color(name)
		for _, ch := range []uint8{c.R, c.G, c.B} {
			assert.GreaterOrEqual(t, ch, uint8(60))
			assert.LessOrEqual(t, ch, uint8(220))
		}
		assert.Equal(t, uint8(255), c.A)
	}
}
