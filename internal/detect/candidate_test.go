package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kolo-studio/internal/annotation"
	"kolo-studio/internal/category"
)

func TestMergeDropsNearDuplicates(t *testing.T) {
	candidates := []Candidate{
		{Name: "car", Box: annotation.Box{CX: 0.50, CY: 0.50, W: 0.20, H: 0.20}, Confidence: 0.9},
		{Name: "car", Box: annotation.Box{CX: 0.52, CY: 0.49, W: 0.21, H: 0.18}, Confidence: 0.8},
		{Name: "car", Box: annotation.Box{CX: 0.80, CY: 0.50, W: 0.20, H: 0.20}, Confidence: 0.7},
	}

	got := Merge(candidates, MergeThreshold)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-12, "the earlier candidate survives")
	assert.InDelta(t, 0.5, got[0].Box.CX, 1e-12)
	assert.InDelta(t, 0.8, got[1].Box.CX, 1e-12)
}

func TestMergeKeepsDifferentCategories(t *testing.T) {
	candidates := []Candidate{
		{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
		{Name: "truck", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
	}
	assert.Len(t, Merge(candidates, MergeThreshold), 2)
}

func TestMergeOneCoordinatePastThreshold(t *testing.T) {
	candidates := []Candidate{
		{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
		{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.26}},
	}
	assert.Len(t, Merge(candidates, MergeThreshold), 2, "any coordinate past threshold keeps both")
}

func TestApplyRegistersAndCreates(t *testing.T) {
	store := annotation.NewStore()
	reg := category.NewRegistry()
	reg.Register("car")

	added, skipped := Apply(store, reg, []Candidate{
		{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
		{Name: "bicycle", Box: annotation.Box{CX: 0.2, CY: 0.2, W: 0.1, H: 0.1}},
	})
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, skipped)

	id, ok := reg.ID("bicycle")
	require.True(t, ok)
	assert.Equal(t, 1, id, "unknown categories auto-register with the next id")

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, 0, all[0].CategoryID)
	assert.Equal(t, 1, all[1].CategoryID)
}

func TestApplySkipsInvalidGeometry(t *testing.T) {
	store := annotation.NewStore()
	reg := category.NewRegistry()

	added, skipped := Apply(store, reg, []Candidate{
		{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0, H: 0.2}},
		{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, store.Len())
}

func TestSummarize(t *testing.T) {
	candidates := []Candidate{
		{Confidence: 0.8},
		{Confidence: 0.6},
		{Confidence: 0.7},
	}
	r := Summarize(candidates, 3, 0)
	assert.Equal(t, 3, r.Total)
	assert.InDelta(t, 0.7, r.MeanConf, 1e-9)
	assert.InDelta(t, 0.1, r.StdDevConf, 1e-9)
}

func TestSummarizeEdgeCases(t *testing.T) {
	r := Summarize(nil, 0, 0)
	assert.Zero(t, r.MeanConf)
	assert.Zero(t, r.StdDevConf)

	r = Summarize([]Candidate{{Confidence: 0.5}}, 1, 0)
	assert.InDelta(t, 0.5, r.MeanConf, 1e-12)
	assert.Zero(t, r.StdDevConf, "a single sample has no spread")
}
