package kolofile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kolo-studio/internal/annotation"
)

func TestDecode(t *testing.T) {
	// "car" and "traffic light" encoded with standard Base64.
	input := strings.Join([]string{
		"Y2Fy 0.500000000 0.500000000 0.200000000 0.200000000",
		"dHJhZmZpYyBsaWdodA== 0.250000000 0.750000000 0.100000000 0.300000000",
	}, "\n")

	res, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 0, res.SkippedCount())

	assert.Equal(t, "car", res.Records[0].Name)
	assert.InDelta(t, 0.5, res.Records[0].Box.CX, 1e-12)
	assert.Equal(t, "traffic light", res.Records[1].Name)
	assert.InDelta(t, 0.3, res.Records[1].Box.H, 1e-12)
}

func TestDecodeSkipsMalformedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"wrong field count", "Y2Fy 0.5 0.5 0.2"},
		{"bad base64", "!!notbase64!! 0.5 0.5 0.2 0.2"},
		{"non-numeric geometry", "Y2Fy 0.5 abc 0.2 0.2"},
		{"zero size", "Y2Fy 0.5 0.5 0.000000000 0.200000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := strings.Join([]string{
				"Y2Fy 0.100000000 0.100000000 0.050000000 0.050000000",
				tt.line,
				"Y2Fy 0.200000000 0.200000000 0.050000000 0.050000000",
				"Y2Fy 0.300000000 0.300000000 0.050000000 0.050000000",
			}, "\n")

			res, err := Decode(strings.NewReader(input))
			require.NoError(t, err)
			assert.Len(t, res.Records, 3)
			require.Equal(t, 1, res.SkippedCount())
			assert.Equal(t, 2, res.Skipped[0].Line)
		})
	}
}

func TestDecodeIgnoresBlankLines(t *testing.T) {
	input := "\nY2Fy 0.5 0.5 0.2 0.2\n\n\n"
	res, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 0, res.SkippedCount())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	records := []Record{
		{Name: "person", Box: annotation.Box{CX: 0.123456789, CY: 0.987654321, W: 0.5, H: 0.25}},
		{Name: "car", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}},
		{Name: "car", Box: annotation.Box{CX: 0.7, CY: 0.1, W: 0.05, H: 0.05}},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, records))

	res, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 0, res.SkippedCount())

	// Encode orders by category name, keeping input order within one.
	want := []Record{records[1], records[2], records[0]}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeBase64NamesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []Record{
		{Name: "traffic light", Box: annotation.Box{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}},
	}))

	line := strings.TrimSpace(buf.String())
	fields := strings.Fields(line)
	require.Len(t, fields, 5, "a name with spaces must stay one token")
	assert.Equal(t, "dHJhZmZpYyBsaWdodA==", fields[0])
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, "/data/img01.kolo", PathFor("/data/img01.jpg"))
	assert.Equal(t, "/data/img01.kolo", PathFor("/data/img01.png"))
	assert.Equal(t, "noext.kolo", PathFor("noext"))
}

func TestLoadForMissingFile(t *testing.T) {
	res, err := LoadFor(filepath.Join(t.TempDir(), "absent.png"))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, res.SkippedCount())
}

func TestSaveForAndLoadFor(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "frame.png")

	records := []Record{
		{Name: "dog", Box: annotation.Box{CX: 0.4, CY: 0.4, W: 0.2, H: 0.3}},
	}
	require.NoError(t, SaveFor(img, records))

	_, err := os.Stat(filepath.Join(dir, "frame.kolo"))
	require.NoError(t, err)

	res, err := LoadFor(img)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "dog", res.Records[0].Name)
	assert.InDelta(t, 0.3, res.Records[0].Box.H, 1e-9)
}
