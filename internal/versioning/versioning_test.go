package versioning

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		path    string
		base    string
		ext     string
		version int
	}{
		{"xs_001.csv", "xs_001", ".csv", 0},
		{"xs_001_v02.csv", "xs_001", ".csv", 2},
		{"xs_001_v117.CSV", "xs_001", ".CSV", 117},
		{"river_vx.csv", "river_vx", ".csv", 0},
		{"noext_v3", "noext", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, base, ext, v := Split(filepath.Join("data", tt.path))
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.ext, ext)
			assert.Equal(t, tt.version, v)
		})
	}
}

func TestPath(t *testing.T) {
	src := filepath.Join("data", "xs_001_v02.csv")
	assert.Equal(t, filepath.Join("data", "xs_001_v03.csv"), Path(src, Increment, 3))
	assert.Equal(t, filepath.Join("data", "xs_001_v120.csv"), Path(src, Increment, 120))
	assert.Equal(t, src, Path(src, InPlace, 3))
	assert.Equal(t, filepath.Join("data", "xs_v01.txt"), Path(filepath.Join("data", "xs.txt"), Increment, 1))
}

func TestPlotPath(t *testing.T) {
	assert.Equal(t, filepath.Join("d", "xs_v03.png"), PlotPath(filepath.Join("d", "xs_v03.csv")))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Increment")
	require.NoError(t, err)
	assert.Equal(t, Increment, p)
	p, err = ParsePolicy("in-place")
	require.NoError(t, err)
	assert.Equal(t, InPlace, p)
	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestLatest(t *testing.T) {
	cands := []string{
		filepath.Join("ref", "xs_001_v01.csv"),
		filepath.Join("ref", "xs_001_v04.csv"),
		filepath.Join("ref", "xs_002_v09.csv"),
		filepath.Join("ref", "xs_001.csv"),
		filepath.Join("ref", "xs_001_v03.txt"),
	}
	got, ok := Latest(filepath.Join("work", "xs_001.csv"), cands)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("ref", "xs_001_v04.csv"), got)

	_, ok = Latest(filepath.Join("work", "xs_003.csv"), cands)
	assert.False(t, ok)

	// the file itself is never its own reference
	_, ok = Latest(cands[2], cands[2:3])
	assert.False(t, ok)
}

func TestID(t *testing.T) {
	assert.Equal(t, "xs_001_v02", ID(filepath.Join("a", "xs_001_v02.csv")))
}
