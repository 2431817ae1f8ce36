package prefs

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", prefsFile)
	p := LoadFrom(path)
	assert.Equal(t, "", p.String(KeyLastDirectory))
	assert.Equal(t, 0.3, p.FloatWithFallback(KeySplitOffset, 0.3))

	p.SetString(KeyLastDirectory, "/data/xs")
	p.SetFloat(KeySplitOffset, 0.25)
	p.AddRecent(KeyRecentSections, "a.csv")
	p.AddRecent(KeyRecentSections, "b.csv")
	require.NoError(t, p.Save())

	got := LoadFrom(path)
	assert.Equal(t, "/data/xs", got.String(KeyLastDirectory))
	assert.Equal(t, 0.25, got.FloatWithFallback(KeySplitOffset, 0.3))
	assert.Equal(t, []string{"b.csv", "a.csv"}, got.Strings(KeyRecentSections))
}

func TestAddRecent(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), prefsFile))
	for i := 0; i < MaxRecent+3; i++ {
		p.AddRecent(KeyRecentSections, fmt.Sprintf("%d.csv", i))
	}
	p.AddRecent(KeyRecentSections, "5.csv")

	list := p.Strings(KeyRecentSections)
	assert.Len(t, list, MaxRecent)
	assert.Equal(t, "5.csv", list[0])
	assert.Equal(t, "12.csv", list[1])
	assert.NotContains(t, list[1:], "5.csv")
}
