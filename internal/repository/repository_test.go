package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"xsection-editor/internal/config"
	"xsection-editor/internal/overlap"
	"xsection-editor/internal/plot"
	"xsection-editor/internal/section"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TrimStyle = config.TrimRemove
	return cfg
}

func newRepo(t *testing.T, cfg config.Config, files map[string]string) (*Repository, string, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"xs_001.csv", "xs_002.csv", "xs_003.csv"} {
		if body, ok := files[name]; ok {
			paths = append(paths, writeFile(t, dir, name, body))
		}
	}
	repo := New(cfg, quietLogger())
	loaded, errs := repo.LoadFiles(context.Background(), paths)
	require.Empty(t, errs)
	require.Len(t, loaded, len(paths))
	return repo, dir, paths
}

var threeFiles = map[string]string{
	"xs_001.csv": "x,y\n0,5\n2,4\n5,3\n",
	"xs_002.csv": "x,y\n0,9\n1,8\n",
	"xs_003.csv": "x,y\n0,1\n3,2\n",
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "xs_001.csv", "x,y\n0,5\n2,4\n")
	bad := writeFile(t, dir, "xs_002.csv", "x,y\n0,5\n2,oops\n")
	other := writeFile(t, dir, "xs_003_v04.csv", "x,y\n1,1\n2,2\n")
	missing := filepath.Join(dir, "nope.csv")

	repo := New(testConfig(), quietLogger())
	loaded, errs := repo.LoadFiles(context.Background(), []string{good, bad, other, good, missing})

	assert.Equal(t, []string{"xs_001", "xs_003_v04"}, loaded)
	assert.Equal(t, loaded, repo.IDs())
	require.Len(t, errs, 2)
	var mie *section.MalformedInputError
	assert.ErrorAs(t, errs[bad], &mie)
	assert.ErrorIs(t, errs[missing], os.ErrNotExist)

	assert.Equal(t, "xs_001", repo.CurrentID())
	rec, err := repo.Get("xs_003_v04")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Version())
	assert.False(t, rec.Dirty())

	// loading the same file again is ignored
	loaded, errs = repo.LoadFiles(context.Background(), []string{good})
	assert.Empty(t, loaded)
	assert.Empty(t, errs)
	assert.Equal(t, 2, repo.Len())
}

func TestLoadFilesSameNameDifferentDirs(t *testing.T) {
	a := writeFile(t, t.TempDir(), "xs.csv", "x,y\n0,1\n1,1\n")
	b := writeFile(t, t.TempDir(), "xs.csv", "x,y\n0,2\n1,2\n")
	repo := New(testConfig(), quietLogger())
	loaded, errs := repo.LoadFiles(context.Background(), []string{a, b})
	assert.Empty(t, errs)
	assert.Equal(t, []string{"xs", "xs (2)"}, loaded)
}

func TestLoadNormalizationMarksDirty(t *testing.T) {
	cfg := testConfig()
	cfg.FixVerticalsAndOrder = true
	cfg.StartAtZero = true
	repo, _, _ := newRepo(t, cfg, map[string]string{
		"xs_001.csv": "x,y\n3,5\n3,4\n6,3\n",
		"xs_002.csv": "x,y\n0,5\n1,4\n",
	})

	rec, err := repo.Get("xs_001")
	require.NoError(t, err)
	assert.True(t, rec.Dirty())
	samples := rec.Samples()
	assert.Equal(t, 0.0, samples[0].Station)
	assert.InDelta(t, 0.001, samples[1].Station, 1e-12)
	assert.Equal(t, 3.0, samples[2].Station)

	clean, err := repo.Get("xs_002")
	require.NoError(t, err)
	assert.False(t, clean.Dirty())
}

func TestUnsortableStationSkipsFixVerticals(t *testing.T) {
	cfg := testConfig()
	cfg.FixVerticalsAndOrder = true
	repo, _, _ := newRepo(t, cfg, map[string]string{"xs_001.csv": "h,w\n0,4\n1,4\n2,1\n"})
	rec, err := repo.Get("xs_001")
	require.NoError(t, err)
	assert.False(t, rec.Dirty())
}

func TestSaveIncrement(t *testing.T) {
	repo, dir, paths := newRepo(t, testConfig(), threeFiles)
	rec, err := repo.Get("xs_001")
	require.NoError(t, err)
	require.NoError(t, rec.SetSample(1, 2, 3.5))

	res, err := repo.Save(context.Background(), "xs_001")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "xs_001_v01.csv"), res.Path)
	assert.Equal(t, 1, res.Version)
	assert.Empty(t, res.PlotPath)
	assert.False(t, rec.Dirty())
	assert.Equal(t, 1, rec.Version())

	assert.Equal(t, "x,y\n0,5\n2,3.5\n5,3\n", readFile(t, res.Path))
	assert.Equal(t, threeFiles["xs_001.csv"], readFile(t, paths[0]))

	res, err = repo.Save(context.Background(), "xs_001")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "xs_001_v02.csv"), res.Path)

	ref, ok := repo.ReferenceFor("xs_001")
	require.True(t, ok)
	assert.Equal(t, res.Path, ref)
}

func TestSaveRoundTripWithoutEdits(t *testing.T) {
	body := "Chainage,Z,n\n! surveyed\n0.000,12.50,0.035\n1.5,11.0,0.04\n"
	cfg := testConfig()
	cfg.SaveNamingPolicy = "in_place"
	repo, _, paths := newRepo(t, cfg, map[string]string{"xs_001.csv": body})

	res, err := repo.Save(context.Background(), "xs_001")
	require.NoError(t, err)
	assert.Equal(t, paths[0], res.Path)
	assert.Equal(t, 0, res.Version)
	assert.Equal(t, body, readFile(t, paths[0]))
}

func TestSaveAppliesNormalization(t *testing.T) {
	cfg := testConfig()
	repo, _, _ := newRepo(t, cfg, map[string]string{"xs_001.csv": "x,y\n0,5\n0,4\n2,3\n"})
	rec, err := repo.Get("xs_001")
	require.NoError(t, err)

	cfg.FixVerticalsAndOrder = true
	repo.SetConfig(cfg)
	require.NoError(t, rec.SetSample(2, 2, 2))

	res, err := repo.Save(context.Background(), "xs_001")
	require.NoError(t, err)
	assert.Equal(t, "x,y\n0,5\n0.001,4\n2,2\n", readFile(t, res.Path))
	assert.InDelta(t, 0.001, rec.Samples()[1].Station, 1e-12)
}

func TestSaveIOError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := writeFile(t, dir, "xs_001.csv", "x,y\n0,5\n0,4\n2,3\n")

	cfg := testConfig()
	repo := New(cfg, quietLogger())
	_, errs := repo.LoadFiles(context.Background(), []string{path})
	require.Empty(t, errs)
	rec, err := repo.Get("xs_001")
	require.NoError(t, err)
	require.NoError(t, rec.SetSample(2, 2, 2.5))

	require.NoError(t, os.RemoveAll(dir))
	cfg.FixVerticalsAndOrder = true
	repo.SetConfig(cfg)

	_, err = repo.Save(context.Background(), "xs_001")
	var sioe *SaveIOError
	require.ErrorAs(t, err, &sioe)
	assert.True(t, rec.Dirty())
	assert.False(t, rec.Saving())
	assert.Equal(t, err, rec.SaveErr())
	assert.Equal(t, 0, rec.Version())
	// the normalized copy only replaces the content once it is on disk
	assert.Equal(t, []float64{0, 0, 2}, stationsOf(rec.Samples()))
}

func stationsOf(samples []section.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Station
	}
	return out
}

type failingPlotter struct{}

func (failingPlotter) Render(io.Writer, plot.Scene) error { return errors.New("no canvas") }

func TestPlotOnSave(t *testing.T) {
	cfg := testConfig()
	cfg.PlotOnSave = true
	cfg.Plot = config.PlotConfig{Width: 400, Height: 300}

	t.Run("writes png", func(t *testing.T) {
		repo, dir, _ := newRepo(t, cfg, threeFiles)
		poly := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
		b, err := overlap.NewBoundary("b", orb.MultiPolygon{poly})
		require.NoError(t, err)
		repo.SetBoundary(b)

		res, err := repo.Save(context.Background(), "xs_001")
		require.NoError(t, err)
		assert.NoError(t, res.RenderErr)
		assert.Equal(t, filepath.Join(dir, "xs_001_v01.png"), res.PlotPath)
		assert.FileExists(t, res.PlotPath)
	})

	t.Run("render failure does not fail save", func(t *testing.T) {
		repo, _, _ := newRepo(t, cfg, threeFiles)
		repo.SetPlotter(failingPlotter{})
		rec, err := repo.Get("xs_001")
		require.NoError(t, err)
		require.NoError(t, rec.RemoveSample(0))

		res, err := repo.Save(context.Background(), "xs_001")
		require.NoError(t, err)
		var re *RenderError
		require.ErrorAs(t, res.RenderErr, &re)
		assert.False(t, rec.Dirty())
		assert.FileExists(t, res.Path)
		assert.NoFileExists(t, res.PlotPath)
	})
}

func TestNavigationClamps(t *testing.T) {
	repo, _, _ := newRepo(t, testConfig(), threeFiles)
	ctx := context.Background()

	sw, err := repo.Previous(ctx)
	require.NoError(t, err)
	assert.False(t, sw.Moved())
	assert.Equal(t, "xs_001", repo.CurrentID())

	sw, err = repo.Next(ctx)
	require.NoError(t, err)
	assert.True(t, sw.Moved())
	assert.Equal(t, "xs_002", sw.To)

	_, err = repo.JumpTo(ctx, "xs_003")
	require.NoError(t, err)
	sw, err = repo.Next(ctx)
	require.NoError(t, err)
	assert.False(t, sw.Moved())
	assert.Equal(t, "xs_003", repo.CurrentID())

	_, err = repo.JumpTo(ctx, "xs_999")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "xs_003", repo.CurrentID())
}

func TestNavigationEmpty(t *testing.T) {
	repo := New(testConfig(), quietLogger())
	_, err := repo.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoSection)
	_, err = repo.Current()
	assert.ErrorIs(t, err, ErrNoSection)
}

func TestAutosaveOnNavigation(t *testing.T) {
	cfg := testConfig()
	cfg.AutosaveOnChange = true
	repo, dir, _ := newRepo(t, cfg, threeFiles)
	rec, err := repo.Current()
	require.NoError(t, err)
	require.NoError(t, rec.RemoveSample(2))

	sw, err := repo.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sw.Autosave)
	assert.False(t, rec.Dirty())
	assert.Equal(t, "xs_002", repo.CurrentID())
	assert.Equal(t, "x,y\n0,5\n2,4\n", readFile(t, filepath.Join(dir, "xs_001_v01.csv")))

	// clean sections switch without saving
	sw, err = repo.Previous(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sw.Autosave)
}

func TestAutosaveFailureBlocksNavigation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))
	a := writeFile(t, dir, "xs_001.csv", "x,y\n0,5\n2,4\n5,3\n")
	b := writeFile(t, t.TempDir(), "xs_002.csv", "x,y\n0,5\n2,4\n")

	cfg := testConfig()
	cfg.AutosaveOnChange = true
	repo := New(cfg, quietLogger())
	_, errs := repo.LoadFiles(context.Background(), []string{a, b})
	require.Empty(t, errs)

	rec, err := repo.Current()
	require.NoError(t, err)
	require.NoError(t, rec.RemoveSample(0))
	require.NoError(t, os.RemoveAll(dir))

	_, err = repo.Next(context.Background())
	var sioe *SaveIOError
	require.ErrorAs(t, err, &sioe)
	assert.Equal(t, "xs_001", repo.CurrentID())
	assert.True(t, rec.Dirty())
}

func TestNavigationWaitsForSave(t *testing.T) {
	repo, _, _ := newRepo(t, testConfig(), threeFiles)
	rec, err := repo.Current()
	require.NoError(t, err)

	snap, err := rec.BeginSave()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = repo.Next(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("navigation finished while a save was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, "xs_001", repo.CurrentID())

	rec.FinishSave(snap, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("navigation did not finish after the save")
	}
	assert.Equal(t, "xs_002", repo.CurrentID())
}

func TestClose(t *testing.T) {
	repo, _, _ := newRepo(t, testConfig(), threeFiles)
	ctx := context.Background()
	_, err := repo.JumpTo(ctx, "xs_002")
	require.NoError(t, err)

	require.NoError(t, repo.Close(ctx, "xs_001"))
	assert.Equal(t, "xs_002", repo.CurrentID())

	require.NoError(t, repo.Close(ctx, "xs_002"))
	assert.Equal(t, "xs_003", repo.CurrentID())

	require.NoError(t, repo.Close(ctx, "xs_003"))
	assert.Equal(t, "", repo.CurrentID())
	assert.Equal(t, -1, repo.CurrentIndex())

	assert.ErrorIs(t, repo.Close(ctx, "xs_003"), ErrNotFound)
}

func TestCloseLastMovesBack(t *testing.T) {
	repo, _, _ := newRepo(t, testConfig(), threeFiles)
	ctx := context.Background()
	_, err := repo.JumpTo(ctx, "xs_003")
	require.NoError(t, err)
	require.NoError(t, repo.Close(ctx, "xs_003"))
	assert.Equal(t, "xs_002", repo.CurrentID())
}

func TestDiscard(t *testing.T) {
	repo, _, _ := newRepo(t, testConfig(), threeFiles)
	rec, err := repo.Get("xs_001")
	require.NoError(t, err)
	require.NoError(t, rec.Trim(section.Left, 1, false))

	require.NoError(t, repo.Discard("xs_001"))
	assert.False(t, rec.Dirty())
	assert.Equal(t, []float64{0, 2, 5}, stationsOf(rec.Samples()))
	assert.ErrorIs(t, repo.Discard("nope"), ErrNotFound)
}

func TestRemap(t *testing.T) {
	files := map[string]string{
		"xs_001.csv": "a,b,c\n0,5,50\n1,4,40\n",
		"xs_002.csv": "a,b,c\n0,9,90\n1,8,80\n",
	}
	repo, dir, _ := newRepo(t, testConfig(), files)

	// per record: only xs_001 changes
	require.NoError(t, repo.Remap("xs_001", section.ColElevation, 2, false))
	one, _ := repo.Get("xs_001")
	two, _ := repo.Get("xs_002")
	assert.Equal(t, 50.0, one.Samples()[0].Elevation)
	assert.Equal(t, 9.0, two.Samples()[0].Elevation)

	// global: records not remapped on their own follow, and so do new loads
	require.NoError(t, repo.Remap("", section.ColRoughness, 2, true))
	require.NoError(t, repo.Remap("", section.ColElevation, 2, true))
	assert.Equal(t, 90.0, two.Samples()[0].Elevation)
	assert.Equal(t, 50.0, one.Samples()[0].Elevation)
	n, ok := two.Value(1, section.ColRoughness)
	require.True(t, ok)
	assert.Equal(t, 80.0, n)

	path := writeFile(t, dir, "xs_003.csv", "a,b,c\n0,7,70\n1,6,60\n")
	_, errs := repo.LoadFiles(context.Background(), []string{path})
	require.Empty(t, errs)
	three, _ := repo.Get("xs_003")
	assert.Equal(t, 70.0, three.Samples()[0].Elevation)

	// the global binding leads the configured preferences
	prefs := repo.Config().Columns[section.ColElevation]
	require.NotEmpty(t, prefs)
	assert.Equal(t, section.IndexRef(2), section.ColumnRef(prefs[0]))

	err := repo.Remap("", section.ColElevation, 9, true)
	assert.Error(t, err)
	assert.Equal(t, 90.0, two.Samples()[0].Elevation)
}

func TestLoadReference(t *testing.T) {
	repo, dir, _ := newRepo(t, testConfig(), threeFiles)
	ref := writeFile(t, dir, "xs_002_v03.csv", "x,y\n0,1\n5,1\n")
	repo.AddReferences(ref, ref)
	assert.Len(t, repo.References(), 1)

	samples, name, err := repo.LoadReference("xs_002")
	require.NoError(t, err)
	assert.Equal(t, "xs_002_v03.csv", name)
	assert.Len(t, samples, 2)

	samples, _, err = repo.LoadReference("xs_001")
	require.NoError(t, err)
	assert.Nil(t, samples)
}

func TestReload(t *testing.T) {
	repo, _, paths := newRepo(t, testConfig(), threeFiles)
	old, err := repo.Get("xs_002")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(paths[1], []byte("x,y\n0,1\n1,2\n2,3\n"), 0o644))
	require.NoError(t, repo.Reload(context.Background(), "xs_002"))

	rec, err := repo.Get("xs_002")
	require.NoError(t, err)
	assert.NotSame(t, old, rec)
	assert.Equal(t, 3, rec.Len())
	assert.Equal(t, []string{"xs_001", "xs_002", "xs_003"}, repo.IDs())

	require.NoError(t, rec.RemoveSample(0))
	assert.ErrorIs(t, repo.Reload(context.Background(), "xs_002"), ErrUnsaved)
	assert.Equal(t, 2, rec.Len())
}
