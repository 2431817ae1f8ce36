package edit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"xsection-editor/internal/config"
	"xsection-editor/internal/overlap"
	"xsection-editor/internal/repository"
	"xsection-editor/internal/section"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	sections []string
	samples  [][]int
	saves    []error
	results  []repository.SaveResult
}

func (r *recorder) SectionChanged(rec *section.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec == nil {
		r.sections = append(r.sections, "")
		return
	}
	r.sections = append(r.sections, rec.ID())
}

func (r *recorder) SamplesChanged(_ *section.Record, changed []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, changed)
}

func (r *recorder) SaveCompleted(_ *section.Record, res repository.SaveResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, err)
	r.results = append(r.results, res)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	session *Session
	repo    *repository.Repository
	obs     *recorder
	dir     string
}

func newFixture(t *testing.T, cfg config.Config, bodies ...string) fixture {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i, body := range bodies {
		p := filepath.Join(dir, "xs_00"+string(rune('1'+i))+".csv")
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		paths = append(paths, p)
	}
	repo := repository.New(cfg, quietLogger())
	s := NewSession(repo, quietLogger())
	obs := &recorder{}
	s.Subscribe(obs)
	_, errs := s.Open(context.Background(), paths)
	require.Empty(t, errs)
	return fixture{session: s, repo: repo, obs: obs, dir: dir}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TrimStyle = config.TrimRemove
	return cfg
}

const fourPoints = "x,y\n0,5\n2,4\n5,3\n8,2\n"

func stations(rec *section.Record) []float64 {
	var out []float64
	for _, s := range rec.Samples() {
		out = append(out, s.Station)
	}
	return out
}

func current(t *testing.T, f fixture) *section.Record {
	t.Helper()
	rec, err := f.repo.Current()
	require.NoError(t, err)
	return rec
}

func TestOpenNotifies(t *testing.T) {
	f := newFixture(t, testConfig(), fourPoints, fourPoints)
	assert.Equal(t, []string{"xs_001"}, f.obs.sections)
	assert.Equal(t, Clean, f.session.State())
}

func TestMovePoint(t *testing.T) {
	f := newFixture(t, testConfig(), fourPoints)
	require.NoError(t, f.session.Apply(MovePointCommand{Index: 1, Station: 6, Elevation: 1}))

	rec := current(t, f)
	// not re-sorted
	assert.Equal(t, []float64{0, 6, 5, 8}, stations(rec))
	assert.Equal(t, Dirty, f.session.State())
	assert.Equal(t, [][]int{{1}}, f.obs.samples)

	var oor *section.IndexOutOfRangeError
	assert.ErrorAs(t, f.session.Apply(MovePointCommand{Index: 9}), &oor)
	assert.Len(t, f.obs.samples, 1)
}

func TestDeletePoint(t *testing.T) {
	f := newFixture(t, testConfig(), "x,y\n0,5\n2,4\n")
	var mse *section.MinimumSamplesError
	require.ErrorAs(t, f.session.Apply(DeletePointCommand{Index: 0}), &mse)
	assert.Equal(t, Clean, f.session.State())
	assert.Empty(t, f.obs.samples)
	assert.Equal(t, []float64{0, 2}, stations(current(t, f)))
}

func TestTrimBank(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []float64
	}{
		{"left", TrimBankCommand{Side: section.Left, Index: 1}, []float64{2, 5, 8}},
		{"right", TrimBankCommand{Side: section.Right, Index: 2}, []float64{0, 2, 5}},
		{"left at station", TrimBankAtStationCommand{Side: section.Left, Station: 1}, []float64{1, 2, 5, 8}},
		{"right at station", TrimBankAtStationCommand{Side: section.Right, Station: 6.5}, []float64{0, 2, 5, 6.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig(), fourPoints)
			require.NoError(t, f.session.Apply(tt.cmd))
			assert.Equal(t, tt.want, stations(current(t, f)))
			assert.Equal(t, [][]int{nil}, f.obs.samples)
		})
	}
}

func TestTrimBankAtStationInterpolates(t *testing.T) {
	f := newFixture(t, testConfig(), fourPoints)
	require.NoError(t, f.session.Apply(TrimBankAtStationCommand{Side: section.Right, Station: 6.5}))
	samples := current(t, f).Samples()
	assert.InDelta(t, 2.5, samples[len(samples)-1].Elevation, 1e-12)

	g := newFixture(t, testConfig(), "x,y\n0,5\n3,4\n2,3\n")
	assert.ErrorIs(t, g.session.Apply(TrimBankAtStationCommand{Side: section.Left, Station: 1}), section.ErrNotMonotonic)
}

func TestTrimAsComments(t *testing.T) {
	cfg := testConfig()
	cfg.TrimStyle = config.TrimComment
	f := newFixture(t, cfg, fourPoints)
	require.NoError(t, f.session.Apply(TrimBankCommand{Side: section.Left, Index: 2}))

	res, err := f.session.Save(context.Background())
	require.NoError(t, err)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "x,y\n!# 0,5\n!# 2,4\n5,3\n8,2\n", string(data))
}

func TestRemapColumn(t *testing.T) {
	body := "a,b,c\n0,5,50\n1,4,40\n"
	f := newFixture(t, testConfig(), body, body)

	require.NoError(t, f.session.Apply(RemapColumnCommand{Name: section.ColElevation, Index: 2, Scope: ScopeRecord}))
	first := current(t, f)
	second, err := f.repo.Get("xs_002")
	require.NoError(t, err)
	assert.Equal(t, 50.0, first.Samples()[0].Elevation)
	assert.Equal(t, 5.0, second.Samples()[0].Elevation)
	assert.False(t, second.Dirty())

	require.NoError(t, f.session.Apply(RemapColumnCommand{Name: section.ColElevation, Index: 2, Scope: ScopeGlobal}))
	assert.Equal(t, 50.0, second.Samples()[0].Elevation)

	assert.Error(t, f.session.Apply(RemapColumnCommand{Index: 1}))
}

func TestApplyWhileSaving(t *testing.T) {
	f := newFixture(t, testConfig(), fourPoints)
	rec := current(t, f)
	snap, err := rec.BeginSave()
	require.NoError(t, err)
	assert.Equal(t, Saving, f.session.State())

	assert.ErrorIs(t, f.session.Apply(DeletePointCommand{Index: 0}), section.ErrSaveInFlight)
	assert.Empty(t, f.obs.samples)

	rec.FinishSave(snap, nil)
	assert.NoError(t, f.session.Apply(DeletePointCommand{Index: 0}))
}

func TestSaveAndErrorState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "xs_001.csv")
	require.NoError(t, os.WriteFile(path, []byte(fourPoints), 0o644))

	repo := repository.New(testConfig(), quietLogger())
	s := NewSession(repo, quietLogger())
	obs := &recorder{}
	s.Subscribe(obs)
	_, errs := s.Open(context.Background(), []string{path})
	require.Empty(t, errs)

	require.NoError(t, s.Apply(DeletePointCommand{Index: 3}))
	require.NoError(t, os.RemoveAll(dir))

	_, err := s.Save(context.Background())
	var sioe *repository.SaveIOError
	require.ErrorAs(t, err, &sioe)
	assert.Equal(t, Error, s.State())
	require.Len(t, obs.saves, 1)
	assert.Equal(t, err, obs.saves[0])

	// edits keep the error visible until it is dealt with
	require.NoError(t, s.Apply(MovePointCommand{Index: 0, Station: 0, Elevation: 6}))
	assert.Equal(t, Error, s.State())

	require.NoError(t, s.Discard())
	assert.Equal(t, Clean, s.State())
	rec, err := repo.Current()
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Len())
}

func TestSaveNotifies(t *testing.T) {
	f := newFixture(t, testConfig(), fourPoints)
	require.NoError(t, f.session.Apply(DeletePointCommand{Index: 3}))

	res, err := f.session.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Clean, f.session.State())
	require.Len(t, f.obs.results, 1)
	assert.Equal(t, res, f.obs.results[0])
	assert.NoError(t, f.obs.saves[0])
	assert.Equal(t, filepath.Join(f.dir, "xs_001_v01.csv"), res.Path)
}

func TestSaveAsync(t *testing.T) {
	f := newFixture(t, testConfig(), fourPoints)
	require.NoError(t, f.session.Apply(DeletePointCommand{Index: 3}))

	done := make(chan error, 1)
	f.session.SaveAsync(context.Background(), func(_ repository.SaveResult, err error) { done <- err })
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("save did not complete")
	}
	assert.Equal(t, Clean, f.session.State())
}

func TestNavigation(t *testing.T) {
	cfg := testConfig()
	cfg.AutosaveOnChange = true
	f := newFixture(t, cfg, fourPoints, fourPoints, fourPoints)
	ctx := context.Background()

	require.NoError(t, f.session.Apply(DeletePointCommand{Index: 0}))
	outgoing := current(t, f)

	sw, err := f.session.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "xs_002", sw.To)
	assert.False(t, outgoing.Dirty())
	require.Len(t, f.obs.saves, 1)
	assert.NoError(t, f.obs.saves[0])
	assert.Equal(t, []string{"xs_001", "xs_002"}, f.obs.sections)

	_, err = f.session.JumpTo(ctx, "xs_003")
	require.NoError(t, err)
	_, err = f.session.Next(ctx)
	require.NoError(t, err)
	// clamped: no extra notification
	assert.Equal(t, []string{"xs_001", "xs_002", "xs_003"}, f.obs.sections)

	require.NoError(t, f.session.Close(ctx, "xs_003"))
	assert.Equal(t, "xs_002", f.obs.sections[len(f.obs.sections)-1])
}

func TestNavigationAutosaveFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))
	a := filepath.Join(dir, "xs_001.csv")
	b := filepath.Join(t.TempDir(), "xs_002.csv")
	require.NoError(t, os.WriteFile(a, []byte(fourPoints), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(fourPoints), 0o644))

	cfg := testConfig()
	cfg.AutosaveOnChange = true
	repo := repository.New(cfg, quietLogger())
	s := NewSession(repo, quietLogger())
	obs := &recorder{}
	s.Subscribe(obs)
	_, errs := s.Open(context.Background(), []string{a, b})
	require.Empty(t, errs)

	require.NoError(t, s.Apply(DeletePointCommand{Index: 0}))
	require.NoError(t, os.RemoveAll(dir))

	_, err := s.Next(context.Background())
	require.Error(t, err)
	assert.Equal(t, "xs_001", repo.CurrentID())
	assert.Equal(t, []string{"xs_001"}, obs.sections)
	require.Len(t, obs.saves, 1)
	assert.Error(t, obs.saves[0])
	assert.Equal(t, Error, s.State())
}

func squareBoundary(t *testing.T) *overlap.Boundary {
	t.Helper()
	poly := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	b, err := overlap.NewBoundary("square", orb.MultiPolygon{poly})
	require.NoError(t, err)
	return b
}

func TestOverlapsCache(t *testing.T) {
	body := "x,y,easting,northing\n0,5,-5,5\n2,4,5,5\n4,3,8,5\n6,2,20,5\n"
	f := newFixture(t, testConfig(), body)

	_, ok := f.session.Overlaps()
	assert.False(t, ok)

	f.repo.SetBoundary(squareBoundary(t))
	ov, ok := f.session.Overlaps()
	require.True(t, ok)
	assert.Equal(t, map[int]overlap.Class{0: overlap.Outside, 1: overlap.Inside, 2: overlap.Inside, 3: overlap.Outside}, ov.Classes)
	require.Len(t, ov.Intervals, 1)
	assert.Equal(t, 1, f.session.overlaps.computed)

	_, _ = f.session.Overlaps()
	assert.Equal(t, 1, f.session.overlaps.computed)

	require.NoError(t, f.session.Apply(MovePointCommand{Index: 0, Station: 0, Elevation: 6}))
	_, _ = f.session.Overlaps()
	assert.Equal(t, 2, f.session.overlaps.computed)

	f.repo.SetBoundary(squareBoundary(t))
	_, _ = f.session.Overlaps()
	assert.Equal(t, 3, f.session.overlaps.computed)
}

func TestScene(t *testing.T) {
	f := newFixture(t, testConfig(), fourPoints)
	require.NoError(t, f.session.Apply(DeletePointCommand{Index: 3}))
	_, err := f.session.Save(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.session.Apply(DeletePointCommand{Index: 0}))

	sc, err := f.session.Scene()
	require.NoError(t, err)
	assert.Equal(t, "xs_001", sc.Title)
	assert.Len(t, sc.Samples, 2)
	assert.Equal(t, "xs_001_v01.csv", sc.ReferenceName)
	assert.Len(t, sc.Reference, 3)
	assert.Equal(t, -1, sc.Selected)
}

func TestReloadNotifies(t *testing.T) {
	f := newFixture(t, testConfig(), fourPoints)
	path := filepath.Join(f.dir, "xs_001.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n0,1\n1,1\n"), 0o644))

	require.NoError(t, f.session.Reload(context.Background(), "xs_001"))
	assert.Equal(t, []string{"xs_001", "xs_001"}, f.obs.sections)
	assert.Equal(t, 2, current(t, f).Len())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "clean", Clean.String())
	assert.Equal(t, "dirty", Dirty.String())
	assert.Equal(t, "saving", Saving.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, Clean, StateOf(nil))
}
