// ABOUTME: Tests for station manager lifecycle
// ABOUTME: Verifies station creation, lookup, ordering, and shutdown
package manager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/folder-radio/internal/application/config"
	"github.com/harper/folder-radio/internal/domain/station"
	"github.com/harper/folder-radio/internal/infrastructure/metrics"
)

func testConfig(dirs map[string]string) *config.Config {
	cfg := &config.Config{}
	for id, dir := range dirs {
		cfg.Stations = append(cfg.Stations, config.StationConfig{ID: id, Dir: dir})
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestManager_NewFromConfig(t *testing.T) {
	cfg := testConfig(map[string]string{"test1": t.TempDir()})

	mgr, err := NewFromConfig(cfg, nil, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, mgr.List(), 1)

	st := mgr.Get("test1")
	require.NotNil(t, st)
	assert.Equal(t, "test1", st.ID())
	assert.Equal(t, "audio/mpeg", st.ContentType())
	assert.Equal(t, 1600, st.ChunkSize())

	assert.Nil(t, mgr.Get("missing"))
}

func TestManager_ListIsSorted(t *testing.T) {
	cfg := testConfig(map[string]string{
		"rock":    t.TempDir(),
		"jazz":    t.TempDir(),
		"ambient": t.TempDir(),
	})

	mgr, err := NewFromConfig(cfg, nil, zerolog.Nop())
	require.NoError(t, err)

	var ids []string
	for _, st := range mgr.List() {
		ids = append(ids, st.ID())
	}
	assert.Equal(t, []string{"ambient", "jazz", "rock"}, ids)
}

func TestManager_DuplicateID(t *testing.T) {
	cfg := &config.Config{Stations: []config.StationConfig{
		{ID: "a", Dir: "x"},
		{ID: "a", Dir: "y"},
	}}

	_, err := NewFromConfig(cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestManager_StartAndShutdown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), make([]byte, 64000), 0o644))

	cfg := testConfig(map[string]string{"main": dir})
	m := metrics.New(prometheus.NewRegistry())

	mgr, err := NewFromConfig(cfg, m, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, mgr.Start())

	st := mgr.Get("main")
	require.Eventually(t, func() bool { return st.State() == station.StateStreaming }, 5*time.Second, 10*time.Millisecond)

	tr, _, ok := st.NowPlaying()
	require.True(t, ok)
	assert.Equal(t, "a.mp3", tr.Name)

	require.NoError(t, mgr.Shutdown())
	assert.Equal(t, station.StateStopped, st.State())
}

func TestManager_Default(t *testing.T) {
	cfg := &config.Config{Stations: []config.StationConfig{
		{ID: "rock", Dir: t.TempDir()},
		{ID: "ambient", Dir: t.TempDir()},
	}}
	cfg.ApplyDefaults()

	mgr, err := NewFromConfig(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, mgr.Default())
	assert.Equal(t, "rock", mgr.Default().ID())

	cfg.DefaultStation = "ambient"
	mgr, err = NewFromConfig(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ambient", mgr.Default().ID())
}

func TestManager_LibraryChangeEndsEmptyWait(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Stations: []config.StationConfig{
		{ID: "main", Dir: dir, RetryMs: 60000},
	}}
	cfg.ApplyDefaults()

	mgr, err := NewFromConfig(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer mgr.Shutdown()
	require.NoError(t, mgr.Start())

	st := mgr.Get("main")
	require.Eventually(t, func() bool { return st.State() == station.StateEmpty }, 5*time.Second, 10*time.Millisecond)

	// Give the watcher time to attach before the file appears.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), make([]byte, 64000), 0o644))

	require.Eventually(t, func() bool {
		tr, _, ok := st.NowPlaying()
		return ok && tr.Name == "a.mp3"
	}, 5*time.Second, 10*time.Millisecond)
}
