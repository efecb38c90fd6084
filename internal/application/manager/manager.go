// ABOUTME: Station manager for lifecycle and lookup
// ABOUTME: Creates stations from config and runs their clocks and library watchers
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harper/folder-radio/internal/application/config"
	"github.com/harper/folder-radio/internal/domain/station"
	"github.com/harper/folder-radio/internal/infrastructure/library"
	"github.com/harper/folder-radio/internal/infrastructure/metrics"
	"github.com/harper/folder-radio/internal/infrastructure/source"
)

type entry struct {
	station *station.Station
	library *library.Dir
	watch   bool
}

type Manager struct {
	stations  map[string]*entry
	defaultID string
	mu        sync.RWMutex
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewFromConfig builds one station per configured library directory. m may
// be nil to disable metrics.
func NewFromConfig(cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		stations:  make(map[string]*entry),
		defaultID: cfg.DefaultStation,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	if mgr.defaultID == "" && len(cfg.Stations) > 0 {
		mgr.defaultID = cfg.Stations[0].ID
	}

	opener := source.NewFile()

	for _, stCfg := range cfg.Stations {
		if _, dup := mgr.stations[stCfg.ID]; dup {
			cancel()
			return nil, fmt.Errorf("duplicate station id %q", stCfg.ID)
		}

		id := stCfg.ID
		var st *station.Station
		lib := library.NewDir(library.Config{
			Dir:        stCfg.Dir,
			Extensions: stCfg.Extensions,
			OnChange: func(string) {
				m.LibraryChanged(id)
				st.LibraryChanged()
			},
		}, log.With().Str("station", id).Logger())

		st = station.New(station.Config{
			ID:            stCfg.ID,
			Name:          stCfg.Name,
			ContentType:   stCfg.ContentType,
			MetaInt:       stCfg.IcyMetaInt(),
			BitrateKbps:   stCfg.BitrateKbps,
			ChunkDuration: stCfg.ChunkDuration(),
			RetryDelay:    stCfg.RetryDelay(),
			SettleDelay:   stCfg.SettleDelay(),
			WriteTimeout:  stCfg.WriteTimeout(),
		}, lib, opener, m, log)

		mgr.stations[stCfg.ID] = &entry{
			station: st,
			library: lib,
			watch:   stCfg.WatchEnabled(),
		}
	}

	return mgr, nil
}

func (m *Manager) Get(id string) *station.Station {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.stations[id]
	if e == nil {
		return nil
	}
	return e.station
}

// Default returns the station served at the bare /stream path: the
// configured default_station, or the first configured station.
func (m *Manager) Default() *station.Station {
	return m.Get(m.defaultID)
}

// List returns all stations ordered by ID.
func (m *Manager) List() []*station.Station {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*station.Station, 0, len(m.stations))
	for _, e := range m.stations {
		result = append(result, e.station)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

func (m *Manager) Start() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, e := range m.stations {
		if err := e.station.Start(); err != nil {
			return err
		}
		if e.watch {
			m.wg.Add(1)
			go func(lib *library.Dir) {
				defer m.wg.Done()
				lib.Watch(m.ctx)
			}(e.library)
		}
		m.log.Info().Str("station", id).Str("dir", e.library.Path()).Bool("watch", e.watch).Msg("serving station")
	}

	return nil
}

func (m *Manager) Shutdown() error {
	m.cancel()
	m.wg.Wait()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, e := range m.stations {
		if err := e.station.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
