// Package service holds the running atlas: the current snapshot, reloads,
// scheduled refreshes and the events the sidebar listens to.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/joeblew999/plat-risk/internal/config"
	"github.com/joeblew999/plat-risk/internal/control"
	"github.com/joeblew999/plat-risk/internal/db"
	"github.com/joeblew999/plat-risk/internal/pipeline"
	"github.com/joeblew999/plat-risk/internal/viewport"
)

// ErrNotLoaded is returned before the first atlas build has finished.
var ErrNotLoaded = errors.New("atlas not loaded")

// ConfigSource returns the map config to build from. It is called on every
// reload so edits to the config file are picked up.
type ConfigSource func() (*config.Config, error)

// Snapshot is one atlas together with the switcher drawing it.
type Snapshot struct {
	Atlas    *pipeline.Atlas
	Viewport *viewport.Viewport
	Controls *control.Assembler
}

// AtlasService owns the current snapshot. Readers always see a complete
// snapshot; a reload builds the next one aside and swaps it in.
type AtlasService struct {
	builder *pipeline.Builder
	config  ConfigSource
	db      *sql.DB
	bus     *EventBus
	logger  *slog.Logger

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	cron     *cron.Cron
}

// NewAtlasService creates the service. conn may be nil when DuckDB is unavailable.
func NewAtlasService(builder *pipeline.Builder, cfg ConfigSource, conn *sql.DB, bus *EventBus, logger *slog.Logger) *AtlasService {
	if bus == nil {
		bus = NewEventBus()
	}
	return &AtlasService{builder: builder, config: cfg, db: conn, bus: bus, logger: logger}
}

// Bus returns the event bus.
func (s *AtlasService) Bus() *EventBus {
	return s.bus
}

// Current returns the live snapshot.
func (s *AtlasService) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Reload builds a new atlas and swaps it in. The selected base and active
// overlays carry over when the new atlas still has them. Reloads are serialized.
func (s *AtlasService) Reload(ctx context.Context) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cfg, err := s.config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	atlas, err := s.builder.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var sel *pipeline.Selection
	if prev := s.current.Load(); prev != nil {
		st := prev.Controls.State()
		sel = &pipeline.Selection{Base: st.Base, Overlays: st.Overlays}
	}

	vp := viewport.New()
	asm, err := atlas.Assemble(vp, sel)
	if err != nil {
		return nil, fmt.Errorf("assemble atlas: %w", err)
	}
	snap := &Snapshot{Atlas: atlas, Viewport: vp, Controls: asm}

	if s.db != nil {
		if err := db.StoreRun(ctx, s.db, atlas.ID.String(), atlas.LoadedAt, datasetRows(atlas)); err != nil {
			s.logger.Warn("atlas index not stored", "run_id", atlas.ID.String(), "error", err)
		}
	}

	s.current.Store(snap)
	s.bus.Publish(Event{Resource: ResourceAtlas, Action: ActionReloaded, ID: atlas.ID.String()})
	return snap, nil
}

func datasetRows(a *pipeline.Atlas) []db.DatasetRow {
	rows := make([]db.DatasetRow, 0, len(a.Datasets))
	for _, d := range a.Datasets {
		rows = append(rows, db.DatasetRow{
			Name:     d.Name,
			Kind:     d.Kind,
			URL:      d.URL,
			Records:  d.Records,
			Features: d.Features,
			Error:    d.Error,
		})
	}
	return rows
}

// SelectBase switches the base layer of the live snapshot.
func (s *AtlasService) SelectBase(key string) error {
	snap, err := s.Current()
	if err != nil {
		return err
	}
	if err := snap.Controls.SelectBase(key); err != nil {
		return err
	}
	s.bus.Publish(Event{Resource: ResourceViewport, Action: ActionBase, ID: key})
	return nil
}

// SetOverlay switches an overlay of the live snapshot on or off.
func (s *AtlasService) SetOverlay(key string, on bool) error {
	snap, err := s.Current()
	if err != nil {
		return err
	}
	if err := snap.Controls.SetOverlay(key, on); err != nil {
		return err
	}
	s.bus.Publish(Event{Resource: ResourceViewport, Action: ActionOverlay, ID: key})
	return nil
}

// StartRefresh reloads the atlas on a cron schedule such as "@every 30m".
// An empty schedule does nothing.
func (s *AtlasService) StartRefresh(ctx context.Context, schedule string) error {
	if schedule == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		s.logger.Info("scheduled atlas refresh")
		if _, err := s.Reload(ctx); err != nil {
			s.logger.Error("scheduled atlas refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("atlas refresh scheduled", "schedule", schedule)
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (s *AtlasService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
