package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-risk/internal/config"
	"github.com/joeblew999/plat-risk/internal/control"
	"github.com/joeblew999/plat-risk/internal/db"
	"github.com/joeblew999/plat-risk/internal/layer"
	"github.com/joeblew999/plat-risk/internal/observability"
	"github.com/joeblew999/plat-risk/internal/pipeline"
	"github.com/joeblew999/plat-risk/internal/source"
)

type memLoader map[string][]source.Record

func (m memLoader) Load(_ context.Context, url string) ([]source.Record, error) {
	recs, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("no such sheet %s", url)
	}
	return recs, nil
}

type memGetter map[string]string

func (m memGetter) Get(_ context.Context, url string) ([]byte, error) {
	doc, ok := m[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(doc), nil
}

func testService(t *testing.T, cfg *config.Config) *AtlasService {
	t.Helper()
	loader := memLoader{
		"tracts.csv": {
			{"id": "A", "include": "y", "geometry": "a.json", "dr": "High", "drcolor": "#cb181d"},
		},
		"sites.csv": {{"lat": "1", "lon": "2", "name": "Site"}},
	}
	getter := memGetter{
		"a.json": `{"features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}}]}`,
	}
	logger := observability.DiscardLogger()
	metrics := observability.NewMetricsForTesting()
	b := pipeline.NewBuilder(loader, getter, pipeline.Options{Clock: clockwork.NewFakeClock()}, logger, metrics)
	return NewAtlasService(b, func() (*config.Config, error) { return cfg, nil }, nil, nil, logger)
}

func testConfig() *config.Config {
	return &config.Config{
		Datasets: []config.Dataset{{
			Name: "tracts",
			URL:  "tracts.csv",
			Role: config.RoleBase,
			Descriptors: []layer.Descriptor{
				{Key: "dr", ColorKey: "drcolor"},
				{Key: "pv", ColorKey: "pvcolor"},
			},
		}},
		Points: []config.PointDataset{{Name: "sites", URL: "sites.csv"}},
	}
}

func TestAtlasService_NotLoaded(t *testing.T) {
	s := testService(t, testConfig())
	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, s.SelectBase("dr"), ErrNotLoaded)
}

func TestAtlasService_ReloadPreservesSelection(t *testing.T) {
	s := testService(t, testConfig())
	ctx := context.Background()

	first, err := s.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dr", first.Controls.Base())

	require.NoError(t, s.SelectBase("pv"))
	require.NoError(t, s.SetOverlay("sites", true))

	second, err := s.Reload(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Atlas.ID, second.Atlas.ID)
	assert.Equal(t, "pv", second.Controls.Base())
	assert.Equal(t, []string{"pv", "sites"}, second.Viewport.Order())

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Same(t, second, cur)
}

func TestAtlasService_PublishesEvents(t *testing.T) {
	s := testService(t, testConfig())
	sub := s.Bus().Subscribe()
	defer sub.Close()
	ch := sub.Events()

	snap, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Event{Resource: ResourceAtlas, Action: ActionReloaded, ID: snap.Atlas.ID.String()}, <-ch)

	require.NoError(t, s.SelectBase("pv"))
	assert.Equal(t, Event{Resource: ResourceViewport, Action: ActionBase, ID: "pv"}, <-ch)

	require.NoError(t, s.SetOverlay("sites", true))
	assert.Equal(t, Event{Resource: ResourceViewport, Action: ActionOverlay, ID: "sites"}, <-ch)

	assert.ErrorIs(t, s.SelectBase("sites"), control.ErrNotBase)
}

func TestAtlasService_ConfigError(t *testing.T) {
	s := testService(t, nil)
	s.config = func() (*config.Config, error) { return nil, errors.New("boom") }
	_, err := s.Reload(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestAtlasService_StoresIndex(t *testing.T) {
	conn, err := db.Open("")
	require.NoError(t, err)
	defer conn.Close()

	s := testService(t, testConfig())
	s.db = conn
	_, err = s.Reload(context.Background())
	require.NoError(t, err)

	var n int
	require.NoError(t, conn.QueryRow("SELECT count(*) FROM joined_features").Scan(&n))
	assert.Equal(t, 2, n, "one tract feature and one site marker")
}

func TestAtlasService_StartRefresh(t *testing.T) {
	s := testService(t, testConfig())
	assert.NoError(t, s.StartRefresh(context.Background(), ""))
	assert.Error(t, s.StartRefresh(context.Background(), "every now and then"))

	require.NoError(t, s.StartRefresh(context.Background(), "@every 1h"))
	s.Stop()
}

func TestEventBus_SlowSubscriberResyncs(t *testing.T) {
	b := NewEventBus()
	sub := b.Subscribe()
	for i := range subscriberBuffer + 4 {
		b.Publish(Event{Resource: ResourceViewport, Action: ActionBase, ID: fmt.Sprint(i)})
	}
	assert.Len(t, sub.Events(), subscriberBuffer)

	for range subscriberBuffer {
		<-sub.Events()
	}
	b.Publish(Event{Resource: ResourceViewport, Action: ActionOverlay, ID: "sites"})
	assert.Equal(t, Event{Resource: ResourceAtlas, Action: ActionResync, ID: "sites"}, <-sub.Events())

	b.Publish(Event{Resource: ResourceViewport, Action: ActionOverlay, ID: "zone"})
	assert.Equal(t, Event{Resource: ResourceViewport, Action: ActionOverlay, ID: "zone"}, <-sub.Events())
}

func TestEventBus_Close(t *testing.T) {
	b := NewEventBus()
	sub := b.Subscribe()
	assert.Equal(t, 1, b.Len())

	sub.Close()
	sub.Close()
	assert.Zero(t, b.Len())
	_, ok := <-sub.Events()
	assert.False(t, ok)
	b.Publish(Event{Resource: ResourceAtlas, Action: ActionReloaded})
}
