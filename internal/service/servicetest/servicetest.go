// Package servicetest builds an AtlasService over in-memory sheets and
// geometry documents for handler tests.
package servicetest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/joeblew999/plat-risk/internal/config"
	"github.com/joeblew999/plat-risk/internal/layer"
	"github.com/joeblew999/plat-risk/internal/observability"
	"github.com/joeblew999/plat-risk/internal/pipeline"
	"github.com/joeblew999/plat-risk/internal/service"
	"github.com/joeblew999/plat-risk/internal/source"
)

// MemLoader serves records keyed by sheet URL.
type MemLoader map[string][]source.Record

func (m MemLoader) Load(_ context.Context, url string) ([]source.Record, error) {
	recs, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("no such sheet %s", url)
	}
	return recs, nil
}

// MemGetter serves geometry documents keyed by URL.
type MemGetter map[string]string

func (m MemGetter) Get(_ context.Context, url string) ([]byte, error) {
	doc, ok := m[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(doc), nil
}

// Sheets holds two census tracts, one zoning parcel and two sites.
var Sheets = MemLoader{
	"tracts.csv": {
		{"id": "A", "include": "y", "geometry": "a.json", "dr": "High", "drcolor": "#cb181d", "pv": "Low", "pvcolor": "#fee5d9"},
		{"id": "B", "include": "y", "geometry": "b.json", "dr": "Low", "drcolor": "#fee5d9", "pv": "High", "pvcolor": "#a50f15"},
		{"id": "C", "include": "n", "geometry": "a.json"},
	},
	"zoning.csv": {
		{"id": "Z1", "include": "y", "geometry": "z.json", "zone": "R1", "zonecolor": "#ffffb2"},
	},
	"sites.csv": {
		{"lat": "40.7", "lon": "-73.9", "name": "Site 1", "category": "Public"},
		{"lat": "40.8", "lon": "-73.8", "name": "Site 2", "category": "Private"},
	},
}

// Docs holds the geometry documents referenced by Sheets.
var Docs = MemGetter{
	"a.json": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`,
	"b.json": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[2,2]}}]}`,
	"z.json": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[3,3]}}]}`,
}

// Config returns a map with bases dr and pv, overlay zone and point layer sites.
func Config() *config.Config {
	return &config.Config{
		Map:         config.MapView{Title: "Risk", Center: []float64{40.7, -73.9}, Zoom: 11},
		DefaultBase: "dr",
		Datasets: []config.Dataset{
			{
				Name: "tracts",
				URL:  "tracts.csv",
				Role: config.RoleBase,
				Descriptors: []layer.Descriptor{
					{
						Key:      "dr",
						Title:    "Displacement Risk",
						ColorKey: "drcolor",
						Legend:   []layer.LegendEntry{{Color: "#cb181d", Label: "High"}, {Color: "#fee5d9", Label: "Low"}},
					},
					{Key: "pv", Title: "Poverty", ColorKey: "pvcolor"},
				},
			},
			{
				Name:        "zoning",
				URL:         "zoning.csv",
				Role:        config.RoleOverlay,
				Descriptors: []layer.Descriptor{{Key: "zone", Title: "Zoning", ColorKey: "zonecolor"}},
			},
		},
		Points: []config.PointDataset{{Name: "sites", Title: "Sites", URL: "sites.csv"}},
	}
}

// New returns an unloaded service over Sheets, Docs and cfg.
func New(t testing.TB, cfg *config.Config) *service.AtlasService {
	t.Helper()
	return newService(cfg, nil)
}

// Loaded returns a service that has completed its first build.
func Loaded(t testing.TB) *service.AtlasService {
	t.Helper()
	return LoadedWithDB(t, nil)
}

// LoadedWithDB is Loaded with the feature index written to conn.
func LoadedWithDB(t testing.TB, conn *sql.DB) *service.AtlasService {
	t.Helper()
	s := newService(Config(), conn)
	if _, err := s.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return s
}

func newService(cfg *config.Config, conn *sql.DB) *service.AtlasService {
	logger := observability.DiscardLogger()
	b := pipeline.NewBuilder(Sheets, Docs, pipeline.Options{Clock: clockwork.NewFakeClock()}, logger, observability.NewMetricsForTesting())
	return service.NewAtlasService(b, func() (*config.Config, error) { return cfg, nil }, conn, nil, logger)
}
