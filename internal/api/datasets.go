package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-risk/internal/humastar"
	"github.com/joeblew999/plat-risk/internal/pipeline"
)

type DatasetsBody struct {
	RunID    string                    `json:"runId" doc:"Atlas build ID"`
	LoadedAt time.Time                 `json:"loadedAt" doc:"When the atlas finished loading"`
	Datasets []*pipeline.Dataset       `json:"datasets" doc:"Datasets in config order"`
	Failures []pipeline.DatasetFailure `json:"failures" doc:"Datasets that produced no layers"`
}

// FeatureItem is one feature of a dataset collection.
type FeatureItem struct {
	Index      int                `json:"index" doc:"Position in the collection"`
	Properties geojson.Properties `json:"properties" doc:"Joined attributes"`
	Geometry   any                `json:"geometry" doc:"GeoJSON geometry"`
	Centroid   []float64          `json:"centroid,omitempty" doc:"Planar centroid as [lon, lat]"`
}

type FeaturesInput struct {
	Name   string `path:"name" doc:"Dataset name" example:"tracts"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int    `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

type ReloadBody struct {
	RunID    string                    `json:"runId" doc:"New atlas build ID"`
	LoadedAt time.Time                 `json:"loadedAt" doc:"When the atlas finished loading"`
	Duration string                    `json:"duration" doc:"Build duration"`
	Bases    int                       `json:"bases" doc:"Base layers built"`
	Overlays int                       `json:"overlays" doc:"Overlay layers built"`
	Failures []pipeline.DatasetFailure `json:"failures" doc:"Datasets that produced no layers"`
}

// RegisterDatasets registers dataset and reload routes.
func (h *APIHandler) RegisterDatasets(api huma.API) {
	huma.Get(api, "/api/v1/datasets", h.GetDatasets, huma.OperationTags("datasets"))
	huma.Get(api, "/api/v1/datasets/{name}/features", h.GetDatasetFeatures, huma.OperationTags("datasets"))
	huma.Post(api, "/api/v1/reload", h.PostReload, huma.OperationTags("datasets"))
}

func (h *APIHandler) GetDatasets(ctx context.Context, input *struct{}) (*struct{ Body DatasetsBody }, error) {
	snap, err := h.snapshot()
	if err != nil {
		return nil, err
	}
	a := snap.Atlas
	return &struct{ Body DatasetsBody }{Body: DatasetsBody{
		RunID:    a.ID.String(),
		LoadedAt: a.LoadedAt,
		Datasets: a.Datasets,
		Failures: nonNil(a.Failures),
	}}, nil
}

// GetDatasetFeatures pages through a dataset's joined features.
func (h *APIHandler) GetDatasetFeatures(ctx context.Context, input *FeaturesInput) (*struct {
	Body humastar.PageBody[FeatureItem]
}, error) {
	snap, err := h.snapshot()
	if err != nil {
		return nil, err
	}
	ds, ok := snap.Atlas.Dataset(input.Name)
	if !ok {
		return nil, huma.Error404NotFound("dataset not found")
	}

	var features []*geojson.Feature
	if ds.Features != nil {
		features = ds.Features.Features
	}
	return &struct {
		Body humastar.PageBody[FeatureItem]
	}{Body: humastar.PageMap(features, input.Offset, input.Limit, featureItem)}, nil
}

func featureItem(i int, f *geojson.Feature) FeatureItem {
	item := FeatureItem{Index: i, Properties: f.Properties}
	if f.Geometry != nil {
		item.Geometry = geojson.NewGeometry(f.Geometry)
		c, _ := planar.CentroidArea(f.Geometry)
		item.Centroid = []float64{c[0], c[1]}
	}
	return item
}

// PostReload rebuilds the atlas from the current config.
func (h *APIHandler) PostReload(ctx context.Context, input *struct{}) (*struct{ Body ReloadBody }, error) {
	snap, err := h.svc.Atlas.Reload(ctx)
	if err != nil {
		return nil, huma.Error502BadGateway("Reload failed", err)
	}
	a := snap.Atlas
	return &struct{ Body ReloadBody }{Body: ReloadBody{
		RunID:    a.ID.String(),
		LoadedAt: a.LoadedAt,
		Duration: a.Duration.String(),
		Bases:    len(a.Bases),
		Overlays: len(a.Overlays),
		Failures: nonNil(a.Failures),
	}}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
