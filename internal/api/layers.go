package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-risk/internal/humastar"
	"github.com/joeblew999/plat-risk/internal/layer"
)

// LayerSummary describes one registered layer.
type LayerSummary struct {
	Key        string              `json:"key" doc:"Layer key" example:"dr"`
	Title      string              `json:"title" doc:"Display name" example:"Displacement Risk"`
	Kind       layer.Kind          `json:"kind" enum:"base,overlay" doc:"Layer group"`
	Dataset    string              `json:"dataset" doc:"Dataset the layer was built from"`
	Features   int                 `json:"features" doc:"Number of features"`
	Active     bool                `json:"active" doc:"Whether the layer is on the map"`
	Legend     []layer.LegendEntry `json:"legend,omitempty" doc:"Legend entries"`
	Descriptor *layer.Descriptor   `json:"descriptor,omitempty" doc:"Indicator descriptor (choropleth layers only)"`
}

var layerActions = []humastar.ActionDef{
	{Rel: "geojson", Pattern: "/api/v1/layers/%s/geojson", Method: "GET", Title: "Styled GeoJSON"},
}

// Actions links a layer to its GeoJSON rendering.
func (l LayerSummary) Actions() []humastar.Action {
	return humastar.ActionsFor(l.Key, layerActions)
}

type LayerKeyInput struct {
	Key string `path:"key" doc:"Layer key" example:"dr"`
}

type FeatureEventInput struct {
	LayerKeyInput
	Index int `path:"index" minimum:"0" doc:"Feature index within the layer"`
	Body  struct {
		Type string `json:"type" enum:"click,mouseout" doc:"Pointer event"`
	}
}

type FeatureEventBody struct {
	Type  string       `json:"type" doc:"Pointer event"`
	Style *layer.Style `json:"style,omitempty" doc:"Style to apply (mouseout)"`
	Popup *layer.Popup `json:"popup,omitempty" doc:"Popup to open (click)"`
}

// RegisterLayers registers layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{key}", h.GetLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{key}/geojson", h.GetLayerGeoJSON, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{key}/features/{index}/events", h.PostFeatureEvent, huma.OperationTags("layers"))
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body []LayerSummary }, error) {
	snap, err := h.snapshot()
	if err != nil {
		return nil, err
	}
	out := []LayerSummary{}
	for _, l := range snap.Controls.Layers() {
		out = append(out, summarize(l, snap.Viewport.Has(l.Key)))
	}
	return &struct{ Body []LayerSummary }{Body: out}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *LayerKeyInput) (*struct{ Body LayerSummary }, error) {
	snap, err := h.snapshot()
	if err != nil {
		return nil, err
	}
	l, err := snap.Controls.Layer(input.Key)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body LayerSummary }{Body: summarize(l, snap.Viewport.Has(l.Key))}, nil
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// GetLayerGeoJSON returns the layer's features with style, popup and index
// properties added for the map front end.
func (h *APIHandler) GetLayerGeoJSON(ctx context.Context, input *LayerKeyInput) (*GeoJSONOutput, error) {
	snap, err := h.snapshot()
	if err != nil {
		return nil, err
	}
	l, err := snap.Controls.Layer(input.Key)
	if err != nil {
		return nil, problem(err)
	}
	body, err := l.GeoJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to render layer", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: body}, nil
}

// PostFeatureEvent handles pointer events on a feature. A click opens the
// feature popup on the viewport and does not propagate to the map; mouseout
// returns the layer's own base style for the feature. Clicks on a layer that
// is not on the map are rejected with 409.
func (h *APIHandler) PostFeatureEvent(ctx context.Context, input *FeatureEventInput) (*struct{ Body FeatureEventBody }, error) {
	snap, err := h.snapshot()
	if err != nil {
		return nil, err
	}
	l, err := snap.Controls.Layer(input.Key)
	if err != nil {
		return nil, problem(err)
	}

	out := FeatureEventBody{Type: input.Body.Type}
	switch input.Body.Type {
	case "click":
		if !snap.Viewport.Has(l.Key) {
			return nil, huma.Error409Conflict("layer " + l.Key + " is not on the map")
		}
		p, err := l.Click(input.Index)
		if err != nil {
			return nil, problem(err)
		}
		snap.Viewport.Click(&p)
		out.Popup = &p
	case "mouseout":
		s, err := l.MouseOut(input.Index)
		if err != nil {
			return nil, problem(err)
		}
		out.Style = &s
	default:
		return nil, huma.Error400BadRequest("unknown event type " + input.Body.Type)
	}
	return &struct{ Body FeatureEventBody }{Body: out}, nil
}

func summarize(l *layer.Layer, active bool) LayerSummary {
	return LayerSummary{
		Key:        l.Key,
		Title:      l.Title,
		Kind:       l.Kind,
		Dataset:    l.Dataset,
		Features:   l.Len(),
		Active:     active,
		Legend:     l.Legend,
		Descriptor: l.Descriptor(),
	}
}
