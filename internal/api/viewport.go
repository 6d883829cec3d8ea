package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-risk/internal/config"
	"github.com/joeblew999/plat-risk/internal/control"
	"github.com/joeblew999/plat-risk/internal/layer"
)

type ViewportBody struct {
	control.State
	Map      config.MapView    `json:"map" doc:"Initial map view"`
	Controls []control.Control `json:"controls" doc:"Layer switcher entries"`
	Popup    *layer.Popup      `json:"popup,omitempty" doc:"Open popup"`
}

type LegendBody struct {
	Layer   string              `json:"layer" doc:"Active base layer key"`
	Title   string              `json:"title" doc:"Legend title"`
	Entries []layer.LegendEntry `json:"entries" doc:"Legend entries in declaration order"`
	HTML    string              `json:"html" doc:"Rendered legend panel"`
}

type SelectBaseInput struct {
	Body struct {
		Key string `json:"key" required:"true" minLength:"1" doc:"Base layer key" example:"dr"`
	}
}

type SetOverlayInput struct {
	LayerKeyInput
	Body struct {
		Active bool `json:"active" doc:"Show or hide the overlay"`
	}
}

// RegisterViewport registers the layer switcher routes.
func (h *APIHandler) RegisterViewport(api huma.API) {
	huma.Get(api, "/api/v1/viewport", h.GetViewport, huma.OperationTags("viewport"))
	huma.Put(api, "/api/v1/viewport/base", h.PutBase, huma.OperationTags("viewport"))
	huma.Put(api, "/api/v1/viewport/overlays/{key}", h.PutOverlay, huma.OperationTags("viewport"))
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("viewport"))
}

func (h *APIHandler) GetViewport(ctx context.Context, input *struct{}) (*struct{ Body ViewportBody }, error) {
	return h.viewport()
}

// PutBase selects the base layer. Overlays are restacked above it.
func (h *APIHandler) PutBase(ctx context.Context, input *SelectBaseInput) (*struct{ Body ViewportBody }, error) {
	if err := h.svc.Atlas.SelectBase(input.Body.Key); err != nil {
		return nil, problem(err)
	}
	return h.viewport()
}

func (h *APIHandler) PutOverlay(ctx context.Context, input *SetOverlayInput) (*struct{ Body ViewportBody }, error) {
	if err := h.svc.Atlas.SetOverlay(input.Key, input.Body.Active); err != nil {
		return nil, problem(err)
	}
	return h.viewport()
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*struct{ Body LegendBody }, error) {
	snap, err := h.snapshot()
	if err != nil {
		return nil, err
	}
	legend := snap.Controls.ActiveLegend()
	if legend.Entries == nil {
		legend.Entries = []layer.LegendEntry{}
	}
	return &struct{ Body LegendBody }{Body: LegendBody{
		Layer:   legend.Key,
		Title:   legend.Title,
		Entries: legend.Entries,
		HTML:    legend.HTML,
	}}, nil
}

func (h *APIHandler) viewport() (*struct{ Body ViewportBody }, error) {
	snap, err := h.snapshot()
	if err != nil {
		return nil, err
	}
	body := ViewportBody{
		State:    snap.Controls.State(),
		Controls: snap.Controls.Controls(),
	}
	if snap.Atlas.Config != nil {
		body.Map = snap.Atlas.Config.Map
	}
	if p, ok := snap.Viewport.Popup(); ok {
		body.Popup = &p
	}
	return &struct{ Body ViewportBody }{Body: body}, nil
}
