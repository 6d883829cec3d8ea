// Package sidebar contains Datastar SSE handlers for the map sidebar: the
// layer switcher, the legend panel and the dataset list.
package sidebar

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-risk/internal/control"
	"github.com/joeblew999/plat-risk/internal/humastar"
	"github.com/joeblew999/plat-risk/internal/layer"
	"github.com/joeblew999/plat-risk/internal/service"
	"github.com/joeblew999/plat-risk/internal/templates"
)

type Handler struct {
	humastar.Handler
	atlas *service.AtlasService
}

func New(atlas *service.AtlasService, renderer *templates.Renderer) *Handler {
	return &Handler{Handler: humastar.Handler{Renderer: renderer}, atlas: atlas}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/sidebar", h.Sidebar, huma.OperationTags("sidebar"))
	huma.Post(api, "/api/v1/sidebar/base", h.SelectBase, huma.OperationTags("sidebar"))
	huma.Post(api, "/api/v1/sidebar/overlay", h.SetOverlay, huma.OperationTags("sidebar"))
	huma.Get(api, "/api/v1/sidebar/events", h.Events, huma.OperationTags("sidebar"))
}

// Sidebar patches the switcher, legend and dataset list.
func (h *Handler) Sidebar(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(h.patchAll), nil
}

// SelectBase reads the "base" signal and switches the base layer.
func (h *Handler) SelectBase(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	key := signals.String("base")
	if key == "" {
		return nil, huma.Error400BadRequest("Base layer is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		if err := h.atlas.SelectBase(key); err != nil {
			sse.Error(message(err))
			return
		}
		h.patchControls(sse)
	}), nil
}

// SetOverlay reads the "overlay" and "on" signals and toggles that overlay.
func (h *Handler) SetOverlay(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	key := signals.String("overlay")
	if key == "" {
		return nil, huma.Error400BadRequest("Overlay is required")
	}
	on := signals.Bool("on")

	return h.Stream(func(sse humastar.SSE) {
		if err := h.atlas.SetOverlay(key, on); err != nil {
			sse.Error(message(err))
			return
		}
		h.patchControls(sse)
	}), nil
}

// ControlsData feeds the "controls" template.
type ControlsData struct {
	Bases    []control.Control
	Overlays []control.Control
}

// LegendData feeds the "legend-panel" template.
type LegendData struct {
	Key     string
	Content string
}

func (h *Handler) patchAll(sse humastar.SSE) {
	snap, err := h.atlas.Current()
	if err != nil {
		sse.Patch(h.Render("empty-state", map[string]string{
			"Title": "Loading", "Message": "The atlas is still being built",
		}), "#datasets")
		return
	}
	h.patchControls(sse)
	items := make([]any, len(snap.Atlas.Datasets))
	for i, d := range snap.Atlas.Datasets {
		items[i] = d
	}
	sse.Patch(h.RenderList("dataset-card", items, "No datasets", "Add a dataset to the map config"), "#datasets")
}

// patchControls redraws the switcher and the legend of the active base.
func (h *Handler) patchControls(sse humastar.SSE) {
	snap, err := h.atlas.Current()
	if err != nil {
		sse.Error(message(err))
		return
	}
	var data ControlsData
	for _, c := range snap.Controls.Controls() {
		if c.Kind == layer.KindBase {
			data.Bases = append(data.Bases, c)
		} else {
			data.Overlays = append(data.Overlays, c)
		}
	}
	sse.Patch(h.Render("controls", data), "#controls")
	legend := snap.Controls.ActiveLegend()
	sse.Patch(h.Render("legend-panel", LegendData{
		Key:     legend.Key,
		Content: legend.HTML,
	}), "#legend")
}

func message(err error) string {
	if errors.Is(err, service.ErrNotLoaded) {
		return "The atlas is still loading"
	}
	return err.Error()
}
