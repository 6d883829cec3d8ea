package sidebar

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-risk/internal/humastar"
	"github.com/joeblew999/plat-risk/internal/service"
)

// Events streams atlas and viewport changes to the sidebar. Every event
// re-patches the sidebar and is forwarded as an "atlas-changed" DOM event.
// Atlas events, resync included, redraw everything.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			sub := h.atlas.Bus().Subscribe()
			defer sub.Close()

			h.patchAll(sse)
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-sub.Events():
					if !ok {
						return
					}
					switch ev.Resource {
					case service.ResourceAtlas:
						h.patchAll(sse)
					case service.ResourceViewport:
						h.patchControls(sse)
					}
					sse.DispatchCustomEvent("atlas-changed", ev)
				}
			}
		},
	}, nil
}
