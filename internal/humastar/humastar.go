// Package humastar lets Huma operations answer with Datastar server-sent
// events. A sidebar handler embeds Handler, streams fragments rendered from
// the templates package and reads the signals Datastar posts:
//
//	func (h *Handler) SelectBase(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
//	    signals, err := in.MustParse()
//	    ...
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Patch(h.Render("controls", data), "#controls")
//	    }), nil
//	}
//
// Link headers for plain JSON operations come from LinkTransformer.
package humastar

import (
	"bytes"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-risk/internal/templates"
)

// Handler is embedded by handlers that answer with Datastar events.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn in a Huma streaming response.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// Render renders one named fragment. A failed render yields "" so a broken
// fragment blanks its target instead of ending the stream.
func (h *Handler) Render(tmpl string, data any) string {
	html, err := h.Renderer.Render(tmpl, data)
	if err != nil {
		return ""
	}
	return html
}

// RenderList renders tmpl once per item, or the "empty-state" fragment.
func (h *Handler) RenderList(tmpl string, items []any, emptyTitle, emptyMsg string) string {
	return RenderList(h.Renderer, tmpl, items, emptyTitle, emptyMsg)
}

// RenderList renders tmpl once per item, or the "empty-state" fragment.
func RenderList(r *templates.Renderer, tmpl string, items []any, emptyTitle, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		r.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": emptyTitle, "Message": emptyMsg,
		})
		return buf.String()
	}
	for _, item := range items {
		r.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}

// SSE is a Datastar event generator bound to one Huma stream.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts an event stream on a humago context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the inner HTML of selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Error sets the "error" signal the sidebar shows as a toast.
func (s SSE) Error(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"error": msg})
}
