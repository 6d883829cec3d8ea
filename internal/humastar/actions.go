package humastar

import (
	"fmt"
	"strings"
)

// Action is a hypermedia link a response body offers for one resource,
// rendered as an RFC 8288 Link header with method and title parameters:
//
//	</api/v1/layers/dr/geojson>; rel="geojson"; method="GET"; title="Styled GeoJSON"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	Schema string // JSON Schema URL of the request body, if any
}

// Actor is implemented by response bodies that carry actions.
type Actor interface {
	Actions() []Action
}

// ActionDef is an action template; Pattern holds one %s for the resource key.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
	Schema  string
}

// ActionsFor expands defs for the resource key.
func ActionsFor(key string, defs []ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, key),
			Method: d.Method,
			Title:  d.Title,
			Schema: d.Schema,
		}
	}
	return actions
}

// LinkHeader formats the action as a Link header value. Empty parameters are omitted.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	for _, p := range [...]struct{ name, value string }{
		{"method", a.Method},
		{"title", a.Title},
		{"schema", a.Schema},
	} {
		if p.value != "" {
			fmt.Fprintf(&b, `; %s="%s"`, p.name, p.value)
		}
	}
	return b.String()
}
