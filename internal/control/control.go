// Package control owns the layer registry and the layer switcher: exactly one
// base layer is active at a time, overlays toggle independently and always
// stay stacked above the base.
package control

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joeblew999/plat-risk/internal/layer"
	"github.com/joeblew999/plat-risk/internal/viewport"
)

var (
	ErrUnknownLayer   = errors.New("unknown layer")
	ErrNotBase        = errors.New("layer is not a base layer")
	ErrNotOverlay     = errors.New("layer is not an overlay")
	ErrDuplicateLayer = errors.New("duplicate layer key")
)

// Control is one entry of the layer switcher.
type Control struct {
	Key    string     `json:"key" doc:"Layer key"`
	Title  string     `json:"title" doc:"Display name"`
	Kind   layer.Kind `json:"kind" enum:"base,overlay" doc:"radio for base, checkbox for overlay"`
	Active bool       `json:"active" doc:"Whether the layer is on the map"`
}

// State is a snapshot of the switcher.
type State struct {
	Base     string   `json:"base" doc:"Active base layer key"`
	Overlays []string `json:"overlays" doc:"Active overlay keys in registration order"`
	Order    []string `json:"order" doc:"Viewport stack, bottom to top"`
}

// Assembler is the registry of constructed layers, keyed by layer key.
type Assembler struct {
	mu       sync.Mutex
	vp       *viewport.Viewport
	layers   map[string]*layer.Layer
	bases    []string
	overlays []string
	base     string
	active   map[string]bool
}

// New creates an assembler that draws onto vp.
func New(vp *viewport.Viewport) *Assembler {
	return &Assembler{
		vp:     vp,
		layers: make(map[string]*layer.Layer),
		active: make(map[string]bool),
	}
}

// RegisterBase adds a mutually exclusive base layer. Nothing is drawn until
// SelectBase is called.
func (a *Assembler) RegisterBase(l *layer.Layer) error {
	return a.register(l, layer.KindBase)
}

// RegisterOverlay adds an independently toggled overlay, initially off.
func (a *Assembler) RegisterOverlay(l *layer.Layer) error {
	return a.register(l, layer.KindOverlay)
}

func (a *Assembler) register(l *layer.Layer, kind layer.Kind) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.layers[l.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, l.Key)
	}
	l.Kind = kind
	a.layers[l.Key] = l
	if kind == layer.KindBase {
		a.bases = append(a.bases, l.Key)
	} else {
		a.overlays = append(a.overlays, l.Key)
	}
	return nil
}

// Layer looks up a registered layer.
func (a *Assembler) Layer(key string) (*layer.Layer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.layers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, key)
	}
	return l, nil
}

// Layers returns every registered layer, bases first, in registration order.
func (a *Assembler) Layers() []*layer.Layer {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*layer.Layer, 0, len(a.layers))
	for _, k := range a.bases {
		out = append(out, a.layers[k])
	}
	for _, k := range a.overlays {
		out = append(out, a.layers[k])
	}
	return out
}

// SelectBase makes key the active base layer. The previous base is removed,
// the new one added, and then every active overlay is removed and re-added in
// registration order so the overlays end up above the base. The whole switch
// runs under the assembler lock.
func (a *Assembler) SelectBase(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.layers[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, key)
	}
	if l.Kind != layer.KindBase {
		return fmt.Errorf("%w: %s", ErrNotBase, key)
	}

	if a.base != "" {
		a.vp.Remove(a.base)
	}
	a.vp.Add(key)
	a.base = key

	for _, k := range a.overlays {
		if a.active[k] {
			a.vp.Remove(k)
			a.vp.Add(k)
		}
	}
	return nil
}

// SetOverlay switches an overlay on or off. Switching on puts it on top.
func (a *Assembler) SetOverlay(key string, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.layers[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, key)
	}
	if l.Kind != layer.KindOverlay {
		return fmt.Errorf("%w: %s", ErrNotOverlay, key)
	}

	if on {
		a.active[key] = true
		a.vp.Add(key)
	} else {
		delete(a.active, key)
		a.vp.Remove(key)
	}
	return nil
}

// Base returns the active base layer key, or "" before the first selection.
func (a *Assembler) Base() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.base
}

// State returns the active base, the active overlays and the viewport order.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		Base:     a.base,
		Overlays: a.activeOverlays(),
		Order:    a.vp.Order(),
	}
}

func (a *Assembler) activeOverlays() []string {
	out := []string{}
	for _, k := range a.overlays {
		if a.active[k] {
			out = append(out, k)
		}
	}
	return out
}

// Controls lists a radio entry per base and a checkbox entry per overlay.
func (a *Assembler) Controls() []Control {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Control, 0, len(a.layers))
	for _, k := range a.bases {
		l := a.layers[k]
		out = append(out, Control{Key: k, Title: l.Title, Kind: layer.KindBase, Active: k == a.base})
	}
	for _, k := range a.overlays {
		l := a.layers[k]
		out = append(out, Control{Key: k, Title: l.Title, Kind: layer.KindOverlay, Active: a.active[k]})
	}
	return out
}

// Legend returns the legend content of the active base layer, or "" when
// none is selected.
func (a *Assembler) Legend() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.base == "" {
		return ""
	}
	return LegendContent(a.layers[a.base])
}

// ActiveLegend is the legend of one base layer, read in a single critical
// section so Key always matches Entries and HTML.
type ActiveLegend struct {
	Key     string
	Title   string
	Entries []layer.LegendEntry
	HTML    string
}

// ActiveLegend returns the legend of the active base. Key is "" before the
// first selection.
func (a *Assembler) ActiveLegend() ActiveLegend {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.base == "" {
		return ActiveLegend{}
	}
	l := a.layers[a.base]
	return ActiveLegend{Key: a.base, Title: l.Title, Entries: l.Legend, HTML: LegendContent(l)}
}
