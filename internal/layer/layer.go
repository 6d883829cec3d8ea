package layer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/paulmach/orb/geojson"
)

// ErrFeatureIndex is returned for a feature index outside the layer.
var ErrFeatureIndex = errors.New("feature index out of range")

// Kind says how a layer is switched on the map.
type Kind string

const (
	// KindBase layers are mutually exclusive; exactly one is shown.
	KindBase Kind = "base"
	// KindOverlay layers toggle independently and stack above the base.
	KindOverlay Kind = "overlay"
)

// Popup is the response to a feature click.
type Popup struct {
	Layer   string `json:"layer" doc:"Layer key"`
	Index   int    `json:"index" doc:"Feature index within the layer"`
	Content string `json:"content" doc:"Popup HTML"`
	// StopPropagation keeps the map-level click handler from closing the popup.
	StopPropagation bool `json:"stopPropagation"`
}

// Layer is a renderable view over a shared feature collection.
type Layer struct {
	Key     string
	Title   string
	Kind    Kind
	Dataset string
	Legend  []LegendEntry

	descriptor *Descriptor
	features   *geojson.FeatureCollection
	style      func(geojson.Properties) Style
	popup      func(geojson.Properties) string
}

// Make builds the base layer for one descriptor. fc is shared, not copied;
// several descriptors over the same collection yield independent layers.
func Make(fc *geojson.FeatureCollection, d Descriptor) *Layer {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	fields := append([]PopupField{{Key: "id", Label: "ID"}}, d.PopupFields()...)
	return &Layer{
		Key:        d.Key,
		Title:      d.Name(),
		Kind:       KindBase,
		Legend:     d.Legend,
		descriptor: &d,
		features:   fc,
		style:      d.BaseStyle,
		popup: func(props geojson.Properties) string {
			return renderPopup(fields, props)
		},
	}
}

// Descriptor returns the descriptor the layer was built from, or nil for point layers.
func (l *Layer) Descriptor() *Descriptor {
	return l.descriptor
}

// Features returns the shared collection. Callers must not modify it.
func (l *Layer) Features() *geojson.FeatureCollection {
	return l.features
}

// Len returns the number of features in the layer.
func (l *Layer) Len() int {
	return len(l.features.Features)
}

// Style returns the base style of feature i.
func (l *Layer) Style(i int) (Style, error) {
	f, err := l.feature(i)
	if err != nil {
		return Style{}, err
	}
	return l.style(f.Properties), nil
}

// MouseOut returns the style a feature resets to when the pointer leaves it:
// this layer's own base style, never a shared hover style.
func (l *Layer) MouseOut(i int) (Style, error) {
	return l.Style(i)
}

// Click opens the info popup for feature i.
func (l *Layer) Click(i int) (Popup, error) {
	f, err := l.feature(i)
	if err != nil {
		return Popup{}, err
	}
	return Popup{
		Layer:           l.Key,
		Index:           i,
		Content:         l.popup(f.Properties),
		StopPropagation: true,
	}, nil
}

// GeoJSON renders the layer as a feature collection whose properties carry
// "style", "popup" and "index" for the front end. The shared collection is
// left untouched: each output feature gets a fresh properties map.
func (l *Layer) GeoJSON() ([]byte, error) {
	out := geojson.NewFeatureCollection()
	for i, f := range l.features.Features {
		props := make(geojson.Properties, len(f.Properties)+3)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["style"] = l.style(f.Properties)
		props["popup"] = l.popup(f.Properties)
		props["index"] = i
		out.Append(&geojson.Feature{
			Type:       "Feature",
			Geometry:   f.Geometry,
			Properties: props,
		})
	}
	return json.Marshal(out)
}

func (l *Layer) feature(i int) (*geojson.Feature, error) {
	if i < 0 || i >= len(l.features.Features) {
		return nil, fmt.Errorf("layer %q: %w: %d", l.Key, ErrFeatureIndex, i)
	}
	return l.features.Features[i], nil
}

var popupTmpl = template.Must(template.New("popup").Parse(
	`<table class="popup-table">{{range .}}<tr><td><strong>{{.Label}}:</strong></td><td>{{.Value}}</td></tr>{{end}}</table>`))

type popupRow struct {
	Label string
	Value string
}

func renderPopup(fields []PopupField, props geojson.Properties) string {
	rows := make([]popupRow, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, popupRow{Label: f.Label, Value: propString(props, f.Key)})
	}
	var buf bytes.Buffer
	if err := popupTmpl.Execute(&buf, rows); err != nil {
		return ""
	}
	return buf.String()
}
