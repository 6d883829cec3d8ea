// Package layer turns a joined feature collection into styled, clickable map
// layers. One Descriptor describes one indicator; Make builds the layer for it.
package layer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// NeutralGray is the fill used whenever a feature has no usable color.
// Spreadsheet rows are often incomplete, so every style path falls back to it.
const NeutralGray = "#bdbdbd"

// Style is the render style for a single feature. Field names follow the
// Leaflet path options so the front end can pass them through unchanged.
type Style struct {
	Fill        string  `json:"fillColor" doc:"Fill color (CSS)" example:"#cb181d"`
	Stroke      string  `json:"color" doc:"Stroke color (CSS)" example:"white"`
	Weight      float64 `json:"weight" doc:"Stroke width"`
	Opacity     float64 `json:"opacity" doc:"Stroke opacity (0-1)"`
	FillOpacity float64 `json:"fillOpacity" doc:"Fill opacity (0-1)"`
	Radius      float64 `json:"radius,omitempty" doc:"Marker radius (pixels for circleMarker, metres for circle)"`
	Marker      string  `json:"marker,omitempty" doc:"Marker kind" enum:"marker,circleMarker,circle"`
	Icon        string  `json:"icon,omitempty" doc:"Marker icon name" example:"info-circle"`
}

// LegendEntry is one swatch row of a legend.
type LegendEntry struct {
	Color string `json:"color" yaml:"color" doc:"Swatch color (CSS)" example:"#cb181d"`
	Label string `json:"label" yaml:"label" doc:"Legend label" example:"High"`
}

// PopupField is one row of a feature popup.
type PopupField struct {
	Key   string `json:"key" yaml:"key" doc:"Property to display" example:"dr"`
	Label string `json:"label" yaml:"label" doc:"Row label" example:"Displacement Risk"`
}

// Descriptor declares one indicator layer. It is data: the style function,
// popup and legend are all derived from it by the generic factory.
type Descriptor struct {
	Key         string        `json:"key" yaml:"key" required:"true" doc:"Indicator key" example:"dr"`
	Title       string        `json:"title" yaml:"title" doc:"Display name" example:"Displacement Risk"`
	ColorKey    string        `json:"colorKey" yaml:"colorKey" doc:"Property holding the fill color" example:"drcolor"`
	Stroke      string        `json:"stroke,omitempty" yaml:"stroke" doc:"Stroke color (CSS)" example:"white"`
	Weight      float64       `json:"weight,omitempty" yaml:"weight" doc:"Stroke width"`
	Opacity     float64       `json:"opacity,omitempty" yaml:"opacity" doc:"Stroke opacity (0-1)"`
	FillOpacity float64       `json:"fillOpacity,omitempty" yaml:"fillOpacity" doc:"Fill opacity (0-1)"`
	Popup       []PopupField  `json:"popup,omitempty" yaml:"popup" doc:"Popup rows after the id"`
	Legend      []LegendEntry `json:"legend,omitempty" yaml:"legend" doc:"Legend entries"`
}

// ErrNoColorKey is returned for a descriptor that names no color property.
// Such a layer could only ever be drawn in NeutralGray.
var ErrNoColorKey = errors.New("colorKey is required")

// Validate reports descriptor fields that can never produce a usable layer.
func (d Descriptor) Validate() error {
	if d.Key == "" {
		return errors.New("descriptor key is required")
	}
	if d.ColorKey == "" {
		return fmt.Errorf("descriptor %q: %w", d.Key, ErrNoColorKey)
	}
	if d.Opacity < 0 || d.Opacity > 1 {
		return fmt.Errorf("descriptor %q: opacity %v out of range", d.Key, d.Opacity)
	}
	if d.FillOpacity < 0 || d.FillOpacity > 1 {
		return fmt.Errorf("descriptor %q: fillOpacity %v out of range", d.Key, d.FillOpacity)
	}
	return nil
}

// Name returns the title, or the key when no title is set.
func (d Descriptor) Name() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Key
}

// BaseStyle returns the style for a feature with the given properties.
// The fill is properties[ColorKey] when that is a non-blank string, else NeutralGray.
func (d Descriptor) BaseStyle(props geojson.Properties) Style {
	s := Style{
		Fill:        NeutralGray,
		Stroke:      d.Stroke,
		Weight:      d.Weight,
		Opacity:     d.Opacity,
		FillOpacity: d.FillOpacity,
	}
	if s.Stroke == "" {
		s.Stroke = "white"
	}
	if s.Opacity == 0 {
		s.Opacity = 1
	}
	if s.FillOpacity == 0 {
		s.FillOpacity = 0.8
	}
	if d.ColorKey != "" {
		if c := strings.TrimSpace(propString(props, d.ColorKey)); c != "" {
			s.Fill = c
		}
	}
	return s
}

// PopupFields returns the popup rows, defaulting to the indicator itself.
func (d Descriptor) PopupFields() []PopupField {
	if len(d.Popup) > 0 {
		return d.Popup
	}
	return []PopupField{{Key: d.Key, Label: d.Name()}}
}

// propString reads a property as display text. Missing and nil values are "".
func propString(props geojson.Properties, key string) string {
	if props == nil {
		return ""
	}
	switch v := props[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
