package layer

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-risk/internal/source"
)

// MarkerKind selects how a point is drawn.
type MarkerKind string

const (
	// Marker is a standard pin with an icon.
	Marker MarkerKind = "marker"
	// CircleMarker is a circle with a radius in pixels.
	CircleMarker MarkerKind = "circleMarker"
	// Circle is a circle with a radius in metres.
	Circle MarkerKind = "circle"
)

const (
	DefaultMarkerColor  = "blue"
	DefaultMarkerRadius = 100
	DefaultMarkerIcon   = "info-circle"
)

// PointRule holds the per-dataset marker defaults. Record fields override them.
type PointRule struct {
	Marker MarkerKind `json:"marker,omitempty" yaml:"marker" enum:"marker,circleMarker,circle" doc:"Marker kind"`
	Color  string     `json:"color,omitempty" yaml:"color" doc:"Default marker color" example:"red"`
	Radius float64    `json:"radius,omitempty" yaml:"radius" doc:"Default radius"`
	Icon   string     `json:"icon,omitempty" yaml:"icon" doc:"Marker icon" example:"info-circle"`
	// RadiusFields are checked in order; the first numeric one wins.
	RadiusFields []string `json:"radiusFields,omitempty" yaml:"radiusFields" doc:"Record fields holding a radius"`
	// CategoryField splits a dataset into sub-categories colored by CategoryColors.
	CategoryField  string            `json:"categoryField,omitempty" yaml:"categoryField" doc:"Record field naming the sub-category"`
	CategoryColors map[string]string `json:"categoryColors,omitempty" yaml:"categoryColors" doc:"Marker color per sub-category"`
	Legend         []LegendEntry     `json:"legend,omitempty" yaml:"legend" doc:"Legend entries; derived from categories when empty"`
}

// Validate rejects unknown marker kinds.
func (r PointRule) Validate() error {
	switch r.Marker {
	case "", Marker, CircleMarker, Circle:
		return nil
	default:
		return fmt.Errorf("unknown marker kind %q", r.Marker)
	}
}

// markerStyle resolves the style for one record's properties.
func (r PointRule) markerStyle(props geojson.Properties) Style {
	s := Style{
		Marker:      string(r.Marker),
		Icon:        r.Icon,
		Fill:        r.Color,
		Radius:      r.Radius,
		Weight:      1,
		Opacity:     1,
		FillOpacity: 0.8,
	}
	if s.Marker == "" {
		s.Marker = string(Marker)
	}
	if s.Icon == "" {
		s.Icon = DefaultMarkerIcon
	}
	if s.Radius == 0 {
		s.Radius = DefaultMarkerRadius
	}
	if r.CategoryField != "" {
		if c, ok := r.CategoryColors[propString(props, r.CategoryField)]; ok && c != "" {
			s.Fill = c
		}
	}
	if c := propString(props, "color"); c != "" {
		s.Fill = c
	}
	if s.Fill == "" {
		s.Fill = DefaultMarkerColor
	}
	fields := r.RadiusFields
	if len(fields) == 0 {
		fields = []string{"radius"}
	}
	for _, f := range fields {
		if v, err := strconv.ParseFloat(strings.TrimSpace(propString(props, f)), 64); err == nil && v > 0 {
			s.Radius = v
			break
		}
	}
	s.Stroke = s.Fill
	return s
}

// legend returns the configured legend, or one entry per category sorted by name.
func (r PointRule) legend() []LegendEntry {
	if len(r.Legend) > 0 {
		return r.Legend
	}
	if len(r.CategoryColors) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.CategoryColors))
	for name := range r.CategoryColors {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]LegendEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, LegendEntry{Color: r.CategoryColors[name], Label: name})
	}
	return entries
}

// MakePoints builds an overlay with one marker per record. Records without a
// parseable lat/lon are skipped and reported; they never fail the layer.
func MakePoints(key, title string, records []source.Record, rule PointRule) (*Layer, []error) {
	fc := geojson.NewFeatureCollection()
	var errs []error
	for i, rec := range records {
		pt, err := recordPoint(rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		f := geojson.NewFeature(pt)
		for k, v := range rec {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	if title == "" {
		title = key
	}
	return &Layer{
		Key:      key,
		Title:    title,
		Kind:     KindOverlay,
		Legend:   rule.legend(),
		features: fc,
		style:    rule.markerStyle,
		popup:    renderPointPopup,
	}, errs
}

func recordPoint(rec source.Record) (orb.Point, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(rec["lat"]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid lat %q", rec["lat"])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(rec["lon"]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid lon %q", rec["lon"])
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, fmt.Errorf("coordinates out of range: %v,%v", lat, lon)
	}
	return orb.Point{lon, lat}, nil
}

var pointPopupTmpl = template.Must(template.New("point-popup").Parse(
	`<div class="point-popup">{{with .Name}}<strong>{{.}}</strong>{{end}}{{with .Address}}<br>{{.}}{{end}}{{with .Info}}<p>{{.}}</p>{{end}}</div>`))

func renderPointPopup(props geojson.Properties) string {
	name := propString(props, "labelname")
	if name == "" {
		name = propString(props, "name")
	}
	var buf bytes.Buffer
	err := pointPopupTmpl.Execute(&buf, struct{ Name, Address, Info string }{
		Name:    name,
		Address: propString(props, "address"),
		Info:    propString(props, "info"),
	})
	if err != nil {
		return ""
	}
	return buf.String()
}
