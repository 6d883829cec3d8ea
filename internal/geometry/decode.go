package geometry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// ErrMissingFeatures marks a fetched document without a "features" array.
var ErrMissingFeatures = errors.New("geometry document has no features array")

// Decode extracts the raw features of a GeoJSON document. The document must
// carry a "features" array; in lenient mode a single Feature, a bare Geometry
// or a bare coordinate array is accepted and wrapped instead.
func Decode(body []byte, lenient bool) ([]*geojson.Feature, error) {
	body = bytes.TrimSpace(body)

	var probe struct {
		Type     string          `json:"type"`
		Features json.RawMessage `json:"features"`
	}
	objErr := json.Unmarshal(body, &probe)
	if objErr == nil && isArray(probe.Features) {
		return decodeFeatures(probe.Features)
	}
	if !lenient {
		if objErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingFeatures, objErr)
		}
		return nil, ErrMissingFeatures
	}

	switch {
	case objErr == nil && probe.Type == "Feature":
		f, err := geojson.UnmarshalFeature(body)
		if err != nil {
			return nil, fmt.Errorf("decode feature: %w", err)
		}
		return []*geojson.Feature{f}, nil
	case objErr == nil && probe.Type != "":
		g, err := geojson.UnmarshalGeometry(body)
		if err != nil {
			return nil, fmt.Errorf("decode geometry: %w", err)
		}
		return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
	case isArray(body):
		return decodeCoordinates(body)
	default:
		return nil, ErrMissingFeatures
	}
}

func decodeFeatures(raw json.RawMessage) ([]*geojson.Feature, error) {
	var features []*geojson.Feature
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	out := features[:0]
	for _, f := range features {
		if f != nil {
			out = append(out, f)
		}
	}
	return out, nil
}

// decodeCoordinates guesses the geometry type of a bare coordinate array from
// its nesting depth: Point, LineString, Polygon, else MultiPolygon.
func decodeCoordinates(raw []byte) ([]*geojson.Feature, error) {
	var coords []any
	if err := json.Unmarshal(raw, &coords); err != nil {
		return nil, fmt.Errorf("decode coordinates: %w", err)
	}

	typ := "MultiPolygon"
	switch depth(coords) {
	case 1:
		typ = "Point"
	case 2:
		typ = "LineString"
	case 3:
		typ = "Polygon"
	}

	doc, err := json.Marshal(map[string]any{"type": typ, "coordinates": json.RawMessage(raw)})
	if err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry(doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s coordinates: %w", typ, err)
	}
	return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
}

// depth counts array nesting down the first element until a number is found.
func depth(v []any) int {
	d := 1
	for len(v) > 0 {
		inner, ok := v[0].([]any)
		if !ok {
			return d
		}
		v = inner
		d++
	}
	return d
}

func isArray(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
