package geometry

import (
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-risk/internal/source"
)

// Join pairs a raw feature's geometry with the owning record's attributes.
// The properties hold "id" plus every declared key; keys missing from the
// record are nil. The geometry is referenced, not copied, and raw is not modified.
func Join(rec source.Record, raw *geojson.Feature, keys []string) *geojson.Feature {
	props := make(geojson.Properties, len(keys)+1)
	props["id"] = value(rec, "id")
	for _, k := range keys {
		props[k] = value(rec, k)
	}
	return &geojson.Feature{
		Type:       "Feature",
		Geometry:   raw.Geometry,
		Properties: props,
	}
}

func value(rec source.Record, key string) any {
	if v, ok := rec[key]; ok {
		return v
	}
	return nil
}
