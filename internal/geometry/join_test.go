package geometry

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"

	"github.com/joeblew999/plat-risk/internal/source"
)

func TestJoin(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	raw := geojson.NewFeature(poly)
	raw.Properties["GEOID"] = "A"

	rec := source.Record{"id": "A", "dr": "High", "drcolor": "#cb181d", "extra": "ignored"}
	f := Join(rec, raw, []string{"dr", "drcolor", "pvcolor"})

	assert.Equal(t, geojson.Properties{
		"id":      "A",
		"dr":      "High",
		"drcolor": "#cb181d",
		"pvcolor": nil,
	}, f.Properties)
	assert.Equal(t, poly, f.Geometry)
	assert.Equal(t, geojson.Properties{"GEOID": "A"}, raw.Properties, "raw feature untouched")
}

func TestJoin_MissingID(t *testing.T) {
	f := Join(source.Record{}, geojson.NewFeature(orb.Point{0, 0}), nil)
	assert.Contains(t, f.Properties, "id")
	assert.Nil(t, f.Properties["id"])
}
