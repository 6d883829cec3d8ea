package geometry

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FeatureCollection(t *testing.T) {
	features, err := Decode([]byte(twoPolygons), false)
	require.NoError(t, err)
	assert.Len(t, features, 2)
}

func TestDecode_SkipsNullFeatures(t *testing.T) {
	features, err := Decode([]byte(`{"features":[null,{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}]}`), false)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, orb.Point{1, 1}, features[0].Geometry)
}

func TestDecode_MissingFeatures(t *testing.T) {
	cases := map[string]string{
		"no features":      `{"type":"FeatureCollection"}`,
		"features object":  `{"features":{"a":1}}`,
		"features string":  `{"features":"none"}`,
		"not json":         `<html>502</html>`,
		"single feature":   `{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]}}`,
		"bare coordinates": `[1,2]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc), false)
			assert.ErrorIs(t, err, ErrMissingFeatures)
		})
	}
}

func TestDecode_Lenient(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want orb.Geometry
	}{
		{"feature", `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}`, orb.Point{1, 2}},
		{"geometry", `{"type":"LineString","coordinates":[[0,0],[1,1]]}`, orb.LineString{{0, 0}, {1, 1}}},
		{"point coords", `[3,4]`, orb.Point{3, 4}},
		{"line coords", `[[0,0],[1,1]]`, orb.LineString{{0, 0}, {1, 1}}},
		{"polygon coords", `[[[0,0],[1,0],[1,1],[0,0]]]`, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
		{"multipolygon coords", `[[[[0,0],[1,0],[1,1],[0,0]]]]`, orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			features, err := Decode([]byte(tc.doc), true)
			require.NoError(t, err)
			require.Len(t, features, 1)
			assert.Equal(t, tc.want, features[0].Geometry)
		})
	}
}

func TestDecode_LenientStillRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`{"hello":"world"}`), true)
	assert.ErrorIs(t, err, ErrMissingFeatures)
}
