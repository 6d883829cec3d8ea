package layer

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	d1 = Descriptor{
		Key:      "dr",
		Title:    "Displacement Risk",
		ColorKey: "drcolor",
		Legend: []LegendEntry{
			{Color: "#cb181d", Label: "High"},
			{Color: "#fcae91", Label: "Low"},
		},
	}
	d2 = Descriptor{Key: "pv", ColorKey: "pvcolor", Stroke: "black", Weight: 2, FillOpacity: 0.5}
)

func testCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	a := geojson.NewFeature(orb.Point{0, 0})
	a.Properties = geojson.Properties{"id": "A", "dr": "High", "drcolor": "#cb181d", "pv": "12", "pvcolor": "#08519c"}
	b := geojson.NewFeature(orb.Point{1, 1})
	b.Properties = geojson.Properties{"id": "B", "dr": "Low", "drcolor": nil, "pv": nil, "pvcolor": ""}
	fc.Append(a)
	fc.Append(b)
	return fc
}

func TestMake_StyleFallback(t *testing.T) {
	l := Make(testCollection(), d1)

	a, err := l.Style(0)
	require.NoError(t, err)
	assert.Equal(t, "#cb181d", a.Fill)

	b, err := l.Style(1)
	require.NoError(t, err)
	assert.Equal(t, NeutralGray, b.Fill)
	assert.Equal(t, "white", b.Stroke)
	assert.Equal(t, 1.0, b.Opacity)
	assert.Equal(t, 0.8, b.FillOpacity)
}

func TestMake_EmptyStringColorIsGray(t *testing.T) {
	l := Make(testCollection(), d2)
	s, err := l.Style(1)
	require.NoError(t, err)
	assert.Equal(t, NeutralGray, s.Fill)
}

func TestMake_SharedCollection(t *testing.T) {
	fc := testCollection()
	l1 := Make(fc, d1)
	l2 := Make(fc, d2)

	assert.Same(t, fc, l1.Features())
	assert.Same(t, fc, l2.Features())
	assert.Equal(t, KindBase, l1.Kind)
	assert.Equal(t, "Displacement Risk", l1.Title)
	assert.Equal(t, "pv", l2.Title)
}

func TestLayer_MouseOutRestoresOwnStyle(t *testing.T) {
	fc := testCollection()
	l1 := Make(fc, d1)
	l2 := Make(fc, d2)

	s1, err := l1.MouseOut(0)
	require.NoError(t, err)
	s2, err := l2.MouseOut(0)
	require.NoError(t, err)

	base1, _ := l1.Style(0)
	base2, _ := l2.Style(0)
	assert.Equal(t, base1, s1)
	assert.Equal(t, base2, s2)
	assert.Equal(t, "#08519c", s2.Fill)
	assert.Equal(t, "black", s2.Stroke)
	assert.NotEqual(t, s1, s2)
}

func TestLayer_Click(t *testing.T) {
	l := Make(testCollection(), d1)

	p, err := l.Click(0)
	require.NoError(t, err)
	assert.True(t, p.StopPropagation)
	assert.Equal(t, "dr", p.Layer)
	assert.Equal(t, 0, p.Index)
	assert.Contains(t, p.Content, "<strong>ID:</strong>")
	assert.Contains(t, p.Content, "A")
	assert.Contains(t, p.Content, "<strong>Displacement Risk:</strong>")
	assert.Contains(t, p.Content, "High")
}

func TestLayer_ClickCustomPopupFields(t *testing.T) {
	d := d2
	d.Popup = []PopupField{{Key: "pv", Label: "Poverty"}, {Key: "dr", Label: "Risk"}}
	p, err := Make(testCollection(), d).Click(1)
	require.NoError(t, err)
	assert.Contains(t, p.Content, "Poverty")
	assert.Contains(t, p.Content, "Risk")
	assert.Contains(t, p.Content, "Low")
}

func TestLayer_PopupEscapesHTML(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties = geojson.Properties{"id": "<script>", "dr": "x"}
	fc.Append(f)

	p, err := Make(fc, d1).Click(0)
	require.NoError(t, err)
	assert.NotContains(t, p.Content, "<script>")
}

func TestLayer_IndexOutOfRange(t *testing.T) {
	l := Make(testCollection(), d1)
	_, err := l.Style(2)
	assert.ErrorIs(t, err, ErrFeatureIndex)
	_, err = l.Click(-1)
	assert.ErrorIs(t, err, ErrFeatureIndex)
}

func TestLayer_GeoJSONLeavesCollectionUntouched(t *testing.T) {
	fc := testCollection()
	l := Make(fc, d1)

	body, err := l.GeoJSON()
	require.NoError(t, err)

	var out struct {
		Features []struct {
			Properties struct {
				ID    string `json:"id"`
				Index int    `json:"index"`
				Popup string `json:"popup"`
				Style Style  `json:"style"`
			} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Features, 2)
	assert.Equal(t, "B", out.Features[1].Properties.ID)
	assert.Equal(t, 1, out.Features[1].Properties.Index)
	assert.Equal(t, NeutralGray, out.Features[1].Properties.Style.Fill)
	assert.NotEmpty(t, out.Features[0].Properties.Popup)

	for _, f := range fc.Features {
		assert.NotContains(t, f.Properties, "style")
		assert.NotContains(t, f.Properties, "popup")
		assert.NotContains(t, f.Properties, "index")
	}
}

func TestMake_NilCollection(t *testing.T) {
	l := Make(nil, d1)
	assert.Zero(t, l.Len())
}
