package humastar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-risk/internal/templates"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"base":"dr","on":true,"zoom":11,"opacity":0.5}`))
	require.NoError(t, err)
	assert.Equal(t, "dr", s.String("base"))
	assert.True(t, s.Bool("on"))
	assert.Equal(t, 11, s.Int("zoom"))
	assert.Equal(t, 0.5, s.Float("opacity"))
	assert.True(t, s.Has("base"))
	assert.False(t, s.Has("overlay"))
	assert.Empty(t, s.String("zoom"))

	_, err = ParseSignals([]byte(`not json`))
	assert.Error(t, err)
}

func TestSignalsInput_MustParse(t *testing.T) {
	in := &SignalsInput{RawBody: []byte(`{`)}
	_, err := in.MustParse()
	assert.ErrorContains(t, err, "Invalid request data")
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	p := Page(items, 2, 2)
	assert.Equal(t, []int{3, 4}, p.Data)
	assert.Equal(t, 5, p.Total)

	assert.Empty(t, Page(items, 10, 2).Data)
	assert.Len(t, Page(items, -1, 0).Data, 5)
}

func TestPageMap_ConvertsOnlyThePage(t *testing.T) {
	src := []string{"a", "b", "c", "d", "e"}
	var seen []int
	p := PageMap(src, 3, 10, func(i int, s string) string {
		seen = append(seen, i)
		return strings.ToUpper(s)
	})
	assert.Equal(t, []int{3, 4}, seen)
	assert.Equal(t, []string{"D", "E"}, p.Data)
	assert.Equal(t, 5, p.Total)

	seen = nil
	empty := PageMap(src, 9, 2, func(i int, s string) string {
		seen = append(seen, i)
		return s
	})
	assert.Empty(t, seen)
	assert.Equal(t, []string{}, empty.Data)
}

func TestPaginationLinks(t *testing.T) {
	p := PageBody[int]{Total: 5, Offset: 2, Limit: 2}
	assert.Equal(t, []string{
		`</f?offset=0&limit=2>; rel="first"`,
		`</f?offset=0&limit=2>; rel="prev"`,
		`</f?offset=4&limit=2>; rel="next"`,
		`</f?offset=4&limit=2>; rel="last"`,
	}, p.PaginationLinks("/f"))

	empty := PageBody[int]{Limit: 10}
	assert.Contains(t, empty.PaginationLinks("/f"), `</f?offset=0&limit=10>; rel="last"`)
}

func TestActionsFor(t *testing.T) {
	actions := ActionsFor("dr", []ActionDef{
		{Rel: "select", Pattern: "/api/v1/viewport/base?key=%s", Method: "PUT", Title: "Show layer"},
	})
	require.Len(t, actions, 1)
	assert.Equal(t, `</api/v1/viewport/base?key=dr>; rel="select"; method="PUT"; title="Show layer"`, actions[0].LinkHeader())
}

func TestRenderList(t *testing.T) {
	r := templates.Must()
	html := RenderList(r, "dataset-card", nil, "No datasets", "Nothing loaded")
	assert.Contains(t, html, "No datasets")

	html = RenderList(r, "dataset-card", []any{
		map[string]any{"Name": "tracts", "Title": "Tracts", "Kind": "choropleth", "Records": 3, "Layers": []string{"dr"}},
	}, "No datasets", "")
	assert.Contains(t, html, `id="dataset-tracts"`)
	assert.Contains(t, html, "3 rows, 1 layer(s)")
}
