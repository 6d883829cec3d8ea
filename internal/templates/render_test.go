package templates

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Controls(t *testing.T) {
	r := Must()

	type control struct {
		Key, Title string
		Active     bool
	}
	html, err := r.Render("controls", map[string]any{
		"Bases":    []control{{Key: "dr", Title: "Displacement Risk", Active: true}, {Key: "pv", Title: "Poverty"}},
		"Overlays": []control{{Key: "sites", Title: "Sites"}},
	})
	require.NoError(t, err)
	assert.Contains(t, html, `value="dr" checked`)
	assert.NotContains(t, html, `value="pv" checked`)
	assert.Contains(t, html, `type="checkbox" value="sites"`)
	assert.Contains(t, html, "/api/v1/sidebar/overlay")
}

func TestRenderer_EmptyState(t *testing.T) {
	html, err := Must().Render("empty-state", map[string]string{"Title": "No layers", "Message": "Nothing loaded"})
	require.NoError(t, err)
	assert.Contains(t, html, "No layers")
	assert.Contains(t, html, "Nothing loaded")
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	_, err := Must().Render("nope", nil)
	assert.Error(t, err)
}

func TestRenderer_Reload(t *testing.T) {
	r := Must()
	fsys := fstest.MapFS{
		"x/one.html": {Data: []byte(`{{define "greeting"}}hello {{.}}{{end}}`)},
	}
	require.NoError(t, r.Reload(fsys, "x/*.html"))

	html, err := r.Render("greeting", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", html)

	_, err = r.Render("controls", nil)
	assert.Error(t, err, "old templates replaced")
}
