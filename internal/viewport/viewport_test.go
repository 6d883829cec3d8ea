package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joeblew999/plat-risk/internal/layer"
)

func TestViewport_Stack(t *testing.T) {
	v := New()
	v.Add("dr")
	v.Add("zoning")
	v.Add("libs")
	assert.Equal(t, []string{"dr", "zoning", "libs"}, v.Order())

	v.Add("zoning")
	assert.Equal(t, []string{"dr", "libs", "zoning"}, v.Order())

	assert.True(t, v.Remove("dr"))
	assert.False(t, v.Remove("dr"))
	assert.False(t, v.Has("dr"))
	assert.True(t, v.Has("libs"))

	order := v.Order()
	order[0] = "mutated"
	assert.Equal(t, "libs", v.Order()[0])
}

func TestViewport_ClickStopsPropagation(t *testing.T) {
	v := New()
	v.Click(&layer.Popup{Layer: "dr", Content: "A", StopPropagation: true})
	p, ok := v.Popup()
	assert.True(t, ok)
	assert.Equal(t, "A", p.Content)

	v.Click(nil)
	_, ok = v.Popup()
	assert.False(t, ok, "click on empty map closes popups")
}

func TestViewport_ClickWithoutStopPropagationCloses(t *testing.T) {
	v := New()
	v.Click(&layer.Popup{Layer: "dr", Content: "A"})
	_, ok := v.Popup()
	assert.False(t, ok)
}

func TestViewport_RemoveClosesOwnPopup(t *testing.T) {
	v := New()
	v.Add("dr")
	v.Add("libs")
	v.OpenPopup(layer.Popup{Layer: "libs"})

	v.Remove("dr")
	_, ok := v.Popup()
	assert.True(t, ok)

	v.Remove("libs")
	_, ok = v.Popup()
	assert.False(t, ok)
}

func TestViewport_Reset(t *testing.T) {
	v := New()
	v.Add("dr")
	v.OpenPopup(layer.Popup{Layer: "dr"})
	v.Reset()
	assert.Empty(t, v.Order())
	_, ok := v.Popup()
	assert.False(t, ok)
}
