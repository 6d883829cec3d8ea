// Package viewport is the explicit map context: the ordered stack of layers
// currently drawn and the popup currently open. Components that add or remove
// layers receive a *Viewport instead of reaching for a global map.
package viewport

import (
	"slices"
	"sync"

	"github.com/joeblew999/plat-risk/internal/layer"
)

// Viewport is safe for concurrent use. Callers that need several operations
// to appear atomic (base switching) serialize them themselves.
type Viewport struct {
	mu    sync.RWMutex
	stack []string
	popup *layer.Popup
}

// New returns an empty viewport.
func New() *Viewport {
	return &Viewport{}
}

// Add puts key on top of the stack. A key already present is moved to the top.
func (v *Viewport) Add(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stack = slices.DeleteFunc(v.stack, func(k string) bool { return k == key })
	v.stack = append(v.stack, key)
}

// Remove takes key off the stack and closes a popup that belongs to it.
// It reports whether the key was present.
func (v *Viewport) Remove(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := len(v.stack)
	v.stack = slices.DeleteFunc(v.stack, func(k string) bool { return k == key })
	if v.popup != nil && v.popup.Layer == key {
		v.popup = nil
	}
	return len(v.stack) != n
}

// Has reports whether key is on the stack.
func (v *Viewport) Has(key string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Contains(v.stack, key)
}

// Order returns the stack bottom to top.
func (v *Viewport) Order() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.stack)
}

// OpenPopup replaces the open popup.
func (v *Viewport) OpenPopup(p layer.Popup) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.popup = &p
}

// Popup returns the open popup, if any.
func (v *Viewport) Popup() (layer.Popup, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.popup == nil {
		return layer.Popup{}, false
	}
	return *v.popup, true
}

// Click delivers a feature click to the map. The popup is opened, then the
// map-level handler closes all popups unless the click stopped propagation.
// A nil popup is a click on empty map.
func (v *Viewport) Click(p *layer.Popup) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p != nil {
		cp := *p
		v.popup = &cp
		if cp.StopPropagation {
			return
		}
	}
	v.popup = nil
}

// CloseAll closes the open popup.
func (v *Viewport) CloseAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.popup = nil
}

// Reset empties the stack and closes popups.
func (v *Viewport) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stack = nil
	v.popup = nil
}
