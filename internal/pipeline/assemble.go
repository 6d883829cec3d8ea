package pipeline

import (
	"errors"
	"fmt"

	"github.com/joeblew999/plat-risk/internal/control"
	"github.com/joeblew999/plat-risk/internal/viewport"
)

// Selection is the switcher state to restore after assembly.
type Selection struct {
	Base     string
	Overlays []string
}

// Assemble registers the atlas layers with a fresh assembler drawing onto vp,
// bases then overlays in config order. The base in sel is selected when the
// atlas has it, else the configured default, else the first base. Overlays
// in sel that still exist are switched on; with an empty sel the configured
// visible overlays are.
func (a *Atlas) Assemble(vp *viewport.Viewport, sel *Selection) (*control.Assembler, error) {
	vp.Reset()
	asm := control.New(vp)
	for _, l := range a.Bases {
		if err := asm.RegisterBase(l); err != nil {
			return nil, err
		}
	}
	for _, l := range a.Overlays {
		if err := asm.RegisterOverlay(l); err != nil {
			return nil, err
		}
	}

	if base := a.initialBase(sel); base != "" {
		if err := asm.SelectBase(base); err != nil {
			return nil, fmt.Errorf("select base %q: %w", base, err)
		}
	}

	overlays := a.Visible
	if sel != nil {
		overlays = sel.Overlays
	}
	for _, key := range overlays {
		err := asm.SetOverlay(key, true)
		if errors.Is(err, control.ErrUnknownLayer) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return asm, nil
}

func (a *Atlas) initialBase(sel *Selection) string {
	has := func(key string) bool {
		for _, l := range a.Bases {
			if l.Key == key {
				return true
			}
		}
		return false
	}
	if sel != nil && has(sel.Base) {
		return sel.Base
	}
	if a.Config != nil {
		if key := a.Config.InitialBase(); has(key) {
			return key
		}
	}
	if len(a.Bases) > 0 {
		return a.Bases[0].Key
	}
	return ""
}
