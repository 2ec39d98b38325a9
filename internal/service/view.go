package service

import (
	"fmt"
	"time"
)

// Compose builds the first view of a pass: the profile's default base layer
// with the earthquake overlay visible. No layer control, no legend.
func Compose(profile MapProfile, earthquakes Overlay, now time.Time) View {
	base := profile.DefaultBase
	if base == "" && len(profile.BaseLayers) > 0 {
		base = profile.BaseLayers[0].Name
	}
	earthquakes.Visible = true

	return View{
		ComposedAt: now,
		Phase:      PhaseMapReady,
		Center:     profile.Center,
		Zoom:       profile.Zoom,
		BaseLayers: append([]BaseLayer(nil), profile.BaseLayers...),
		ActiveBase: base,
		Overlays:   []Overlay{earthquakes},
	}
}

// WithOverlay adds o, replacing an existing overlay with the same ID.
func (v View) WithOverlay(o Overlay) View {
	overlays := make([]Overlay, 0, len(v.Overlays)+1)
	replaced := false
	for _, existing := range v.Overlays {
		if existing.ID == o.ID {
			overlays = append(overlays, o)
			replaced = true
			continue
		}
		overlays = append(overlays, existing)
	}
	if !replaced {
		overlays = append(overlays, o)
	}
	v.Overlays = overlays
	if v.Control != nil {
		v = v.WithLayerControl()
	}
	return v
}

// WithBaseLayer makes name the active base layer.
func (v View) WithBaseLayer(name string) (View, error) {
	for _, b := range v.BaseLayers {
		if b.Name == name {
			v.ActiveBase = name
			return v, nil
		}
	}
	return v, fmt.Errorf("base layer %q: %w", name, ErrUnknownLayer)
}

// WithOverlayVisible shows or hides the overlay with the given ID.
func (v View) WithOverlayVisible(id string, visible bool) (View, error) {
	idx := -1
	for i, o := range v.Overlays {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return v, fmt.Errorf("overlay %q: %w", id, ErrUnknownLayer)
	}
	overlays := append([]Overlay(nil), v.Overlays...)
	overlays[idx].Visible = visible
	v.Overlays = overlays
	return v, nil
}

// WithLayerControl attaches an expanded layer control listing every base
// layer and overlay of the view.
func (v View) WithLayerControl() View {
	ctl := &LayerControl{
		BaseLayers: make([]string, 0, len(v.BaseLayers)),
		Overlays:   make([]string, 0, len(v.Overlays)),
	}
	for _, b := range v.BaseLayers {
		ctl.BaseLayers = append(ctl.BaseLayers, b.Name)
	}
	for _, o := range v.Overlays {
		ctl.Overlays = append(ctl.Overlays, o.Name)
	}
	v.Control = ctl
	return v
}

// WithLegend attaches the legend.
func (v View) WithLegend(l Legend) View {
	l.Items = append(l.Items[:0:0], l.Items...)
	v.Legend = &l
	return v
}

// WithPhase records composition progress.
func (v View) WithPhase(p Phase) View {
	v.Phase = p
	return v
}

// Overlay returns the overlay with the given ID.
func (v View) Overlay(id string) (Overlay, bool) {
	for _, o := range v.Overlays {
		if o.ID == id {
			return o, true
		}
	}
	return Overlay{}, false
}

// selection is the user's layer choice, carried from one pass to the next.
type selection struct {
	base    string
	visible map[string]bool
}

func (v View) selection() selection {
	s := selection{base: v.ActiveBase, visible: make(map[string]bool, len(v.Overlays))}
	for _, o := range v.Overlays {
		s.visible[o.ID] = o.Visible
	}
	return s
}

// withSelection restores s onto v. Layers v does not have are skipped.
func (v View) withSelection(s selection) View {
	if next, err := v.WithBaseLayer(s.base); err == nil {
		v = next
	}
	for id, visible := range s.visible {
		if next, err := v.WithOverlayVisible(id, visible); err == nil {
			v = next
		}
	}
	return v
}
