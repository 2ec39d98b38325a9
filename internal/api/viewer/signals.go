package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-quake/internal/humastar"
	"github.com/joeblew999/plat-quake/internal/service"
)

// SelectBase switches the base layer from the viewer's layer control.
// Signals: {"baselayer": "<name>"}.
func (h *EventHandler) SelectBase(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	name := signals.String("baselayer")
	if name == "" {
		return nil, huma.Error400BadRequest("baselayer is required")
	}

	v, err := h.composer.SetBaseLayer(ctx, name)
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			_ = sse.Error(layerError(err, "Unknown base layer."))
			return
		}
		_ = sse.Signals(viewSignals(v))
	}), nil
}

// ToggleOverlay shows or hides an overlay from the viewer's layer control.
// Signals: {"overlay": "<id>", "visible": true|false}.
func (h *EventHandler) ToggleOverlay(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	id := signals.String("overlay")
	if id == "" || !signals.Has("visible") {
		return nil, huma.Error400BadRequest("overlay and visible are required")
	}

	v, err := h.composer.SetOverlayVisible(ctx, id, signals.Bool("visible"))
	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			_ = sse.Error(layerError(err, "Unknown overlay."))
			return
		}
		_ = sse.Signals(viewSignals(v))
	}), nil
}

func layerError(err error, unknown string) string {
	switch {
	case errors.Is(err, service.ErrMapNotReady):
		return "The map is still loading."
	case errors.Is(err, service.ErrNoLayerControl):
		return "Layer switching is unavailable."
	case errors.Is(err, service.ErrUnknownLayer):
		return unknown
	default:
		return err.Error()
	}
}
