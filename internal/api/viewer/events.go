// Package viewer contains the Datastar SSE handlers behind the map viewer page.
package viewer

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-quake/internal/humastar"
	"github.com/joeblew999/plat-quake/internal/service"
	"github.com/joeblew999/plat-quake/internal/templates"
)

// EventHandler streams map view changes to the viewer via SSE.
type EventHandler struct {
	humastar.Handler
	composer *service.Composer
	logger   *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(composer *service.Composer, renderer *templates.Renderer, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		Handler:  humastar.Handler{Renderer: renderer},
		composer: composer,
		logger:   logger,
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events,
		huma.OperationTags("viewer"),
	)
	huma.Post(api, "/api/v1/viewer/base", h.SelectBase,
		huma.OperationTags("viewer"),
	)
	huma.Post(api, "/api/v1/viewer/overlay", h.ToggleOverlay,
		huma.OperationTags("viewer"),
	)
}

// Events sends the current view, then one update per accepted change.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.composer.Bus().Subscribe()
		defer h.composer.Bus().Unsubscribe(ch)

		if v, ok := h.composer.View(); ok {
			if err := h.push(sse, v); err != nil {
				return
			}
		}

		done := sse.Done()
		for {
			select {
			case <-done:
				return
			case ev := <-ch:
				v, ok := h.composer.View()
				if !ok {
					continue
				}
				if err := h.push(sse, v); err != nil {
					h.logger.Debug("viewer stream closed", "error", err)
					return
				}
				if err := sse.DispatchCustomEvent("view-changed", map[string]any{
					"action":   ev.Action,
					"revision": ev.Revision,
				}); err != nil {
					return
				}
			}
		}
	}), nil
}

func (h *EventHandler) push(sse humastar.SSE, v service.View) error {
	status, err := h.Renderer.Render("status", v)
	if err != nil {
		return err
	}
	if err := sse.Replace(status, "#status"); err != nil {
		return err
	}
	if v.Legend != nil {
		legend, err := h.Renderer.Render("legend", v.Legend)
		if err != nil {
			return err
		}
		if err := sse.Patch(legend, "#panel"); err != nil {
			return err
		}
	}
	return sse.Signals(viewSignals(v))
}

func viewSignals(v service.View) map[string]any {
	overlays := make(map[string]any, len(v.Overlays))
	for _, o := range v.Overlays {
		overlays[o.ID] = o.Visible
	}
	return map[string]any{
		"baselayer": v.ActiveBase,
		"phase":     string(v.Phase),
		"overlays":  overlays,
	}
}
