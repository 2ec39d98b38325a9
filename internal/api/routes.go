// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-quake/internal/feed"
	"github.com/joeblew999/plat-quake/internal/service"
)

// Version is the service version reported by /health, /api/v1/info and the
// OpenAPI document.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Composer *service.Composer
	Logger   *slog.Logger
}

// Types

type OverlayIDInput struct {
	ID string `path:"id" doc:"Overlay ID" example:"earthquakes"`
}

type ViewOutput struct {
	Body service.View
}

type OverlaysOutput struct {
	Body []service.Overlay
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type LegendOutput struct {
	Body service.Legend
}

type BaseLayerInput struct {
	Body struct {
		Name string `json:"name" required:"true" doc:"Base layer name" example:"Satellite"`
	}
}

type VisibilityInput struct {
	OverlayIDInput
	Body struct {
		Visible bool `json:"visible" doc:"Show or hide the overlay"`
	}
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
	Phase   string `json:"phase" doc:"Map composition phase" example:"complete"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterMap registers map view routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map", h.GetMap, huma.OperationTags("map"))
	huma.Put(api, "/api/v1/map/base", h.PutBaseLayer, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/refresh", h.Refresh, huma.OperationTags("map"))
}

// RegisterOverlays registers overlay routes.
func (h *APIHandler) RegisterOverlays(api huma.API) {
	huma.Get(api, "/api/v1/overlays", h.GetOverlays, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{id}", h.GetOverlay, huma.OperationTags("overlays"))
	huma.Put(api, "/api/v1/overlays/{id}/visibility", h.PutOverlayVisibility, huma.OperationTags("overlays"))
}

// RegisterLegend registers legend routes.
func (h *APIHandler) RegisterLegend(api huma.API) {
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("map"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{
		Status:  "ok",
		Version: Version,
		Phase:   string(h.svc.Composer.Phase()),
	}}, nil
}

func (h *APIHandler) GetMap(ctx context.Context, input *struct{}) (*ViewOutput, error) {
	v, err := h.view()
	if err != nil {
		return nil, err
	}
	return &ViewOutput{Body: v}, nil
}

func (h *APIHandler) PutBaseLayer(ctx context.Context, input *BaseLayerInput) (*ViewOutput, error) {
	v, err := h.svc.Composer.SetBaseLayer(ctx, input.Body.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return &ViewOutput{Body: v}, nil
}

// Refresh runs a composition pass. The plate stage outlives the request.
func (h *APIHandler) Refresh(ctx context.Context, input *struct{}) (*ViewOutput, error) {
	if err := h.svc.Composer.Run(context.WithoutCancel(ctx)); err != nil {
		h.svc.Logger.WarnContext(ctx, "map refresh failed", "error", err)
		return nil, huma.Error502BadGateway("earthquake feed unavailable", err)
	}
	return h.GetMap(ctx, input)
}

func (h *APIHandler) GetOverlays(ctx context.Context, input *struct{}) (*OverlaysOutput, error) {
	v, err := h.view()
	if err != nil {
		return nil, err
	}
	return &OverlaysOutput{Body: v.Overlays}, nil
}

func (h *APIHandler) GetOverlay(ctx context.Context, input *OverlayIDInput) (*GeoJSONOutput, error) {
	v, err := h.view()
	if err != nil {
		return nil, err
	}
	o, ok := v.Overlay(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("overlay not found")
	}
	fc := o.Features
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	body, err := json.Marshal(fc)
	if err != nil {
		return nil, huma.Error500InternalServerError("encode overlay", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: body}, nil
}

func (h *APIHandler) PutOverlayVisibility(ctx context.Context, input *VisibilityInput) (*ViewOutput, error) {
	v, err := h.svc.Composer.SetOverlayVisible(ctx, input.ID, input.Body.Visible)
	if err != nil {
		return nil, mapError(err)
	}
	return &ViewOutput{Body: v}, nil
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*LegendOutput, error) {
	v, err := h.view()
	if err != nil {
		return nil, err
	}
	if v.Legend == nil {
		return nil, huma.Error503ServiceUnavailable("legend not attached yet")
	}
	return &LegendOutput{Body: *v.Legend}, nil
}

func (h *APIHandler) view() (service.View, error) {
	v, ok := h.svc.Composer.View()
	if !ok {
		return service.View{}, mapError(service.ErrMapNotReady)
	}
	return v, nil
}

// mapError converts service errors to HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrMapNotReady):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, service.ErrNoLayerControl):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrUnknownLayer):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, feed.ErrUnexpectedStatus):
		return huma.Error502BadGateway(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
