package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	version   string
	catalogOK bool
	feeds     FeedsBody
}

func NewInfoHandler(version string, catalogOK bool, earthquakesURL, platesURL string) *InfoHandler {
	return &InfoHandler{
		version:   version,
		catalogOK: catalogOK,
		feeds:     FeedsBody{Earthquakes: earthquakesURL, Plates: platesURL},
	}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type FeedsBody struct {
	Earthquakes string `json:"earthquakes" doc:"Earthquake feed URL"`
	Plates      string `json:"plates" doc:"Plate boundary feed URL"`
}

type InfoBody struct {
	Name     string    `json:"name" doc:"Service name"`
	Version  string    `json:"version" doc:"Service version"`
	Catalog  bool      `json:"catalog" doc:"Whether the SQL catalog is available"`
	Feeds    FeedsBody `json:"feeds" doc:"Upstream GeoJSON feeds"`
	Features []string  `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"earthquakes", "tectonic-plates", "legend", "viewer"}
	if h.catalogOK {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-quake",
		Version:  h.version,
		Catalog:  h.catalogOK,
		Feeds:    h.feeds,
		Features: features,
	}}, nil
}
