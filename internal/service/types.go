// Package service composes the earthquake map view.
package service

import (
	"errors"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-quake/internal/style"
)

var (
	// ErrMapNotReady means no composition pass has produced a view yet.
	ErrMapNotReady = errors.New("map not ready")
	// ErrNoLayerControl means the layer control has not been attached, so
	// base layer and overlay switching are unavailable.
	ErrNoLayerControl = errors.New("layer control not available")
	// ErrUnknownLayer means the named base layer or overlay does not exist.
	ErrUnknownLayer = errors.New("unknown layer")
)

// Phase tracks composition progress.
type Phase string

const (
	PhaseInitial  Phase = "initial"   // no view yet
	PhaseMapReady Phase = "map-ready" // view exists, plate boundaries pending
	PhaseComplete Phase = "complete"  // plate stage settled, loaded or failed
)

// Overlay IDs.
const (
	OverlayEarthquakes = "earthquakes"
	OverlayPlates      = "tectonic-plates"
)

// LatLng is a map position in Leaflet order.
type LatLng struct {
	Lat float64 `json:"lat" doc:"Latitude" example:"37.82"`
	Lng float64 `json:"lng" doc:"Longitude" example:"-122.42"`
}

// BaseLayer is a background tile layer.
type BaseLayer struct {
	Name        string `json:"name" yaml:"name" koanf:"name" doc:"Display name" example:"Street Map"`
	URL         string `json:"url" yaml:"url" koanf:"url" doc:"Tile URL template" example:"https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"`
	Attribution string `json:"attribution" yaml:"attribution" koanf:"attribution" doc:"Attribution HTML"`
}

// Overlay is a togglable feature layer drawn over the base layer.
type Overlay struct {
	ID      string      `json:"id" yaml:"id" doc:"Overlay identifier" example:"earthquakes"`
	Name    string      `json:"name" yaml:"name" doc:"Display name" example:"Earthquakes"`
	Visible bool        `json:"visible" yaml:"visible" doc:"Whether the overlay is shown"`
	Count   int         `json:"count" yaml:"count" doc:"Number of features"`
	BBox    []float64   `json:"bbox,omitempty" yaml:"bbox,omitempty" doc:"Bounding box [minLon, minLat, maxLon, maxLat]"`
	Style   *style.Line `json:"style,omitempty" yaml:"style,omitempty" doc:"Path style for line overlays"`

	// Revision changes whenever the features are rebuilt. Visibility changes
	// keep it.
	Revision string `json:"revision,omitempty" yaml:"revision,omitempty" doc:"Feature data revision"`

	// Features holds the styled features. Shared between views, never mutated.
	Features *geojson.FeatureCollection `json:"-" yaml:"-"`
}

// LayerControl lists every switchable layer.
type LayerControl struct {
	BaseLayers []string `json:"baseLayers" yaml:"baseLayers" doc:"Base layer names"`
	Overlays   []string `json:"overlays" yaml:"overlays" doc:"Overlay names"`
	Collapsed  bool     `json:"collapsed" yaml:"collapsed" doc:"Whether the control starts collapsed"`
}

// Legend is the depth legend control.
type Legend struct {
	Position string             `json:"position" yaml:"position" example:"bottomright"`
	Title    string             `json:"title" yaml:"title" example:"Earthquake Depth (km)"`
	Items    []style.LegendItem `json:"items" yaml:"items"`
}

// DefaultLegend builds the legend from the depth band table.
func DefaultLegend() Legend {
	return Legend{
		Position: style.LegendPosition,
		Title:    style.LegendTitle,
		Items:    style.Legend(),
	}
}

// MapProfile holds the fixed parameters a view is composed from.
type MapProfile struct {
	Center      LatLng
	Zoom        int
	BaseLayers  []BaseLayer
	DefaultBase string
}

// View is an immutable snapshot of the map composition. The With* methods
// return modified copies.
type View struct {
	Revision   string        `json:"revision" yaml:"revision" doc:"Changes on every accepted update"`
	ComposedAt time.Time     `json:"composedAt" yaml:"composedAt"`
	Phase      Phase         `json:"phase" yaml:"phase" enum:"initial,map-ready,complete"`
	Center     LatLng        `json:"center" yaml:"center"`
	Zoom       int           `json:"zoom" yaml:"zoom" example:"5"`
	BaseLayers []BaseLayer   `json:"baseLayers" yaml:"baseLayers"`
	ActiveBase string        `json:"activeBase" yaml:"activeBase" example:"Street Map"`
	Overlays   []Overlay     `json:"overlays" yaml:"overlays"`
	Control    *LayerControl `json:"control,omitempty" yaml:"control,omitempty"`
	Legend     *Legend       `json:"legend,omitempty" yaml:"legend,omitempty"`
}
