// Package config loads the map profile: where the feeds live, how the map
// opens and how often it is recomposed.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/joeblew999/plat-quake/internal/feed"
	"github.com/joeblew999/plat-quake/internal/service"
)

// Config is the map profile.
type Config struct {
	// CenterLat and CenterLng position the initial map centre.
	CenterLat float64 `koanf:"center_lat"`
	CenterLng float64 `koanf:"center_lng"`

	// Zoom is the initial Leaflet zoom level.
	Zoom int `koanf:"zoom"`

	EarthquakesURL string `koanf:"earthquakes_url"`
	PlatesURL      string `koanf:"plates_url"`

	// FetchTimeout bounds each feed request.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// RefreshInterval recomposes the map periodically. Zero disables it.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// BaseLayers replaces the built-in tile layers when set.
	BaseLayers []service.BaseLayer `koanf:"base_layers"`

	// DefaultBase names the base layer active on a new view.
	DefaultBase string `koanf:"default_base"`
}

// New returns the built-in profile.
func New() *Config {
	p := service.DefaultProfile()
	return &Config{
		CenterLat:      p.Center.Lat,
		CenterLng:      p.Center.Lng,
		Zoom:           p.Zoom,
		EarthquakesURL: feed.DefaultEarthquakesURL,
		PlatesURL:      feed.DefaultPlatesURL,
		FetchTimeout:   20 * time.Second,
		BaseLayers:     p.BaseLayers,
		DefaultBase:    p.DefaultBase,
	}
}

// Validate checks the profile is usable.
func (c *Config) Validate() error {
	switch {
	case c.CenterLat < -90 || c.CenterLat > 90:
		return fmt.Errorf("%w: center_lat %v out of range", ErrInvalidConfig, c.CenterLat)
	case c.CenterLng < -180 || c.CenterLng > 180:
		return fmt.Errorf("%w: center_lng %v out of range", ErrInvalidConfig, c.CenterLng)
	case c.Zoom < 0 || c.Zoom > 19:
		return fmt.Errorf("%w: zoom %d out of range", ErrInvalidConfig, c.Zoom)
	case c.FetchTimeout <= 0:
		return fmt.Errorf("%w: fetch_timeout must be positive", ErrInvalidConfig)
	case c.RefreshInterval < 0:
		return fmt.Errorf("%w: refresh_interval must not be negative", ErrInvalidConfig)
	case len(c.BaseLayers) == 0:
		return fmt.Errorf("%w: no base layers", ErrInvalidConfig)
	}

	names := make([]string, 0, len(c.BaseLayers))
	for i, b := range c.BaseLayers {
		if b.Name == "" || b.URL == "" {
			return fmt.Errorf("%w: base_layers[%d] needs name and url", ErrInvalidConfig, i)
		}
		if slices.Contains(names, b.Name) {
			return fmt.Errorf("%w: duplicate base layer %q", ErrInvalidConfig, b.Name)
		}
		names = append(names, b.Name)
	}
	if c.DefaultBase != "" && !slices.Contains(names, c.DefaultBase) {
		return fmt.Errorf("%w: default_base %q is not a base layer", ErrInvalidConfig, c.DefaultBase)
	}
	return nil
}

// Profile converts the config into the composer's map profile.
func (c *Config) Profile() service.MapProfile {
	return service.MapProfile{
		Center:      service.LatLng{Lat: c.CenterLat, Lng: c.CenterLng},
		Zoom:        c.Zoom,
		BaseLayers:  slices.Clone(c.BaseLayers),
		DefaultBase: c.DefaultBase,
	}
}
