// Package feed fetches the earthquake and plate boundary GeoJSON feeds.
package feed

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Default feed locations.
const (
	DefaultEarthquakesURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson"
	DefaultPlatesURL      = "https://raw.githubusercontent.com/fraxen/tectonicplates/master/GeoJSON/PB2002_boundaries.json"
)

// Earthquake is a single event from the earthquake feed.
// Missing magnitude or depth decode as zero; nothing is validated.
type Earthquake struct {
	ID        string
	Point     orb.Point // lon, lat
	Depth     float64   // km, third coordinate of the point geometry
	Magnitude float64
	Place     string
	Time      time.Time // event time, UTC

	// Properties carries the feed properties as received.
	Properties geojson.Properties
}

// rawCollection keeps the third coordinate that orb.Point drops.
type rawCollection struct {
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	ID         any                `json:"id"`
	Geometry   rawGeometry        `json:"geometry"`
	Properties geojson.Properties `json:"properties"`
}

type rawGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func (f rawFeature) earthquake() Earthquake {
	q := Earthquake{
		Properties: f.Properties,
		Magnitude:  f.Properties.MustFloat64("mag", 0),
		Place:      f.Properties.MustString("place", ""),
		Time:       time.UnixMilli(int64(f.Properties.MustFloat64("time", 0))).UTC(),
	}
	if id, ok := f.ID.(string); ok {
		q.ID = id
	}
	c := f.Geometry.Coordinates
	if len(c) >= 2 {
		q.Point = orb.Point{c[0], c[1]}
	}
	if len(c) >= 3 {
		q.Depth = c[2]
	}
	return q
}
