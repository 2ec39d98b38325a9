package service

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-quake/internal/feed"
	"github.com/joeblew999/plat-quake/internal/style"
)

// Feature property keys added by the styler.
const (
	PropDepth = "depth"
	PropStyle = "style"
	PropPopup = "popup"
)

// BuildEarthquakeOverlay styles every earthquake as a circle marker with a
// popup. Feed properties are passed through.
func BuildEarthquakeOverlay(quakes []feed.Earthquake) Overlay {
	fc := geojson.NewFeatureCollection()
	for _, q := range quakes {
		f := geojson.NewFeature(q.Point)
		if q.ID != "" {
			f.ID = q.ID
		}
		props := make(geojson.Properties, len(q.Properties)+3)
		for k, val := range q.Properties {
			props[k] = val
		}
		props[PropDepth] = q.Depth
		props[PropStyle] = style.MarkerStyle(q)
		props[PropPopup] = style.PopupText(q)
		f.Properties = props
		fc.Append(f)
	}

	return Overlay{
		ID:       OverlayEarthquakes,
		Name:     "Earthquakes",
		Count:    len(fc.Features),
		BBox:     bbox(fc),
		Features: fc,
	}
}

// BuildPlateOverlay wraps the plate boundaries with the fixed plate stroke.
func BuildPlateOverlay(fc *geojson.FeatureCollection) Overlay {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	line := style.PlateStyle()
	return Overlay{
		ID:       OverlayPlates,
		Name:     "Tectonic Plates",
		Visible:  true,
		Count:    len(fc.Features),
		BBox:     bbox(fc),
		Style:    &line,
		Features: fc,
	}
}

func bbox(fc *geojson.FeatureCollection) []float64 {
	var (
		b     orb.Bound
		found bool
	)
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !found {
			b = f.Geometry.Bound()
			found = true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	if !found {
		return nil
	}
	return geojson.NewBBox(b)
}
