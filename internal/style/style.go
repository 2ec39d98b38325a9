// Package style maps earthquake attributes to marker styling.
//
// All functions are pure. Depth colours and legend rows are read from the
// single ordered [Bands] table so they cannot drift apart.
package style

import (
	"bytes"
	"html/template"
	"strconv"

	"github.com/joeblew999/plat-quake/internal/feed"
)

// Band is one depth colour band. A depth belongs to the band when it is
// strictly greater than Above. The last band catches everything else.
type Band struct {
	Above float64 `json:"above" doc:"Exclusive lower bound in km"`
	Color string  `json:"color" doc:"Fill colour (CSS)"`
	Label string  `json:"label" doc:"Legend label"`
}

// Bands is ordered by descending lower bound.
var Bands = []Band{
	{Above: 90, Color: "#ff0000", Label: "90+"},
	{Above: 70, Color: "#ff6600", Label: "70-90"},
	{Above: 50, Color: "#ffcc00", Label: "50-70"},
	{Above: 30, Color: "#ccff33", Label: "30-50"},
	{Above: 10, Color: "#33ff33", Label: "10-30"},
	{Above: 0, Color: "#00ccff", Label: "0-10"},
}

// Marker stroke and opacity, fixed for every earthquake.
const (
	MarkerStroke      = "#000000"
	MarkerWeight      = 0.5
	MarkerOpacity     = 1.0
	MarkerFillOpacity = 0.5

	PlateStroke = "orange"
	PlateWeight = 2.0

	// TimeLayout renders event times the way browsers print a Date.
	TimeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"
)

// Radius returns the marker radius for a magnitude. No clamping.
func Radius(magnitude float64) float64 {
	return magnitude * 4
}

// Color returns the fill colour for a depth in km.
func Color(depth float64) string {
	last := len(Bands) - 1
	for _, b := range Bands[:last] {
		if depth > b.Above {
			return b.Color
		}
	}
	return Bands[last].Color
}

// Marker holds circle marker options understood by the browser map widget.
type Marker struct {
	Radius      float64 `json:"radius"`
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fillOpacity"`
}

// MarkerStyle styles a single earthquake.
func MarkerStyle(q feed.Earthquake) Marker {
	return Marker{
		Radius:      Radius(q.Magnitude),
		FillColor:   Color(q.Depth),
		Color:       MarkerStroke,
		Weight:      MarkerWeight,
		Opacity:     MarkerOpacity,
		FillOpacity: MarkerFillOpacity,
	}
}

// Line holds path options for line and polygon overlays.
type Line struct {
	Color  string  `json:"color"`
	Weight float64 `json:"weight"`
}

// PlateStyle is the fixed stroke for plate boundaries.
func PlateStyle() Line {
	return Line{Color: PlateStroke, Weight: PlateWeight}
}

var popupTmpl = template.Must(template.New("popup").Parse(
	`<h3>{{.Place}}</h3><hr><p>Magnitude: {{.Magnitude}}</p><p>Depth: {{.Depth}} km</p><p>{{.Time}}</p>`))

type popupData struct {
	Place, Magnitude, Depth string

	// Time is built from TimeLayout only, which yields no markup.
	Time template.HTML
}

// PopupText builds the popup markup for an earthquake.
func PopupText(q feed.Earthquake) string {
	var buf bytes.Buffer
	if err := popupTmpl.Execute(&buf, popupData{
		Place:     q.Place,
		Magnitude: strconv.FormatFloat(q.Magnitude, 'f', -1, 64),
		Depth:     strconv.FormatFloat(q.Depth, 'f', 2, 64),
		Time:      template.HTML(q.Time.UTC().Format(TimeLayout)),
	}); err != nil {
		panic(err)
	}
	return buf.String()
}
