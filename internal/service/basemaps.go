package service

// Base layer names.
const (
	BaseStreet    = "Street Map"
	BaseTopo      = "Topographic Map"
	BaseSatellite = "Satellite"
	BaseGrayscale = "Grayscale"
	BaseOutdoors  = "Outdoors"
)

// DefaultBaseLayers returns the built-in tile layers in control order.
func DefaultBaseLayers() []BaseLayer {
	return []BaseLayer{
		{
			Name:        BaseStreet,
			URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
		},
		{
			Name: BaseTopo,
			URL:  "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
			Attribution: `Map data: &copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors, ` +
				`<a href="http://viewfinderpanoramas.org">SRTM</a> | Map style: &copy; <a href="https://opentopomap.org">OpenTopoMap</a> ` +
				`(<a href="https://creativecommons.org/licenses/by-sa/3.0/">CC-BY-SA</a>)`,
		},
		{
			Name: BaseSatellite,
			URL:  "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution: "Tiles &copy; Esri &mdash; Source: Esri, i-cubed, USDA, USGS, AEX, GeoEye, Getmapping, " +
				"Aerogrid, IGN, IGP, UPR-EGP, and the GIS User Community",
		},
		{
			Name:        BaseGrayscale,
			URL:         "https://tiles.wmflabs.org/bw-mapnik/{z}/{x}/{y}.png",
			Attribution: `Map data &copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a>`,
		},
		{
			Name: BaseOutdoors,
			URL:  "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
			Attribution: `Map style: &copy; <a href="https://opentopomap.org">OpenTopoMap</a>, ` +
				`<a href="http://viewfinderpanoramas.org">SRTM</a> contributors`,
		},
	}
}

// DefaultProfile is the map profile used when no configuration overrides it.
func DefaultProfile() MapProfile {
	return MapProfile{
		Center:      LatLng{Lat: 37.82, Lng: -122.42},
		Zoom:        5,
		BaseLayers:  DefaultBaseLayers(),
		DefaultBase: BaseStreet,
	}
}
