package style

// Legend placement and heading.
const (
	LegendPosition = "bottomright"
	LegendTitle    = "Earthquake Depth (km)"
)

// LegendItem is one legend row.
type LegendItem struct {
	Label string `json:"label" doc:"Depth range" example:"10-30"`
	Color string `json:"color" doc:"Band colour (CSS)" example:"#33ff33"`
}

// Legend returns the legend rows in ascending depth order.
func Legend() []LegendItem {
	items := make([]LegendItem, 0, len(Bands))
	for i := len(Bands) - 1; i >= 0; i-- {
		items = append(items, LegendItem{Label: Bands[i].Label, Color: Bands[i].Color})
	}
	return items
}
