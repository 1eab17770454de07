package core

// NationalSeriesID is the headline all-items CPI series.
const NationalSeriesID = "CPIAUCSL"

// SeriesInfo describes a selectable price series.
type SeriesInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SeriesCatalog lists the series a basket item can reference from the UI.
var SeriesCatalog = []SeriesInfo{
	{ID: NationalSeriesID, Label: "All Items (National CPI)"},
	{ID: "CPIUFDSL", Label: "Food"},
	{ID: "CPIENGSL", Label: "Energy"},
	{ID: "CPIMEDSL", Label: "Medical Care"},
	{ID: "CPITRNSL", Label: "Transportation"},
	{ID: "CPIHOSSL", Label: "Housing"},
}

// CatalogIDs returns the ids of SeriesCatalog in order.
func CatalogIDs() []string {
	ids := make([]string, len(SeriesCatalog))
	for i, s := range SeriesCatalog {
		ids[i] = s.ID
	}
	return ids
}

// LookupSeries finds a catalog entry by id.
func LookupSeries(id string) (SeriesInfo, bool) {
	for _, s := range SeriesCatalog {
		if s.ID == id {
			return s, true
		}
	}
	return SeriesInfo{}, false
}
