package provider

// GeocodeResult is a single coordinate match from a geocoding provider.
type GeocodeResult struct {
	Lat         float64
	Lng         float64
	DisplayName string
}
