package nominatim

// apiPlace is one element of the /search JSON array. Nominatim encodes
// coordinates as strings.
type apiPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
