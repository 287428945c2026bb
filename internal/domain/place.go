package domain

// Place is one point of interest returned by the place lookup provider.
type Place struct {
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	Rating  float64  `json:"rating,omitempty"`
	Lat     float64  `json:"lat,omitempty"`
	Lng     float64  `json:"lng,omitempty"`
	Types   []string `json:"types,omitempty"`
}

// Itinerary is the composed travel plan for a located reel.
type Itinerary struct {
	Days     int    `json:"days"`
	Markdown string `json:"markdown"`
}
