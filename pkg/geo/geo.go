package geo

import "context"

// Location is a best-effort position for an IP address
type Location struct {
	Country string  `json:"country"`
	Region  string  `json:"region"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Geolocator resolves an IP address. A nil Location with a nil error means
// the address is unknown or not routable.
type Geolocator interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}
