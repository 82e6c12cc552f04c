package geoinfra

import (
	"context"

	"github.com/Abraxas-365/sentinel/pkg/geo"
)

// NoopGeolocator is used when lookups are disabled
type NoopGeolocator struct{}

var _ geo.Geolocator = NoopGeolocator{}

func (NoopGeolocator) Lookup(context.Context, string) (*geo.Location, error) {
	return nil, nil
}
