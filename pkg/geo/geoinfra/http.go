package geoinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/geo"
	"github.com/cenkalti/backoff/v5"
)

// HTTPGeolocator queries a JSON lookup service. The URL template holds a
// single %s for the IP, e.g. http://ip-api.com/json/%s.
type HTTPGeolocator struct {
	client      *http.Client
	urlTemplate string
	maxTries    uint
}

var _ geo.Geolocator = (*HTTPGeolocator)(nil)

func NewHTTPGeolocator(urlTemplate string, timeout time.Duration, maxRetries int) *HTTPGeolocator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPGeolocator{
		client:      &http.Client{Timeout: timeout},
		urlTemplate: urlTemplate,
		maxTries:    uint(maxRetries) + 1,
	}
}

type lookupResponse struct {
	Status     string  `json:"status"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// Lookup skips private and loopback addresses. Server errors are retried
// with exponential backoff; client errors are not.
func (g *HTTPGeolocator) Lookup(ctx context.Context, ip string) (*geo.Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return nil, nil
	}
	endpoint := fmt.Sprintf(g.urlTemplate, url.PathEscape(ip))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond

	resp, err := backoff.Retry(ctx, func() (*lookupResponse, error) {
		return g.fetch(ctx, endpoint)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(g.maxTries))
	if err != nil {
		return nil, errx.Wrap(err, "geolocation lookup failed", errx.TypeExternal).
			WithDetail("ip", ip)
	}
	if resp.Status != "" && !strings.EqualFold(resp.Status, "success") {
		return nil, nil
	}
	return &geo.Location{
		Country: resp.Country,
		Region:  resp.RegionName,
		City:    resp.City,
		Lat:     resp.Lat,
		Lon:     resp.Lon,
	}, nil
}

func (g *HTTPGeolocator) fetch(ctx context.Context, endpoint string) (*lookupResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("geolocation service returned %d", res.StatusCode)
	case res.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("geolocation service returned %d", res.StatusCode))
	}

	var out lookupResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, backoff.Permanent(err)
	}
	return &out, nil
}
