package geoinfra_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/geo/geoinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGeolocatorRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/json/8.8.8.8", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","country":"United States","regionName":"California","city":"Mountain View","lat":37.4,"lon":-122.1}`))
	}))
	t.Cleanup(srv.Close)

	g := geoinfra.NewHTTPGeolocator(srv.URL+"/json/%s", time.Second, 3)
	loc, err := g.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "Mountain View", loc.City)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPGeolocatorDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	g := geoinfra.NewHTTPGeolocator(srv.URL+"/%s", time.Second, 5)
	_, err := g.Lookup(context.Background(), "1.1.1.1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPGeolocatorSkipsPrivateAddresses(t *testing.T) {
	g := geoinfra.NewHTTPGeolocator("http://127.0.0.1:1/%s", time.Second, 0)
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "::1", "not-an-ip"} {
		loc, err := g.Lookup(context.Background(), ip)
		require.NoError(t, err)
		assert.Nil(t, loc, ip)
	}
}
