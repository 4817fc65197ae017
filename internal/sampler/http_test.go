package sampler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/sampler"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSensor(t *testing.T, handler http.HandlerFunc) *sampler.HTTP {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := sampler.NewHTTP(sampler.HTTPConfig{Endpoint: srv.URL, Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	return s
}

func TestHTTPSampleConnected(t *testing.T) {
	var gotPath string
	s := newSensor(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"temperature":23.4,"pressure":1012.5,"altitude":100.2}`)
	})

	rec, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/data", gotPath)
	assert.Equal(t, telemetry.Connected, rec.Status())
	assert.Equal(t, map[string]float64{
		"temperature": 23.4,
		"pressure":    1012.5,
		"altitude":    100.2,
	}, rec.Metrics())
	assert.False(t, rec.Timestamp().IsZero())
}

func TestHTTPSamplePartialAndUnknownFields(t *testing.T) {
	s := newSensor(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"temperature":19.5,"pressure":"n/a","humidity":40}`)
	})

	rec, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, telemetry.Connected, rec.Status())
	assert.Equal(t, map[string]float64{"temperature": 19.5}, rec.Metrics())
}

func TestHTTPSampleNon200(t *testing.T) {
	s := newSensor(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	rec, err := s.Sample(context.Background())
	require.Error(t, err)

	assert.Equal(t, errors.ErrProtocol, errors.CodeOf(err))
	assert.Equal(t, telemetry.ProtocolError, rec.Status())
	assert.Equal(t, 0, rec.Len())
}

func TestHTTPSampleMalformedBody(t *testing.T) {
	bodies := []string{
		`{"temperature":`,
		`[1,2,3]`,
		`null`,
		`<html>`,
		`{"temperature":23.4}<html>oops`,
		`{"temperature":23.4}{"temperature":24}`,
	}
	for _, body := range bodies {
		s := newSensor(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, body)
		})

		rec, err := s.Sample(context.Background())
		require.Error(t, err, body)
		assert.Equal(t, errors.ErrProtocol, errors.CodeOf(err), body)
		assert.Equal(t, telemetry.ProtocolError, rec.Status(), body)
		assert.Equal(t, 0, rec.Len(), body)
	}
}

func TestHTTPSampleTimeout(t *testing.T) {
	s := newSensor(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	start := time.Now()
	rec, err := s.Sample(context.Background())
	require.Error(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, errors.ErrNetworkUnreachable, errors.CodeOf(err))
	assert.Equal(t, telemetry.Unreachable, rec.Status())
	assert.Equal(t, 0, rec.Len())
}

func TestHTTPSampleBodyTimeout(t *testing.T) {
	s := newSensor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"temperature":`)
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	start := time.Now()
	rec, err := s.Sample(context.Background())
	require.Error(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, errors.ErrNetworkUnreachable, errors.CodeOf(err))
	assert.Equal(t, telemetry.Unreachable, rec.Status())
	assert.Equal(t, 0, rec.Len())
}

func TestHTTPSampleTrailingWhitespace(t *testing.T) {
	s := newSensor(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "{\"temperature\":21}\n\n")
	})

	rec, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, telemetry.Connected, rec.Status())
	assert.Equal(t, map[string]float64{"temperature": 21}, rec.Metrics())
}

func TestHTTPSampleConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	s, err := sampler.NewHTTP(sampler.HTTPConfig{Endpoint: addr, Timeout: time.Second})
	require.NoError(t, err)

	rec, err := s.Sample(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrNetworkUnreachable, errors.CodeOf(err))
	assert.Equal(t, telemetry.Unreachable, rec.Status())
}

func TestHTTPSampleCancelled(t *testing.T) {
	s := newSensor(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"temperature":1}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := s.Sample(ctx)
	require.Error(t, err)
	assert.Equal(t, telemetry.Unreachable, rec.Status())
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "http://192.168.197.75/data", sampler.BuildURL("192.168.197.75", ""))
	assert.Equal(t, "http://sensor.local:8080/data", sampler.BuildURL("sensor.local:8080/", "data"))
	assert.Equal(t, "https://example.com/api/v1", sampler.BuildURL("https://example.com", "/api/v1"))
}

func TestNewHTTPRejectsEmptyEndpoint(t *testing.T) {
	_, err := sampler.NewHTTP(sampler.HTTPConfig{Endpoint: "  "})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}
