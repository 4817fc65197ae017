package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultPath    = "/data"
	maxBodyBytes   = 1 << 20
)

// DefaultFields are the sensor readings extracted from the JSON payload.
var DefaultFields = []string{
	telemetry.MetricTemperature,
	telemetry.MetricPressure,
	telemetry.MetricAltitude,
}

// HTTPConfig describes one sensor endpoint.
type HTTPConfig struct {
	Endpoint string
	Path     string
	Timeout  time.Duration
	Fields   []string
}

// HTTP fetches a JSON object from a sensor endpoint.
type HTTP struct {
	url    string
	fields []string
	client *http.Client
	now    func() time.Time
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	errFactory := errors.New()

	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errFactory.WithData(errors.ErrInvalidConfig, "empty endpoint")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	fields := cfg.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}

	return &HTTP{
		url:    BuildURL(cfg.Endpoint, cfg.Path),
		fields: fields,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}, nil
}

// BuildURL joins an endpoint (a bare host or a base URL) and a path.
func BuildURL(endpoint, path string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return base + path
}

func (h *HTTP) URL() string {
	return h.url
}

func (h *HTTP) Sample(ctx context.Context) (telemetry.Record, error) {
	errFactory := errors.New()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return telemetry.Failed(h.now(), telemetry.Unreachable), errFactory.Wrap(errors.ErrNetworkUnreachable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return telemetry.Failed(h.now(), telemetry.Unreachable), errFactory.Wrap(errors.ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return telemetry.Failed(h.now(), telemetry.ProtocolError),
			errFactory.WithData(errors.ErrProtocol, fmt.Sprintf("status %d", resp.StatusCode))
	}

	var payload map[string]any
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return telemetry.Failed(h.now(), telemetry.Unreachable), errFactory.Wrap(errors.ErrNetworkUnreachable, err)
		}
		return telemetry.Failed(h.now(), telemetry.ProtocolError), errFactory.Wrap(errors.ErrProtocol, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err != nil && (ctx.Err() != nil || isTimeout(err)) {
			return telemetry.Failed(h.now(), telemetry.Unreachable), errFactory.Wrap(errors.ErrNetworkUnreachable, err)
		}
		return telemetry.Failed(h.now(), telemetry.ProtocolError), errFactory.WithData(errors.ErrProtocol, "trailing data after JSON object")
	}
	if payload == nil {
		return telemetry.Failed(h.now(), telemetry.ProtocolError), errFactory.WithData(errors.ErrProtocol, "body is not a JSON object")
	}

	metrics := make(map[string]float64, len(h.fields))
	for _, name := range h.fields {
		if v, ok := payload[name].(float64); ok {
			metrics[name] = v
		}
	}

	return telemetry.NewRecord(h.now(), telemetry.Connected, metrics), nil
}

// isTimeout reports whether err is a client or transport timeout. The
// client timeout does not cancel the request context.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
