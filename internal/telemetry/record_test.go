package telemetry_test

import (
	stderrors "errors"
	"testing"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
	"github.com/stretchr/testify/assert"
)

func TestRecordIsolatedFromCallerMap(t *testing.T) {
	metrics := map[string]float64{"temperature": 23.4}
	rec := telemetry.NewRecord(time.Unix(100, 0), telemetry.Connected, metrics)

	metrics["temperature"] = 99
	metrics["pressure"] = 1000

	v, ok := rec.Value("temperature")
	assert.True(t, ok)
	assert.InDelta(t, 23.4, v, 1e-9)
	_, ok = rec.Value("pressure")
	assert.False(t, ok)

	out := rec.Metrics()
	out["temperature"] = 0
	v, _ = rec.Value("temperature")
	assert.InDelta(t, 23.4, v, 1e-9)
}

func TestFailedRecordHasNoMetrics(t *testing.T) {
	rec := telemetry.Failed(time.Unix(100, 0), telemetry.Unreachable)

	assert.Equal(t, telemetry.Unreachable, rec.Status())
	assert.Equal(t, 0, rec.Len())
	assert.Empty(t, rec.Metrics())
	assert.Empty(t, rec.Names())
	assert.False(t, rec.IsZero())
}

func TestStatusOf(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, telemetry.Connected, telemetry.StatusOf(nil))
	assert.Equal(t, telemetry.ProtocolError,
		telemetry.StatusOf(errFactory.Wrap(errors.ErrProtocol, stderrors.New("bad json"))))
	assert.Equal(t, telemetry.Unreachable,
		telemetry.StatusOf(errFactory.Wrap(errors.ErrNetworkUnreachable, stderrors.New("refused"))))
	assert.Equal(t, telemetry.Unreachable, telemetry.StatusOf(stderrors.New("other")))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "connected", telemetry.Connected.String())
	assert.Equal(t, "unreachable", telemetry.Unreachable.String())
	assert.Equal(t, "protocol_error", telemetry.ProtocolError.String())
}
