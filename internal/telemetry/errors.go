package telemetry

import "codeberg.org/mutker/sensorpoll/internal/errors"

const (
	ErrUnreachable = errors.ErrNetworkUnreachable
	ErrProtocol    = errors.ErrProtocol
	ErrSample      = errors.ErrSampleFailed
)

// StatusOf maps a sampler error to the status a record should carry.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return Connected
	case errors.HasCode(err, ErrProtocol):
		return ProtocolError
	default:
		return Unreachable
	}
}
