package errors_test

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/sensorpoll/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrProtocol)
	assert.Equal(t, "Unexpected response from metrics source", err.Error())

	err = errFactory.Wrap(errors.ErrNetworkUnreachable, stderrors.New("connection refused"))
	assert.Equal(t, "Metrics source unreachable: connection refused", err.Error())

	err = errFactory.WithData(errors.ErrInvalidInterval, "abc")
	assert.Equal(t, "Invalid interval value: abc", err.Error())

	err = errFactory.WithMessage(errors.ErrInvalidConfig, "endpoint is empty")
	assert.Equal(t, "endpoint is empty", err.Error())
}

func TestUnknownCodeFallsBackToCode(t *testing.T) {
	err := errors.New().New(errors.ErrorCode("custom_code"))
	assert.Equal(t, "custom_code", err.Error())
}

func TestCodeOfAndHasCode(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.WithData(errors.ErrInvalidInterval, "abc")
	outer := errFactory.Wrap(errors.ErrInvalidConfig, inner)

	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(outer))
	assert.True(t, errors.HasCode(outer, errors.ErrInvalidInterval))
	assert.False(t, errors.HasCode(outer, errors.ErrProtocol))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(stderrors.New("plain")))
}

func TestIsMatchesByCode(t *testing.T) {
	errFactory := errors.New()
	err := errFactory.Wrap(errors.ErrProtocol, stderrors.New("status 500"))

	require.ErrorIs(t, err, errFactory.New(errors.ErrProtocol))
	assert.NotErrorIs(t, err, errFactory.New(errors.ErrNetworkUnreachable))
}

func TestHasCodeSearchesJoinedErrors(t *testing.T) {
	errFactory := errors.New()
	joined := errors.Join(stderrors.New("disk"), errFactory.New(errors.ErrTimeout))
	err := errFactory.Wrap(errors.ErrSampleFailed, joined)

	assert.True(t, errors.HasCode(err, errors.ErrTimeout))
	assert.True(t, errors.HasCode(err, errors.ErrSampleFailed))
	assert.False(t, errors.HasCode(err, errors.ErrProtocol))
}
