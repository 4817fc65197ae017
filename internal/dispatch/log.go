package dispatch

import (
	"context"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/logger"
	"codeberg.org/mutker/sensorpoll/internal/view"
)

// Log writes updates at debug level and alerts as warnings.
type Log struct {
	log logger.Logger
}

func NewLog(log logger.Logger) *Log {
	if log == nil {
		log = logger.Default()
	}

	return &Log{log: log.With("dispatch")}
}

func (l *Log) Update(_ context.Context, v view.View) error {
	ev := l.log.Debug().
		Str("title", v.Title).
		Str("status", v.Status).
		Str("last_update", v.LastUpdate).
		Uint64("cycle", v.Cycle)
	for _, line := range v.Lines {
		ev = ev.Str(line.Label, line.Value)
	}
	ev.Msg("Telemetry updated")

	return nil
}

func (l *Log) Alert(_ context.Context, ev alert.Event) error {
	l.log.Warn().
		Str("id", ev.ID).
		Str("key", ev.Key).
		Float64("value", ev.Value).
		Float64("threshold", ev.Threshold).
		Msg(ev.Message())

	return nil
}
