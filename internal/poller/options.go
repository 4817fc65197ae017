package poller

import "codeberg.org/mutker/sensorpoll/internal/logger"

const defaultAlertBuffer = 16

type Option func(*Poller)

// WithLogger sets the logger; the poller adds its own component field.
func WithLogger(log logger.Logger) Option {
	return func(p *Poller) {
		if log != nil {
			p.log = log.With("poller")
		}
	}
}

func WithClock(clock Clock) Option {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithAlertBuffer sets how many undelivered alert events are held before
// new ones are dropped.
func WithAlertBuffer(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.alertBuffer = n
		}
	}
}
