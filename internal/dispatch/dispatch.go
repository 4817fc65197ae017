// Package dispatch delivers rendered views and alerts to their consumers.
package dispatch

import (
	"context"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/logger"
	"codeberg.org/mutker/sensorpoll/internal/state"
	"codeberg.org/mutker/sensorpoll/internal/view"
)

// Dispatcher presents updates and alerts.
type Dispatcher interface {
	Update(ctx context.Context, v view.View) error
	Alert(ctx context.Context, ev alert.Event) error
}

// Source is the event side of a poller.
type Source interface {
	Updates() <-chan state.Snapshot
	Alerts() <-chan alert.Event
}

// Run renders every update from src with layout and hands it, and every
// alert, to d until ctx is cancelled. Alerts still queued at cancellation
// are delivered before Run returns. Dispatch errors are logged.
func Run(ctx context.Context, src Source, layout view.Layout, d Dispatcher) error {
	updates := src.Updates()
	alerts := src.Alerts()

	for {
		select {
		case <-ctx.Done():
			drainAlerts(context.WithoutCancel(ctx), alerts, d)

			return nil
		case snap := <-updates:
			if err := d.Update(ctx, view.Render(snap, layout)); err != nil {
				logFailure(err, "update")
			}
		case ev := <-alerts:
			if err := d.Alert(ctx, ev); err != nil {
				logFailure(err, "alert")
			}
		}
	}
}

func drainAlerts(ctx context.Context, alerts <-chan alert.Event, d Dispatcher) {
	for {
		select {
		case ev := <-alerts:
			if err := d.Alert(ctx, ev); err != nil {
				logFailure(err, "alert")
			}
		default:
			return
		}
	}
}

func logFailure(err error, kind string) {
	logger.Warn().
		Str("kind", kind).
		Str("error_code", string(errors.CodeOf(err))).
		Err(err).
		Msg("Dispatch failed")
}

// Multi fans out to every dispatcher, joining their errors.
type Multi []Dispatcher

func (m Multi) Update(ctx context.Context, v view.View) error {
	var errs []error
	for _, d := range m {
		if err := d.Update(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m Multi) Alert(ctx context.Context, ev alert.Event) error {
	var errs []error
	for _, d := range m {
		if err := d.Alert(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
