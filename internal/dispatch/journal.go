package dispatch

import (
	"context"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/view"
)

// Recorder persists alerts; *alertlog.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, ev alert.Event) error
}

// Journal records alerts and ignores updates.
type Journal struct {
	rec Recorder
}

func NewJournal(rec Recorder) *Journal {
	return &Journal{rec: rec}
}

func (*Journal) Update(context.Context, view.View) error {
	return nil
}

func (j *Journal) Alert(ctx context.Context, ev alert.Event) error {
	return j.rec.Record(ctx, ev)
}
