package state

import (
	"sync"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/telemetry"
)

// Snapshot is the poller state visible to readers.
type Snapshot struct {
	Latest        telemetry.Record
	HasRecord     bool
	LastSuccessAt time.Time
	Cycle         uint64
}

// Status returns the status of the latest record and false before the
// first cycle.
func (s Snapshot) Status() (telemetry.Status, bool) {
	if !s.HasRecord {
		return telemetry.Unreachable, false
	}

	return s.Latest.Status(), true
}

// Stale reports whether no successful sample happened within maxAge of now.
func (s Snapshot) Stale(now time.Time, maxAge time.Duration) bool {
	if s.LastSuccessAt.IsZero() {
		return true
	}

	return now.Sub(s.LastSuccessAt) > maxAge
}

// Transition describes a connection status change caused by a write.
type Transition struct {
	From    telemetry.Status
	To      telemetry.Status
	Initial bool
	Changed bool
}

// Store holds the latest record. Write is called by the poller only; Read
// may be called from any goroutine.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func New() *Store {
	return &Store{}
}

// Write replaces the latest record and returns the resulting snapshot.
func (s *Store) Write(rec telemetry.Record) (Snapshot, Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snap
	next := Snapshot{
		Latest:        rec,
		HasRecord:     true,
		LastSuccessAt: prev.LastSuccessAt,
		Cycle:         prev.Cycle + 1,
	}
	if rec.Status() == telemetry.Connected {
		next.LastSuccessAt = rec.Timestamp()
	}
	s.snap = next

	tr := Transition{To: rec.Status(), Initial: !prev.HasRecord}
	if prev.HasRecord {
		tr.From = prev.Latest.Status()
	}
	tr.Changed = tr.Initial || tr.From != tr.To

	return next, tr
}

// Read returns the latest snapshot.
func (s *Store) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snap
}
