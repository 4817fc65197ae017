package alert

import (
	"fmt"
	"slices"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/telemetry"
	"github.com/google/uuid"
)

// Event is one alert to present to the user.
type Event struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Direction string    `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

// Message renders the notification text, e.g. "High CPU Usage: 85.0%".
func (e Event) Message() string {
	level := "High"
	if e.Direction == Below.String() {
		level = "Low"
	}

	label := telemetry.Label(e.Metric)
	if telemetry.IsUsage(e.Metric) {
		label += " Usage"
	}

	return fmt.Sprintf("%s %s: %s", level, label, telemetry.Format(e.Metric, e.Value))
}

// State remembers when each alert key last fired. It is owned by a single
// writer and is not safe for concurrent use.
type State struct {
	lastAlertAt map[string]time.Time
}

func NewState() *State {
	return &State{lastAlertAt: make(map[string]time.Time)}
}

// LastAlertAt returns when key last fired.
func (s *State) LastAlertAt(key string) (time.Time, bool) {
	t, ok := s.lastAlertAt[key]
	return t, ok
}

func (s *State) eligible(key string, now time.Time, cooldown time.Duration) bool {
	last, ok := s.lastAlertAt[key]
	if !ok {
		return true
	}

	return now.Sub(last) > cooldown
}

// Evaluate checks rec against cfg and returns the alerts to emit, updating
// st for every emitted alert. Only connected records are evaluated. The
// record timestamp is the clock used for cooldowns.
func Evaluate(rec telemetry.Record, cfg Config, st *State) []Event {
	if rec.Status() != telemetry.Connected {
		return nil
	}

	now := rec.Timestamp()
	var events []Event

	for _, th := range cfg.Thresholds {
		v, ok := rec.Value(th.Metric)
		if !ok || !th.Breached(v) {
			continue
		}

		key := th.Key()
		cooldownKey := key
		if cfg.Scope == Global {
			cooldownKey = globalKey
		}
		if !st.eligible(cooldownKey, now, cfg.Cooldown) {
			continue
		}

		st.lastAlertAt[cooldownKey] = now
		events = append(events, Event{
			ID:        uuid.NewString(),
			Key:       key,
			Metric:    th.Metric,
			Value:     v,
			Threshold: th.Limit,
			Direction: th.Direction.String(),
			Timestamp: now,
		})

		if cfg.Mode == FirstBreach {
			break
		}
	}

	return events
}

// SortByPriority orders thresholds by Priority, then by metric name.
func SortByPriority(ths []Threshold) {
	rank := func(metric string) int {
		if i := slices.Index(Priority, metric); i >= 0 {
			return i
		}
		return len(Priority)
	}

	slices.SortStableFunc(ths, func(a, b Threshold) int {
		ra, rb := rank(a.Metric), rank(b.Metric)
		if ra != rb {
			return ra - rb
		}
		switch {
		case a.Metric < b.Metric:
			return -1
		case a.Metric > b.Metric:
			return 1
		default:
			return int(a.Direction) - int(b.Direction)
		}
	})
}
