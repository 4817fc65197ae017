package alert

import (
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
)

const (
	DefaultCooldown = 300 * time.Second
	DefaultLimit    = 80
)

// Direction is the side of the limit that counts as a breach.
type Direction int

const (
	Above Direction = iota
	Below
)

func (d Direction) String() string {
	if d == Below {
		return "below"
	}

	return "above"
}

// Mode selects how many breaches a single cycle may report.
type Mode int

const (
	// FirstBreach reports only the highest-priority eligible breach.
	FirstBreach Mode = iota
	// AllBreaches reports every eligible breach.
	AllBreaches
)

// Scope selects how cooldowns are keyed.
type Scope int

const (
	// PerKey tracks a cooldown per alert key.
	PerKey Scope = iota
	// Global shares one cooldown between all keys.
	Global
)

const globalKey = "*"

// Threshold is a limit on one metric.
type Threshold struct {
	Metric    string
	Limit     float64
	Direction Direction
}

// Key identifies the alert raised by the threshold, e.g. "cpu-high".
func (t Threshold) Key() string {
	if t.Direction == Below {
		return t.Metric + "-low"
	}

	return t.Metric + "-high"
}

// Breached compares strictly; a value equal to the limit is not a breach.
func (t Threshold) Breached(v float64) bool {
	if t.Direction == Below {
		return v < t.Limit
	}

	return v > t.Limit
}

// ParseThreshold parses ">80", "<980" or a bare "80" (above).
func ParseThreshold(metric, expr string) (Threshold, error) {
	errFactory := errors.New()

	s := strings.TrimSpace(expr)
	th := Threshold{Metric: metric, Direction: Above}

	switch {
	case strings.HasPrefix(s, ">"):
		s = s[1:]
	case strings.HasPrefix(s, "<"):
		th.Direction = Below
		s = s[1:]
	}

	limit, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || metric == "" {
		return Threshold{}, errFactory.WithData(errors.ErrInvalidThreshold, metric+"="+expr)
	}
	th.Limit = limit

	return th, nil
}

// Config controls evaluation. Thresholds are evaluated in slice order,
// which is the priority order.
type Config struct {
	Thresholds []Threshold
	Cooldown   time.Duration
	Mode       Mode
	Scope      Scope
}

// DefaultThresholds returns the CPU and memory limits.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Metric: telemetry.MetricCPU, Limit: DefaultLimit, Direction: Above},
		{Metric: telemetry.MetricMemory, Limit: DefaultLimit, Direction: Above},
	}
}

func DefaultConfig() Config {
	return Config{
		Thresholds: DefaultThresholds(),
		Cooldown:   DefaultCooldown,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Cooldown < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "negative cooldown")
	}

	seen := make(map[string]bool, len(c.Thresholds))
	for _, th := range c.Thresholds {
		if th.Metric == "" {
			return errFactory.WithData(errors.ErrInvalidThreshold, "empty metric name")
		}
		if seen[th.Key()] {
			return errFactory.WithData(errors.ErrInvalidThreshold, "duplicate threshold "+th.Key())
		}
		seen[th.Key()] = true
	}

	return nil
}

// Priority is the declared evaluation order of well-known metrics.
// Metrics not listed sort after these, alphabetically.
var Priority = []string{
	telemetry.MetricCPU,
	telemetry.MetricMemory,
	telemetry.MetricDisk,
	telemetry.MetricTemperature,
	telemetry.MetricUtilization,
	telemetry.MetricPower,
	telemetry.MetricFan,
	telemetry.MetricPressure,
	telemetry.MetricAltitude,
}
