package config

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
)

// Metrics sources
const (
	SourceHTTP = "http"
	SourceHost = "host"
	SourceGPU  = "gpu"
)

// Alert options
const (
	AlertModeFirst      = "first"
	AlertModeAll        = "all"
	CooldownScopeKey    = "key"
	CooldownScopeGlobal = "global"
)

// Settings is the typed runtime configuration of one poller. A value is
// never modified after validation; updates produce a new value.
type Settings struct {
	Source   string
	Endpoint string
	Path     string
	Fields   []string
	DiskPath string
	Interval time.Duration
	Timeout  time.Duration
	Alerts   alert.Config
}

// DefaultInterval returns the poll interval used when none is configured.
func DefaultInterval(source string) time.Duration {
	switch source {
	case SourceHost:
		return 5 * time.Second
	case SourceGPU:
		return 2 * time.Second
	default:
		return time.Second
	}
}

// DefaultThresholds returns the alert limits of a source.
func DefaultThresholds(source string) []alert.Threshold {
	ths := alert.DefaultThresholds()
	if source == SourceGPU {
		ths = append(ths, alert.Threshold{
			Metric:    telemetry.MetricTemperature,
			Limit:     alert.DefaultLimit,
			Direction: alert.Above,
		})
	}

	return ths
}

func DefaultSettings(source string) Settings {
	return Settings{
		Source:   source,
		Endpoint: DefaultEndpoint,
		Path:     DefaultPath,
		DiskPath: "/",
		Interval: DefaultInterval(source),
		Timeout:  DefaultTimeout * time.Second,
		Alerts: alert.Config{
			Thresholds: DefaultThresholds(source),
			Cooldown:   DefaultCooldown * time.Second,
		},
	}
}

// Settings converts the loaded configuration into validated Settings.
func (c *Config) Settings() (Settings, error) {
	errFactory := errors.New()

	source := strings.ToLower(c.Source)
	s := DefaultSettings(source)
	s.Endpoint = c.Endpoint
	s.Path = c.Path
	s.Fields = slices.Clone(c.Fields)
	s.DiskPath = c.DiskPath

	if c.Interval < 0 {
		return Settings{}, errFactory.Wrap(errors.ErrInvalidConfig,
			errFactory.WithData(errors.ErrInvalidInterval, c.Interval))
	}
	if c.Interval > 0 {
		s.Interval = time.Duration(c.Interval) * time.Second
	}
	s.Timeout = time.Duration(c.Timeout) * time.Second
	s.Alerts.Cooldown = time.Duration(c.Cooldown) * time.Second

	switch strings.ToLower(c.AlertMode) {
	case "", AlertModeFirst:
		s.Alerts.Mode = alert.FirstBreach
	case AlertModeAll:
		s.Alerts.Mode = alert.AllBreaches
	default:
		return Settings{}, errFactory.WithData(errors.ErrInvalidConfig, "alert_mode="+c.AlertMode)
	}

	switch strings.ToLower(c.CooldownScope) {
	case "", CooldownScopeKey:
		s.Alerts.Scope = alert.PerKey
	case CooldownScopeGlobal:
		s.Alerts.Scope = alert.Global
	default:
		return Settings{}, errFactory.WithData(errors.ErrInvalidConfig, "cooldown_scope="+c.CooldownScope)
	}

	if len(c.Thresholds) > 0 {
		ths, err := parseThresholds(c.Thresholds)
		if err != nil {
			return Settings{}, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
		s.Alerts.Thresholds = ths
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// Validate checks the settings as a whole.
func (s Settings) Validate() error {
	errFactory := errors.New()

	switch s.Source {
	case SourceHTTP:
		if strings.TrimSpace(s.Endpoint) == "" {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "endpoint must not be empty")
		}
		if s.Timeout <= 0 {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "timeout must be positive")
		}
	case SourceHost, SourceGPU:
	default:
		return errFactory.Wrap(errors.ErrInvalidConfig, errFactory.WithData(errors.ErrInvalidSource, s.Source))
	}

	if s.Interval <= 0 {
		return errFactory.Wrap(errors.ErrInvalidConfig, errFactory.WithData(errors.ErrInvalidInterval, s.Interval))
	}

	if err := s.Alerts.Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return nil
}

// Apply returns a copy of s with the overrides applied. Nothing is applied
// unless every override parses and the result validates.
func (s Settings) Apply(o Overrides) (Settings, error) {
	errFactory := errors.New()
	next := s.clone()

	if o.Endpoint != "" {
		next.Endpoint = strings.TrimSpace(o.Endpoint)
	}

	if o.Interval != "" {
		d, err := ParseSeconds(o.Interval)
		if err != nil {
			return s, errFactory.Wrap(errors.ErrInvalidConfig, errFactory.WithData(errors.ErrInvalidInterval, o.Interval))
		}
		next.Interval = d
	}

	if o.Timeout != "" {
		d, err := ParseSeconds(o.Timeout)
		if err != nil {
			return s, errFactory.WithData(errors.ErrInvalidConfig, "timeout="+o.Timeout)
		}
		next.Timeout = d
	}

	if o.Cooldown != "" {
		d, err := ParseSeconds(o.Cooldown)
		if err != nil {
			return s, errFactory.WithData(errors.ErrInvalidConfig, "cooldown="+o.Cooldown)
		}
		next.Alerts.Cooldown = d
	}

	if len(o.Thresholds) > 0 {
		ths, err := mergeThresholds(next.Alerts.Thresholds, o.Thresholds)
		if err != nil {
			return s, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
		next.Alerts.Thresholds = ths
	}

	if err := next.Validate(); err != nil {
		return s, err
	}

	return next, nil
}

func (s Settings) clone() Settings {
	c := s
	c.Fields = slices.Clone(s.Fields)
	c.Alerts.Thresholds = slices.Clone(s.Alerts.Thresholds)

	return c
}

// ParseSeconds parses "5", "2.5" (seconds) or a Go duration such as "1m".
// The result must be positive.
func ParseSeconds(raw string) (time.Duration, error) {
	errFactory := errors.New()
	s := strings.TrimSpace(raw)

	var d time.Duration
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else if parsed, err := time.ParseDuration(s); err == nil {
		d = parsed
	} else {
		return 0, errFactory.WithData(errors.ErrInvalidArgument, raw)
	}

	if d <= 0 {
		return 0, errFactory.WithData(errors.ErrInvalidArgument, raw)
	}

	return d, nil
}

func parseThresholds(raw map[string]string) ([]alert.Threshold, error) {
	ths := make([]alert.Threshold, 0, len(raw))
	for metric, expr := range raw {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		th, err := alert.ParseThreshold(strings.ToLower(metric), expr)
		if err != nil {
			return nil, err
		}
		ths = append(ths, th)
	}
	alert.SortByPriority(ths)

	return ths, nil
}

// mergeThresholds replaces the thresholds of the metrics named in raw and
// keeps the others.
func mergeThresholds(current []alert.Threshold, raw map[string]string) ([]alert.Threshold, error) {
	parsed, err := parseThresholds(raw)
	if err != nil {
		return nil, err
	}

	named := make(map[string]bool, len(raw))
	for metric := range raw {
		named[strings.ToLower(metric)] = true
	}

	merged := make([]alert.Threshold, 0, len(current)+len(parsed))
	for _, th := range current {
		if !named[th.Metric] {
			merged = append(merged, th)
		}
	}
	merged = append(merged, parsed...)
	alert.SortByPriority(merged)

	return merged, nil
}
