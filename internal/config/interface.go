package config

// Overrides carries raw, user-entered settings values, as typed into a
// settings dialog. Empty fields keep the current value.
type Overrides struct {
	// Endpoint is the sensor host or base URL.
	Endpoint string
	// Interval is the poll interval in seconds ("5", "2.5") or a Go
	// duration ("1m").
	Interval string
	// Timeout is the HTTP request timeout, same syntax as Interval.
	Timeout string
	// Cooldown is the alert cooldown, same syntax as Interval.
	Cooldown string
	// Thresholds maps a metric to ">80", "<980" or "80". An empty value
	// removes the threshold.
	Thresholds map[string]string
}

// IsEmpty reports whether the overrides change nothing.
func (o Overrides) IsEmpty() bool {
	return o.Endpoint == "" && o.Interval == "" && o.Timeout == "" &&
		o.Cooldown == "" && len(o.Thresholds) == 0
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
