package telemetry

import (
	"strconv"
	"strings"
)

type unitInfo struct {
	label string
	unit  string
	usage bool
}

var units = map[string]unitInfo{
	MetricTemperature: {label: "Temperature", unit: "°C"},
	MetricPressure:    {label: "Pressure", unit: " hPa"},
	MetricAltitude:    {label: "Altitude", unit: " m"},
	MetricCPU:         {label: "CPU", unit: "%", usage: true},
	MetricMemory:      {label: "Memory", unit: "%", usage: true},
	MetricDisk:        {label: "Disk", unit: "%", usage: true},
	MetricFan:         {label: "Fan", unit: "%"},
	MetricPower:       {label: "Power", unit: " W"},
	MetricUtilization: {label: "GPU", unit: "%", usage: true},
}

// Label returns the display label of a metric. Unknown metrics are
// title-cased.
func Label(name string) string {
	if u, ok := units[name]; ok {
		return u.label
	}
	if name == "" {
		return name
	}

	return strings.ToUpper(name[:1]) + name[1:]
}

// IsUsage reports whether the metric is a utilization percentage.
func IsUsage(name string) bool {
	return units[name].usage
}

// Format renders a value with one decimal and the metric's unit.
func Format(name string, v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + units[name].unit
}
