package telemetry

import (
	"maps"
	"slices"
	"time"
)

// Status is the connection health reported with a record.
type Status int

const (
	Connected Status = iota
	Unreachable
	ProtocolError
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case Unreachable:
		return "unreachable"
	case ProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// Well-known metric names.
const (
	MetricTemperature = "temperature"
	MetricPressure    = "pressure"
	MetricAltitude    = "altitude"
	MetricCPU         = "cpu"
	MetricMemory      = "memory"
	MetricDisk        = "disk"
	MetricFan         = "fan"
	MetricPower       = "power"
	MetricUtilization = "utilization"
)

// Record is an immutable snapshot produced by one sample.
type Record struct {
	timestamp time.Time
	status    Status
	metrics   map[string]float64
}

// NewRecord copies metrics so later changes by the caller cannot leak in.
func NewRecord(ts time.Time, status Status, metrics map[string]float64) Record {
	return Record{
		timestamp: ts,
		status:    status,
		metrics:   maps.Clone(metrics),
	}
}

// Failed builds a record without metrics for a degraded sample.
func Failed(ts time.Time, status Status) Record {
	return Record{timestamp: ts, status: status}
}

func (r Record) Timestamp() time.Time {
	return r.timestamp
}

func (r Record) Status() Status {
	return r.status
}

// Value returns the named metric and whether this record carries it.
func (r Record) Value(name string) (float64, bool) {
	v, ok := r.metrics[name]
	return v, ok
}

// Metrics returns a copy of the metric mapping.
func (r Record) Metrics() map[string]float64 {
	if r.metrics == nil {
		return map[string]float64{}
	}

	return maps.Clone(r.metrics)
}

// Names returns the metric names present in the record, sorted.
func (r Record) Names() []string {
	var names []string
	for name := range r.metrics {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

func (r Record) Len() int {
	return len(r.metrics)
}

func (r Record) IsZero() bool {
	return r.timestamp.IsZero() && r.metrics == nil
}
