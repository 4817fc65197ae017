// Package view renders poller snapshots into display strings.
package view

import (
	"codeberg.org/mutker/sensorpoll/internal/config"
	"codeberg.org/mutker/sensorpoll/internal/state"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
)

const (
	StatusConnected    = "Connected"
	StatusFailed       = "Connection Failed"
	StatusHTTPError    = "HTTP Error"
	StatusDisconnected = "Disconnected"

	NotAvailable = "N/A"
	Never        = "Never"

	timeLayout = "15:04:05"
)

// Layout lists the metrics shown, in display order. The first one is the
// title.
type Layout []string

var (
	SensorLayout = Layout{telemetry.MetricTemperature, telemetry.MetricPressure, telemetry.MetricAltitude}
	HostLayout   = Layout{telemetry.MetricCPU, telemetry.MetricMemory, telemetry.MetricDisk}
	GPULayout    = Layout{
		telemetry.MetricTemperature,
		telemetry.MetricUtilization,
		telemetry.MetricFan,
		telemetry.MetricPower,
	}
)

// LayoutFor returns the layout of a metrics source.
func LayoutFor(source string) Layout {
	switch source {
	case config.SourceHost:
		return HostLayout
	case config.SourceGPU:
		return GPULayout
	default:
		return SensorLayout
	}
}

type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func (l Line) String() string {
	return l.Label + ": " + l.Value
}

// View is the presentation of one snapshot.
type View struct {
	Title      string `json:"title"`
	Lines      []Line `json:"lines"`
	Status     string `json:"status"`
	Connected  bool   `json:"connected"`
	LastUpdate string `json:"last_update"`
	Cycle      uint64 `json:"cycle"`
}

// Render builds the view of snap. Metrics missing from the latest record
// are shown as N/A; nothing is carried over from earlier records.
func Render(snap state.Snapshot, layout Layout) View {
	v := View{
		Title:      NotAvailable,
		Lines:      make([]Line, 0, len(layout)),
		Status:     StatusDisconnected,
		LastUpdate: Never,
		Cycle:      snap.Cycle,
	}

	if status, ok := snap.Status(); ok {
		v.Status = StatusText(status)
		v.Connected = status == telemetry.Connected
	}
	if !snap.LastSuccessAt.IsZero() {
		v.LastUpdate = snap.LastSuccessAt.Format(timeLayout)
	}

	for i, metric := range layout {
		value := NotAvailable
		if x, ok := snap.Latest.Value(metric); ok {
			value = telemetry.Format(metric, x)
		}
		if i == 0 {
			v.Title = value
		}
		v.Lines = append(v.Lines, Line{Label: telemetry.Label(metric), Value: value})
	}

	return v
}

// StatusText returns the display text of a connection status.
func StatusText(s telemetry.Status) string {
	switch s {
	case telemetry.Connected:
		return StatusConnected
	case telemetry.ProtocolError:
		return StatusHTTPError
	default:
		return StatusFailed
	}
}

// Text returns every line of the view as shown in a menu.
func (v View) Text() []string {
	out := make([]string, 0, len(v.Lines)+2)
	for _, l := range v.Lines {
		out = append(out, l.String())
	}

	return append(out,
		Line{Label: "Status", Value: v.Status}.String(),
		Line{Label: "Last Update", Value: v.LastUpdate}.String(),
	)
}
