package models

import (
	"fmt"
	"time"
)

// Statuses produced by the count-based priority rules.
const (
	StatusHeat      = "Heat"
	StatusLoud      = "Loud"
	StatusVibration = "Vibration"
	StatusMotion    = "Motion"
	StatusNormal    = "Normal"
)

// Decision is the single arbitration output for one cycle. It carries no
// memory: every cycle produces a fresh Decision from that cycle's counts and
// scores alone.
type Decision struct {
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
	AlertActive bool    `json:"alert_active"`
}

// DisplayLines returns the two-line hardware display rendering: the status
// label and the confidence to two decimal places.
func (d Decision) DisplayLines() (string, string) {
	return d.Status, fmt.Sprintf("%.2f", d.Confidence)
}

// Emoji returns the marker used in chat notifications for a status.
func (d Decision) Emoji() string {
	switch d.Status {
	case StatusHeat:
		return "🔥"
	case StatusLoud:
		return "🔊"
	case StatusVibration:
		return "📳"
	case StatusMotion:
		return "🚶"
	case StatusNormal:
		return "✅"
	default:
		return "⚠️"
	}
}

// WindowTelemetry is the per-window summary published to the message broker.
type WindowTelemetry struct {
	DeviceID    string        `json:"device_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Counts      AnomalyCounts `json:"counts"`
	AvgDistance float64       `json:"avg_distance"`
	Baseline    float64       `json:"baseline"`
	Decision    Decision      `json:"decision"`
}

// DecisionRecord is the shape persisted to the decision history store.
type DecisionRecord struct {
	DeviceID    string        `json:"device_id"`
	Status      string        `json:"status"`
	Confidence  float64       `json:"confidence"`
	AlertActive bool          `json:"alert_active"`
	Counts      AnomalyCounts `json:"counts"`
	AvgDistance float64       `json:"avg_distance"`
	Timestamp   time.Time     `json:"timestamp"`
}
