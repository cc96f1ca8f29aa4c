package model

import (
	"time"

	"github.com/yanun0323/decimal"
)

// FarmAlert is a pushed alert for one farm.
type FarmAlert struct {
	FarmID   string    `json:"farmId"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Source   string    `json:"source,omitempty"`
	At       time.Time `json:"timestamp,omitzero"`
}

// Critical reports whether the alert needs immediate attention.
func (a FarmAlert) Critical() bool {
	return a.Severity == "critical"
}

// SensorReading is one sampled value from a farm sensor. Values arrive as
// decimal strings so precision survives the wire.
type SensorReading struct {
	FarmID   string          `json:"farmId"`
	SensorID string          `json:"sensorId"`
	Kind     string          `json:"type"`
	Value    decimal.Decimal `json:"value"`
	Unit     string          `json:"unit,omitempty"`
	At       time.Time       `json:"timestamp,omitzero"`
}

// DashboardUpdate carries aggregated counters for the farm dashboard.
type DashboardUpdate struct {
	FarmID       string                     `json:"farmId"`
	Metrics      map[string]decimal.Decimal `json:"metrics,omitempty"`
	ActiveAlerts int                        `json:"activeAlerts"`
	At           time.Time                  `json:"timestamp,omitzero"`
}

// Notification is a user-addressed message.
type Notification struct {
	ID     string    `json:"id"`
	UserID string    `json:"userId"`
	Title  string    `json:"title"`
	Body   string    `json:"body,omitempty"`
	Read   bool      `json:"read"`
	At     time.Time `json:"timestamp,omitzero"`
}

// FarmStatus reports a farm's connectivity and headline state.
type FarmStatus struct {
	FarmID  string    `json:"farmId"`
	Online  bool      `json:"online"`
	Workers int       `json:"workers,omitempty"`
	At      time.Time `json:"timestamp,omitzero"`
}

// RealTimeEvent is the generic envelope for uncategorized pushes.
type RealTimeEvent struct {
	FarmID string         `json:"farmId,omitempty"`
	Kind   string         `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
}
