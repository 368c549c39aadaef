package entities

import "time"

// StatusSnapshot is the last full status report received from the device.
// Numeric readings are nil when the device did not send them.
type StatusSnapshot struct {
	Temperature  *float64  `json:"temperature"`   // °C
	Humidity     *float64  `json:"humidity"`      // %
	SoilMoisture *float64  `json:"soil_moisture"` // %
	SoilState    SoilState `json:"status"`
	PumpEnabled  bool      `json:"pump_enabled"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Age returns how long ago the snapshot was received, relative to now.
func (s StatusSnapshot) Age(now time.Time) time.Duration {
	if s.ReceivedAt.IsZero() {
		return 0
	}
	return now.Sub(s.ReceivedAt)
}
