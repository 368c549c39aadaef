package messages

// Event names carried in the "event" field.
const (
	EventPumpActivated = "pump_activated"
	EventPumpCooldown  = "pump_cooldown"
	EventPumpEnabled   = "pump_enabled"
	EventPumpDisabled  = "pump_disabled"
)

// EventMessage is a one-off device event, e.g. {"event":"pump_cooldown","seconds":7}.
type EventMessage struct {
	Event   string `json:"event"`
	Type    string `json:"type,omitempty"`    // pump_activated: "manual", anything else is automatic
	Seconds *int   `json:"seconds,omitempty"` // pump_cooldown
}
