package messages

// StatusMessage is the JSON status report published by the device on the status topic.
// Every field is optional on the wire.
type StatusMessage struct {
	Temperature  *float64 `json:"temperature,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	SoilMoisture *float64 `json:"soil_moisture,omitempty"`
	Status       *string  `json:"status,omitempty"` // DRY | OK | WET
	PumpEnabled  *bool    `json:"pump_enabled,omitempty"`
}

// LivenessToken is published verbatim by the device when it connects.
const LivenessToken = "online"
