package entities

// PumpMode tells whether a watering cycle was requested by a user or by the device itself.
type PumpMode string

const (
	PumpManual    PumpMode = "manual"
	PumpAutomatic PumpMode = "automatic"
)

// Message is anything the device can put on the status topic once classified:
// a StatusUpdate or one of the fire-once events below.
type Message interface {
	isMessage()
}

// StatusUpdate carries a complete snapshot; ReceivedAt is stamped by the receiver.
type StatusUpdate struct {
	Snapshot StatusSnapshot
}

// DeviceEvent is a fire-once notification from the device. It is never cached.
type DeviceEvent interface {
	Message
	EventName() string
}

type PumpActivated struct {
	Mode PumpMode
}

type PumpCooldown struct {
	SecondsRemaining int
}

type PumpServiceEnabled struct{}

type PumpServiceDisabled struct{}

// DeviceOnline is the liveness announcement sent after the device (re)connects.
type DeviceOnline struct{}

func (StatusUpdate) isMessage()        {}
func (PumpActivated) isMessage()       {}
func (PumpCooldown) isMessage()        {}
func (PumpServiceEnabled) isMessage()  {}
func (PumpServiceDisabled) isMessage() {}
func (DeviceOnline) isMessage()        {}

func (PumpActivated) EventName() string       { return "pump_activated" }
func (PumpCooldown) EventName() string        { return "pump_cooldown" }
func (PumpServiceEnabled) EventName() string  { return "pump_enabled" }
func (PumpServiceDisabled) EventName() string { return "pump_disabled" }
func (DeviceOnline) EventName() string        { return "online" }
