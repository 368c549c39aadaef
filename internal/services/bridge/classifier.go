package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeonardoBeccarini/plant-bridge/internal/model"
	msg "github.com/LeonardoBeccarini/plant-bridge/internal/model/messages"
)

var ErrMalformed = errors.New("malformed payload")

// MalformedPayloadError carries the raw bytes of a payload that could not be classified.
type MalformedPayloadError struct {
	Raw    []byte
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed payload: %s: %v", e.Reason, e.Err)
	}
	return "malformed payload: " + e.Reason
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

func (e *MalformedPayloadError) Is(target error) bool { return target == ErrMalformed }

func malformed(raw []byte, reason string, err error) error {
	return &MalformedPayloadError{Raw: append([]byte(nil), raw...), Reason: reason, Err: err}
}

// Classify maps a raw payload from the status topic to a status update, a device
// event or the liveness announcement. It has no side effects; the returned
// StatusUpdate has a zero ReceivedAt.
func Classify(raw []byte) (model.Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if string(trimmed) == msg.LivenessToken {
		return model.DeviceOnline{}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, malformed(raw, "decode", err)
	}
	if probe == nil {
		return nil, malformed(raw, "not an object", nil)
	}

	if _, ok := probe["event"]; ok {
		return classifyEvent(raw, trimmed)
	}
	return classifyStatus(raw, trimmed)
}

// eventFields is msg.EventMessage with "type" left raw: any value other than
// the string "manual" means an automatic activation.
type eventFields struct {
	Event   string          `json:"event"`
	Type    json.RawMessage `json:"type"`
	Seconds *int            `json:"seconds"`
}

func pumpMode(raw json.RawMessage) model.PumpMode {
	var t string
	if err := json.Unmarshal(raw, &t); err == nil && t == string(model.PumpManual) {
		return model.PumpManual
	}
	return model.PumpAutomatic
}

func classifyEvent(raw, body []byte) (model.Message, error) {
	var e eventFields
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, malformed(raw, "decode event", err)
	}
	switch e.Event {
	case msg.EventPumpActivated:
		return model.PumpActivated{Mode: pumpMode(e.Type)}, nil
	case msg.EventPumpCooldown:
		secs := 0
		if e.Seconds != nil {
			secs = *e.Seconds
		}
		if secs < 0 {
			return nil, malformed(raw, fmt.Sprintf("negative cooldown %d", secs), nil)
		}
		return model.PumpCooldown{SecondsRemaining: secs}, nil
	case msg.EventPumpEnabled:
		return model.PumpServiceEnabled{}, nil
	case msg.EventPumpDisabled:
		return model.PumpServiceDisabled{}, nil
	default:
		return nil, malformed(raw, fmt.Sprintf("unknown event %q", e.Event), nil)
	}
}

func classifyStatus(raw, body []byte) (model.Message, error) {
	var s msg.StatusMessage
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, malformed(raw, "decode status", err)
	}
	snap := model.StatusSnapshot{
		Temperature:  s.Temperature,
		Humidity:     s.Humidity,
		SoilMoisture: s.SoilMoisture,
		SoilState:    model.SoilUnknown,
		PumpEnabled:  true,
	}
	if s.Status != nil {
		snap.SoilState = model.ParseSoilState(*s.Status)
	}
	if s.PumpEnabled != nil {
		snap.PumpEnabled = *s.PumpEnabled
	}
	return model.StatusUpdate{Snapshot: snap}, nil
}
