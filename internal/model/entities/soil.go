package entities

import "strings"

// SoilState is the moisture band reported by the device.
type SoilState string

const (
	SoilDry     SoilState = "DRY"
	SoilOK      SoilState = "OK"
	SoilWet     SoilState = "WET"
	SoilUnknown SoilState = "UNKNOWN"
)

// ParseSoilState maps the device text to a SoilState; anything unrecognised is UNKNOWN.
func ParseSoilState(s string) SoilState {
	switch SoilState(strings.ToUpper(strings.TrimSpace(s))) {
	case SoilDry:
		return SoilDry
	case SoilOK:
		return SoilOK
	case SoilWet:
		return SoilWet
	default:
		return SoilUnknown
	}
}
