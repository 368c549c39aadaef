package model

import (
	"github.com/LeonardoBeccarini/plant-bridge/internal/model/entities"
)

// Aliases exposing the common types to the services.

type (
	StatusSnapshot      = entities.StatusSnapshot
	SoilState           = entities.SoilState
	PumpMode            = entities.PumpMode
	Message             = entities.Message
	DeviceEvent         = entities.DeviceEvent
	StatusUpdate        = entities.StatusUpdate
	PumpActivated       = entities.PumpActivated
	PumpCooldown        = entities.PumpCooldown
	PumpServiceEnabled  = entities.PumpServiceEnabled
	PumpServiceDisabled = entities.PumpServiceDisabled
	DeviceOnline        = entities.DeviceOnline
)

const (
	SoilDry     = entities.SoilDry
	SoilOK      = entities.SoilOK
	SoilWet     = entities.SoilWet
	SoilUnknown = entities.SoilUnknown

	PumpManual    = entities.PumpManual
	PumpAutomatic = entities.PumpAutomatic
)

var ParseSoilState = entities.ParseSoilState
