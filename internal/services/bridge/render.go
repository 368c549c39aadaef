package bridge

import (
	"fmt"
	"strconv"

	"github.com/LeonardoBeccarini/plant-bridge/internal/model"
)

var soilEmoji = map[model.SoilState]string{
	model.SoilDry: "🔴",
	model.SoilOK:  "🟢",
	model.SoilWet: "🔵",
}

func reading(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}

// RenderStatus renders a snapshot as the status embed.
func RenderStatus(s model.StatusSnapshot) Notification {
	color := ColorOrange
	if s.SoilState == model.SoilOK {
		color = ColorGreen
	}
	pump := "🔴 Disabled"
	if s.PumpEnabled {
		pump = "🟢 Enabled"
	}
	emoji, ok := soilEmoji[s.SoilState]
	if !ok {
		emoji = "⚪"
	}
	return Notification{Embed: &Embed{
		Title: "🌱 Plant Monitor Status",
		Color: color,
		Fields: []EmbedField{
			{Name: "🌡️ Temperature", Value: reading(s.Temperature, "°C"), Inline: true},
			{Name: "💨 Humidity", Value: reading(s.Humidity, "%"), Inline: true},
			{Name: "💧 Soil Moisture", Value: reading(s.SoilMoisture, "%"), Inline: true},
			{Name: "📊 Soil Status", Value: emoji + " " + string(s.SoilState), Inline: true},
			{Name: "⚙️ Pump Service", Value: pump, Inline: true},
		},
		Footer:    "Last updated",
		Timestamp: s.ReceivedAt,
	}}
}

// RenderStaleStatus renders the last known snapshot when the device did not answer in time.
func RenderStaleStatus(s model.StatusSnapshot) Notification {
	n := RenderStatus(s)
	n.Text = "⏳ The plant monitor did not answer in time, showing the last known status."
	return n
}

const (
	waitingText = "⏳ Waiting for data from the plant monitor... Please try again in a moment."
	onlineText  = "✅ **Plant monitor connected!** The device is online."
)

// RenderEvent renders a device event as a chat notification.
func RenderEvent(ev model.DeviceEvent) Notification {
	switch e := ev.(type) {
	case model.DeviceOnline:
		return Notification{Text: onlineText}
	case model.PumpActivated:
		return Notification{Text: fmt.Sprintf("💧 **Pump Activated!** Your plant has been watered (%s).", e.Mode)}
	case model.PumpCooldown:
		return Notification{Text: fmt.Sprintf("⏳ **Pump on cooldown:** %d seconds remaining. Please wait before watering again.", e.SecondsRemaining)}
	case model.PumpServiceEnabled:
		return Notification{Text: "✅ Pump service enabled"}
	case model.PumpServiceDisabled:
		return Notification{Text: "🛑 Pump service disabled"}
	default:
		return Notification{Text: "ℹ️ Device event: " + ev.EventName()}
	}
}

// RenderHelp lists the chat commands, each shown with prefix.
func RenderHelp(prefix string) Notification {
	return Notification{Embed: &Embed{
		Title:       "🌱 Plant Monitor Commands",
		Description: "Control and monitor your plant system",
		Color:       ColorBlue,
		Fields: []EmbedField{
			{Name: prefix + CmdStatus, Value: "Get current temperature, humidity, and soil moisture"},
			{Name: prefix + CmdWater, Value: "Manually trigger the water pump (one time)"},
			{Name: prefix + CmdPumpOn, Value: "Enable automatic pump service"},
			{Name: prefix + CmdPumpOff, Value: "Disable automatic pump service"},
		},
	}}
}

func withWarning(n Notification, err error) Notification {
	if err == nil {
		return n
	}
	warn := fmt.Sprintf("⚠️ Could not hand the command to the device bus: %v", err)
	if n.Text == "" {
		n.Text = warn
	} else {
		n.Text += "\n" + warn
	}
	return n
}
