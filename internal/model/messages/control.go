package messages

// ControlCommand is a literal payload accepted by the device on the control topic.
type ControlCommand string

const (
	ControlStatus      ControlCommand = "STATUS"
	ControlPumpEnable  ControlCommand = "PUMP_ENABLE"
	ControlPumpDisable ControlCommand = "PUMP_DISABLE"
	ControlPumpOn      ControlCommand = "PUMP_ON"
)
