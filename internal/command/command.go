package command

// Command is one tick's actuator output. Values are stick-scale offsets for
// the hardware flight controller; each axis is bounded by its configured
// absolute limit before publishing.
type Command struct {
	Throttle float64 `json:"throttle"`
	Roll     float64 `json:"roll"`
	Pitch    float64 `json:"pitch"`
}
