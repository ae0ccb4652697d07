// Package config loads the flight computer configuration from a KEY=VALUE
// file. The Config value is constructed once and handed by ownership to the
// process that uses it; there is no package-level state.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration values for every flight_computer process.
type Config struct {
	// Control loop
	LoopPeriodMS int // nominal tick period in milliseconds

	// Per-axis absolute command limits
	AbsMaxThrottle float64
	AbsMaxRoll     float64
	AbsMaxPitch    float64

	// PID gains: throttle is the altitude axis, roll/pitch the position axes
	ThrottleKP, ThrottleKI, ThrottleKD float64
	RollKP, RollKI, RollKD             float64
	PitchKP, PitchKI, PitchKD          float64

	// Takeoff
	TakeoffAltitude  float64 // meters
	TakeoffThrust    float64 // fallback thrust constant when no voltage is known
	ThrustIntercept  float64 // voltage-compensated thrust = intercept - slope*voltage
	ThrustSlope      float64
	TakeoffRampSteps int

	// Landing
	DescentDecrement float64 // open-loop throttle drop below hover feed-forward

	// Estimation
	FlowSpeedIgnore        float64 // skip flow updates above this |vertical speed|, m/s
	RangeLeverArm          float64 // meters from the rotation axis to the range sensor
	RangeMountAngle        float64 // radians
	RollErrorDivisor       float64
	PitchErrorDivisor      float64
	HorizontalAccelControl bool // feed IMU accelerations into the horizontal predict

	// Command baseline: the frame drifts forward when level, this trims it
	ThrottleTrim float64

	// MQTT
	MQTTBroker          string
	MQTTClientIDCore    string
	MQTTClientIDIMU     string
	MQTTClientIDRange   string
	MQTTClientIDFlow    string
	MQTTClientIDGPS     string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicIMU          string
	TopicRange        string
	TopicRangeRequest string
	TopicFlow         string
	TopicFlowRequest  string
	TopicMode         string
	TopicCommand      string
	TopicState        string
	TopicGPS          string

	// IMU hardware
	IMUSPIDevice      string
	IMUCSPin          string
	IMUAccelRange     byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUGyroRange      byte // 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUSampleInterval int  // milliseconds
	IMUUseMock        bool // publish the mock attitude sway instead of reading hardware

	// Battery monitor (INA219 on I2C)
	BatteryI2CAddr uint16

	// Rangefinder serial
	RangeSerialPort string
	RangeBaudRate   uint

	// Optical flow serial
	FlowSerialPort string
	FlowBaudRate   uint

	// GPS serial
	GPSSerialPort string
	GPSBaudRate   uint

	// Web server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Default returns the calibrated configuration for the stock frame. The
// numeric constants come from flight testing; Load layers the file on top.
func Default() Config {
	return Config{
		LoopPeriodMS: 10,

		AbsMaxThrottle: 150,
		AbsMaxRoll:     100,
		AbsMaxPitch:    150,

		ThrottleKP: 60, ThrottleKI: 0.05, ThrottleKD: 30,
		RollKP: 100, RollKI: 0.005, RollKD: 22,
		PitchKP: 100, PitchKI: 0.005, PitchKD: 22,

		TakeoffAltitude:  1.0,
		TakeoffThrust:    360, // measured at 12.35 V
		ThrustIntercept:  1015,
		ThrustSlope:      60,
		TakeoffRampSteps: 20,

		DescentDecrement: 50,

		FlowSpeedIgnore:   0.8,
		RangeLeverArm:     0.05517, // sensor sits 40mm below, 38mm aft of the axis
		RangeMountAngle:   0.81,
		RollErrorDivisor:  8,
		PitchErrorDivisor: 9,

		ThrottleTrim: -30,

		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDCore:    "flight-core",
		MQTTClientIDIMU:     "flight-imu-producer",
		MQTTClientIDRange:   "flight-range-producer",
		MQTTClientIDFlow:    "flight-flow-producer",
		MQTTClientIDGPS:     "flight-gps-producer",
		MQTTClientIDConsole: "flight-console",
		MQTTClientIDWeb:     "flight-web",
		MQTTClientIDDisplay: "flight-display",

		TopicIMU:          "flight/imu",
		TopicRange:        "flight/range",
		TopicRangeRequest: "flight/range/request",
		TopicFlow:         "flight/flow",
		TopicFlowRequest:  "flight/flow/request",
		TopicMode:         "flight/mode",
		TopicCommand:      "flight/command",
		TopicState:        "flight/state",
		TopicGPS:          "flight/gps",

		IMUSPIDevice:      "/dev/spidev6.0",
		IMUCSPin:          "18",
		IMUAccelRange:     1,
		IMUGyroRange:      1,
		IMUSampleInterval: 10,

		BatteryI2CAddr: 0x40,

		RangeSerialPort: "/dev/ttyAMA1",
		RangeBaudRate:   115200,
		FlowSerialPort:  "/dev/ttyAMA2",
		FlowBaudRate:    115200,
		GPSSerialPort:   "/dev/serial0",
		GPSBaudRate:     9600,

		WebServerPort: 8080,

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file on top of the defaults.
func Load(configPath string) (Config, error) {
	cfg := Default()

	file, err := os.Open(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return Config{}, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return Config{}, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Control loop
	case "LOOP_PERIOD_MS":
		return setInt(&c.LoopPeriodMS, key, value)
	case "ABS_MAX_VALUE_THROTTLE":
		return setFloat(&c.AbsMaxThrottle, key, value)
	case "ABS_MAX_VALUE_ROLL":
		return setFloat(&c.AbsMaxRoll, key, value)
	case "ABS_MAX_VALUE_PITCH":
		return setFloat(&c.AbsMaxPitch, key, value)

	// Gains
	case "THROTTLE_KP":
		return setFloat(&c.ThrottleKP, key, value)
	case "THROTTLE_KI":
		return setFloat(&c.ThrottleKI, key, value)
	case "THROTTLE_KD":
		return setFloat(&c.ThrottleKD, key, value)
	case "ROLL_KP":
		return setFloat(&c.RollKP, key, value)
	case "ROLL_KI":
		return setFloat(&c.RollKI, key, value)
	case "ROLL_KD":
		return setFloat(&c.RollKD, key, value)
	case "PITCH_KP":
		return setFloat(&c.PitchKP, key, value)
	case "PITCH_KI":
		return setFloat(&c.PitchKI, key, value)
	case "PITCH_KD":
		return setFloat(&c.PitchKD, key, value)

	// Takeoff and landing
	case "TAKEOFF_ALTITUDE":
		return setFloat(&c.TakeoffAltitude, key, value)
	case "TAKEOFF_THRUST":
		return setFloat(&c.TakeoffThrust, key, value)
	case "THRUST_INTERCEPT":
		return setFloat(&c.ThrustIntercept, key, value)
	case "THRUST_SLOPE":
		return setFloat(&c.ThrustSlope, key, value)
	case "TAKEOFF_RAMP_STEPS":
		return setInt(&c.TakeoffRampSteps, key, value)
	case "DESCENT_DECREMENT":
		return setFloat(&c.DescentDecrement, key, value)

	// Estimation
	case "FLOW_SPEED_IGNORE":
		return setFloat(&c.FlowSpeedIgnore, key, value)
	case "RANGE_LEVER_ARM":
		return setFloat(&c.RangeLeverArm, key, value)
	case "RANGE_MOUNT_ANGLE":
		return setFloat(&c.RangeMountAngle, key, value)
	case "ROLL_ERROR_DIVISOR":
		return setFloat(&c.RollErrorDivisor, key, value)
	case "PITCH_ERROR_DIVISOR":
		return setFloat(&c.PitchErrorDivisor, key, value)
	case "HORIZONTAL_ACCEL_CONTROL":
		return setBool(&c.HorizontalAccelControl, key, value)
	case "THROTTLE_TRIM":
		return setFloat(&c.ThrottleTrim, key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CORE":
		c.MQTTClientIDCore = value
	case "MQTT_CLIENT_ID_IMU":
		c.MQTTClientIDIMU = value
	case "MQTT_CLIENT_ID_RANGE":
		c.MQTTClientIDRange = value
	case "MQTT_CLIENT_ID_FLOW":
		c.MQTTClientIDFlow = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_RANGE":
		c.TopicRange = value
	case "TOPIC_RANGE_REQUEST":
		c.TopicRangeRequest = value
	case "TOPIC_FLOW":
		c.TopicFlow = value
	case "TOPIC_FLOW_REQUEST":
		c.TopicFlowRequest = value
	case "TOPIC_MODE":
		c.TopicMode = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// IMU hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		return setRangeByte(&c.IMUAccelRange, key, value, 3)
	case "IMU_GYRO_RANGE":
		return setRangeByte(&c.IMUGyroRange, key, value, 3)
	case "IMU_SAMPLE_INTERVAL":
		return setInt(&c.IMUSampleInterval, key, value)
	case "IMU_USE_MOCK":
		return setBool(&c.IMUUseMock, key, value)

	// Battery monitor
	case "BATTERY_I2C_ADDR":
		return setAddr(&c.BatteryI2CAddr, key, value)

	// Serial ports
	case "RANGE_SERIAL_PORT":
		c.RangeSerialPort = value
	case "RANGE_BAUD_RATE":
		return setUint(&c.RangeBaudRate, key, value)
	case "FLOW_SERIAL_PORT":
		c.FlowSerialPort = value
	case "FLOW_BAUD_RATE":
		return setUint(&c.FlowBaudRate, key, value)
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		return setUint(&c.GPSBaudRate, key, value)

	// Web server
	case "WEB_SERVER_PORT":
		return setInt(&c.WebServerPort, key, value)

	// Display
	case "DISPLAY_I2C_ADDR":
		return setAddr(&c.DisplayI2CAddr, key, value)
	case "DISPLAY_UPDATE_INTERVAL":
		return setInt(&c.DisplayUpdateInterval, key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func setFloat(dst *float64, key, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func setInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func setUint(dst *uint, key, value string) error {
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = uint(v)
	return nil
}

func setBool(dst *bool, key, value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func setAddr(dst *uint16, key, value string) error {
	v, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = uint16(v)
	return nil
}

func setRangeByte(dst *byte, key, value string, max int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < 0 || v > max {
		return fmt.Errorf("%s must be 0-%d, got %d", key, max, v)
	}
	*dst = byte(v)
	return nil
}

// validate checks that all required fields are sane.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.LoopPeriodMS <= 0 {
		return fmt.Errorf("LOOP_PERIOD_MS must be positive")
	}
	if c.TakeoffRampSteps <= 0 {
		return fmt.Errorf("TAKEOFF_RAMP_STEPS must be positive")
	}
	if c.AbsMaxThrottle <= 0 || c.AbsMaxRoll <= 0 || c.AbsMaxPitch <= 0 {
		return fmt.Errorf("per-axis absolute limits must be positive")
	}
	if c.RollErrorDivisor == 0 || c.PitchErrorDivisor == 0 {
		return fmt.Errorf("error divisors must be non-zero")
	}
	return nil
}
