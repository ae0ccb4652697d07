package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ina219"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/flight_computer/internal/config"
)

// BatteryMonitor reads the flight battery bus voltage from an INA219 power
// monitor on I2C. The voltage feeds the takeoff thrust compensation.
type BatteryMonitor struct {
	bus i2c.BusCloser
	dev *ina219.Dev
}

// NewBatteryMonitor opens the default I2C bus and the INA219 at the
// configured address.
func NewBatteryMonitor(cfg config.Config) (*BatteryMonitor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("battery: periph host init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("battery: I2C open: %w", err)
	}

	opts := ina219.DefaultOpts
	opts.Address = int(cfg.BatteryI2CAddr)

	dev, err := ina219.New(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("battery: INA219 init: %w", err)
	}

	return &BatteryMonitor{bus: bus, dev: dev}, nil
}

// Voltage returns the bus voltage in volts.
func (b *BatteryMonitor) Voltage() (float64, error) {
	pm, err := b.dev.Sense()
	if err != nil {
		return 0, fmt.Errorf("battery: sense: %w", err)
	}
	return float64(pm.Voltage) / float64(physic.Volt), nil
}

// Close releases the I2C bus.
func (b *BatteryMonitor) Close() error {
	return b.bus.Close()
}
