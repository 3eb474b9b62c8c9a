package servo

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

const (
	// PCA9685Address is the factory I2C address of the board.
	PCA9685Address = 0x40

	// PCA9685Channels is the number of PWM outputs on one board.
	PCA9685Channels = 16

	pca9685Resolution = 4096
)

// PCA9685Config describes a PCA9685 board on an I2C bus.
type PCA9685Config struct {
	Bus         string // empty selects the first available bus
	Address     uint16
	Channels    int
	FrequencyHz int
	Calibration Calibration
}

// PCA9685Driver drives hobby servos through a PCA9685 16-channel PWM board.
type PCA9685Driver struct {
	bus  i2c.BusCloser
	dev  *pca9685.Dev
	cfg  PCA9685Config
	freq physic.Frequency
}

// NewPCA9685Driver opens the I2C bus and configures the board for servo PWM.
func NewPCA9685Driver(cfg PCA9685Config) (*PCA9685Driver, error) {
	if cfg.Address == 0 {
		cfg.Address = PCA9685Address
	}
	if cfg.Channels <= 0 || cfg.Channels > PCA9685Channels {
		cfg.Channels = PCA9685Channels
	}
	if cfg.FrequencyHz <= 0 {
		cfg.FrequencyHz = 50
	}
	if cfg.Calibration == (Calibration{}) {
		cfg.Calibration = DefaultCalibration()
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}

	dev, err := pca9685.NewI2C(bus, cfg.Address)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open pca9685 at %#x: %w", cfg.Address, err)
	}

	freq := physic.Frequency(cfg.FrequencyHz) * physic.Hertz
	if err := dev.SetPwmFreq(freq); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set pwm frequency: %w", err)
	}

	return &PCA9685Driver{
		bus:  bus,
		dev:  dev,
		cfg:  cfg,
		freq: freq,
	}, nil
}

func (d *PCA9685Driver) Channels() int {
	return d.cfg.Channels
}

func (d *PCA9685Driver) SetAngle(_ context.Context, channel int, angle float64) error {
	pulse := d.cfg.Calibration.PulseWidth(angle)
	off := Ticks(pulse, d.freq.Period(), pca9685Resolution)
	return d.dev.SetPwm(channel, 0, gpio.Duty(off))
}

func (d *PCA9685Driver) Disable(_ context.Context, channel int) error {
	return d.dev.SetFullOff(channel)
}

func (d *PCA9685Driver) Close() error {
	return d.bus.Close()
}
