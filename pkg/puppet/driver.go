package puppet

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial"

	"github.com/gwillem/puppet/pkg/servo"
)

// OpenDriver opens the servo driver described by cfg.
func OpenDriver(ctx context.Context, cfg DriverConfig) (servo.Driver, error) {
	switch cfg.Kind {
	case DriverPCA9685:
		drv, err := servo.NewPCA9685Driver(servo.PCA9685Config{
			Bus:         cfg.Bus,
			Address:     cfg.Address,
			Channels:    cfg.Channels,
			FrequencyHz: cfg.FrequencyHz,
			Calibration: cfg.Calibration(),
		})
		if err != nil {
			return nil, err
		}
		return drv, nil

	case DriverFeetech:
		port := cfg.Port
		if port == "" {
			ports, err := SerialPorts()
			if err != nil {
				return nil, err
			}
			if len(ports) == 0 {
				return nil, fmt.Errorf("no serial ports found")
			}
			port = ports[0]
		}
		drv, err := servo.NewFeetechDriver(ctx, servo.FeetechConfig{
			Port:     port,
			BaudRate: cfg.BaudRate,
			Channels: cfg.Channels,
		})
		if err != nil {
			return nil, err
		}
		return drv, nil

	case DriverSim:
		return servo.NewSimDriver(cfg.Channels), nil
	}
	return nil, fmt.Errorf("unknown driver kind %q", cfg.Kind)
}

// SerialPorts lists serial ports that could host a servo bus.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	var out []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		out = append(out, port)
	}
	return out, nil
}
