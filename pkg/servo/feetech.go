package servo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

const (
	// Feetech STS servos report 4096 positions per revolution. The 180°
	// puppet range is centered on the middle position.
	feetechCenter      = 2048
	feetechHalfCircle  = 2048
	feetechDefaultBaud = 1_000_000
)

// FeetechConfig describes a Feetech STS servo bus.
type FeetechConfig struct {
	Port     string
	BaudRate int
	Channels int
	Timeout  time.Duration
}

// FeetechDriver drives Feetech bus servos. Channel c is the servo with ID c+1.
type FeetechDriver struct {
	bus      *feetech.Bus
	servos   map[int]*feetech.Servo
	channels int
}

// NewFeetechDriver opens the serial bus, scans for servos and enables torque
// on every servo found.
func NewFeetechDriver(ctx context.Context, cfg FeetechConfig) (*FeetechDriver, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = feetechDefaultBaud
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 6
	}

	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	found, err := bus.Scan(scanCtx, 1, cfg.Channels)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("scan servos: %w", err)
	}
	if len(found) == 0 {
		bus.Close()
		return nil, fmt.Errorf("no servos found on %s", cfg.Port)
	}

	servos := make(map[int]*feetech.Servo, len(found))
	for _, s := range found {
		servo := feetech.NewServo(bus, s.ID, s.Model)
		if err := servo.Enable(ctx); err != nil {
			bus.Close()
			return nil, fmt.Errorf("enable servo %d: %w", s.ID, err)
		}
		servos[s.ID-1] = servo
	}

	return &FeetechDriver{
		bus:      bus,
		servos:   servos,
		channels: cfg.Channels,
	}, nil
}

func (d *FeetechDriver) Channels() int {
	return d.channels
}

func (d *FeetechDriver) SetAngle(ctx context.Context, channel int, angle float64) error {
	servo, ok := d.servos[channel]
	if !ok {
		return fmt.Errorf("no servo on channel %d", channel)
	}
	return servo.SetPosition(ctx, feetechPosition(angle))
}

func (d *FeetechDriver) Disable(ctx context.Context, channel int) error {
	servo, ok := d.servos[channel]
	if !ok {
		return fmt.Errorf("no servo on channel %d", channel)
	}
	return servo.Disable(ctx)
}

// Close disables torque on all servos and closes the bus.
func (d *FeetechDriver) Close() error {
	ctx := context.Background()
	var errs []error
	for _, servo := range d.servos {
		if err := servo.Disable(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func feetechPosition(angle float64) int {
	return feetechCenter + int(math.Round((angle-CenterAngle)/MaxAngle*feetechHalfCircle))
}

// ScanFeetech reports the IDs of Feetech servos answering on port, looking at
// IDs 1 through maxID.
func ScanFeetech(ctx context.Context, port string, maxID int) ([]int, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: feetechDefaultBaud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	found, err := bus.Scan(ctx, 1, maxID)
	if err != nil {
		return nil, fmt.Errorf("scan servos: %w", err)
	}
	ids := make([]int, 0, len(found))
	for _, s := range found {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
