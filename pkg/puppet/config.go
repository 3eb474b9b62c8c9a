package puppet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gwillem/puppet/pkg/servo"
)

const DefaultConfigFile = "puppet.json"

// DriverKind selects the servo driver.
type DriverKind string

const (
	DriverPCA9685 DriverKind = "pca9685"
	DriverFeetech DriverKind = "feetech"
	DriverSim     DriverKind = "sim"
)

// Config holds the puppet configuration
type Config struct {
	Driver        DriverConfig `json:"driver"`
	Limbs         []LimbConfig `json:"limbs"`
	PosesFile     string       `json:"poses_file"`
	SequencesFile string       `json:"sequences_file"`
	Timing        TimingConfig `json:"timing"`
}

// DriverConfig describes the servo hardware
type DriverConfig struct {
	Kind        DriverKind `json:"kind"`
	Bus         string     `json:"bus,omitempty"`     // pca9685: I2C bus name
	Address     uint16     `json:"address,omitempty"` // pca9685: I2C address
	Port        string     `json:"port,omitempty"`    // feetech: serial port
	BaudRate    int        `json:"baud_rate,omitempty"`
	Channels    int        `json:"channels"`
	MinPulseUS  int        `json:"min_pulse_us"`
	MaxPulseUS  int        `json:"max_pulse_us"`
	FrequencyHz int        `json:"frequency_hz"`
}

// Calibration returns the pulse range as a servo calibration.
func (d DriverConfig) Calibration() servo.Calibration {
	return servo.Calibration{
		MinPulse: time.Duration(d.MinPulseUS) * time.Microsecond,
		MaxPulse: time.Duration(d.MaxPulseUS) * time.Microsecond,
	}
}

// LimbConfig maps joint names to servo channels for one limb
type LimbConfig struct {
	Name   LimbName          `json:"name"`
	Joints map[JointName]int `json:"joints"`
}

// TimingConfig holds motion delays in milliseconds
type TimingConfig struct {
	StepIntervalMS int `json:"step_interval_ms"`
	SettleMS       int `json:"settle_ms"`
	CompleteMS     int `json:"complete_ms"`
}

// StepInterval returns the pause between intermediate angles of a paced move.
func (t TimingConfig) StepInterval() time.Duration {
	return time.Duration(t.StepIntervalMS) * time.Millisecond
}

// Timing converts the configured delays for use by limbs.
func (t TimingConfig) Timing() Timing {
	timing := DefaultTiming()
	timing.Settle = time.Duration(t.SettleMS) * time.Millisecond
	timing.Complete = time.Duration(t.CompleteMS) * time.Millisecond
	return timing
}

// DefaultConfig returns the wiring of the reference puppet: a PCA9685 with the
// left arm on channels 0-2 and the right arm on channels 3-5.
func DefaultConfig() *Config {
	return &Config{
		Driver: DriverConfig{
			Kind:        DriverPCA9685,
			Address:     servo.PCA9685Address,
			Channels:    servo.PCA9685Channels,
			MinPulseUS:  500,
			MaxPulseUS:  2500,
			FrequencyHz: 50,
		},
		Limbs: []LimbConfig{
			{Name: LeftArm, Joints: map[JointName]int{Shoulder: 0, Elbow: 1, Wrist: 2}},
			{Name: RightArm, Joints: map[JointName]int{Shoulder: 3, Elbow: 4, Wrist: 5}},
		},
		PosesFile:     "poses/basic_poses.json",
		SequencesFile: "sequences/movement_sequences.json",
		Timing: TimingConfig{
			StepIntervalMS: int(servo.DefaultStepInterval / time.Millisecond),
			SettleMS:       500,
			CompleteMS:     500,
		},
	}
}

// LoadConfigFrom loads configuration from a specific file.
// Fields absent from the file keep their default values.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	defaultLimbs := cfg.Limbs
	cfg.Limbs = nil // a file with limbs replaces them, never merges
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Limbs == nil {
		cfg.Limbs = defaultLimbs
	}
	return cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExistsAt returns true if a config file exists at path
func ConfigExistsAt(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Validate checks the driver settings and the limb wiring.
func (c *Config) Validate() error {
	switch c.Driver.Kind {
	case DriverPCA9685, DriverFeetech, DriverSim:
	default:
		return fmt.Errorf("unknown driver kind %q", c.Driver.Kind)
	}
	if c.Driver.Channels <= 0 {
		return fmt.Errorf("driver channels must be positive, got %d", c.Driver.Channels)
	}
	if c.Driver.MinPulseUS >= c.Driver.MaxPulseUS {
		return fmt.Errorf("min pulse %dµs must be below max pulse %dµs", c.Driver.MinPulseUS, c.Driver.MaxPulseUS)
	}
	return validateLimbs(c.Limbs, c.Driver.Channels)
}

// validateLimbs checks that limb names are unique and that every joint sits on
// its own channel within capacity.
func validateLimbs(limbs []LimbConfig, channels int) error {
	seenLimbs := make(map[LimbName]bool, len(limbs))
	owner := make(map[int]string)

	for _, lc := range limbs {
		if lc.Name == "" {
			return fmt.Errorf("limb without a name")
		}
		if seenLimbs[lc.Name] {
			return fmt.Errorf("duplicate limb %q", lc.Name)
		}
		seenLimbs[lc.Name] = true

		for joint, ch := range lc.Joints {
			id := fmt.Sprintf("%s.%s", lc.Name, joint)
			if ch < 0 || ch >= channels {
				return fmt.Errorf("%s: channel %d not in [0, %d)", id, ch, channels)
			}
			if prev, ok := owner[ch]; ok {
				return fmt.Errorf("%s: channel %d already used by %s", id, ch, prev)
			}
			owner[ch] = id
		}
	}
	return nil
}
