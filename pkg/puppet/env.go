package puppet

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvDriver    = "PUPPET_DRIVER"
	EnvI2CBus    = "PUPPET_I2C_BUS"
	EnvPort      = "PUPPET_PORT"
	EnvChannels  = "PUPPET_CHANNELS"
	EnvPoses     = "PUPPET_POSES"
	EnvSequences = "PUPPET_SEQUENCES"
)

// LoadEnv reads the given .env files (".env" when none are given) into the
// process environment. Missing files are not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// GetEnv returns the value of the environment variable named by key, or
// fallback if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// ApplyEnv overrides config fields from PUPPET_* environment variables.
func (c *Config) ApplyEnv() {
	c.Driver.Kind = DriverKind(GetEnv(EnvDriver, string(c.Driver.Kind)))
	c.Driver.Bus = GetEnv(EnvI2CBus, c.Driver.Bus)
	c.Driver.Port = GetEnv(EnvPort, c.Driver.Port)
	if s := os.Getenv(EnvChannels); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			c.Driver.Channels = n
		}
	}
	c.PosesFile = GetEnv(EnvPoses, c.PosesFile)
	c.SequencesFile = GetEnv(EnvSequences, c.SequencesFile)
}
