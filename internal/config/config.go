package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sensornet-gateway/internal/logging"
)

// Root configuration for the gateway bridge.
// This mirrors config/gateway.yaml.

type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Storage  StorageConfig  `yaml:"storage"`
	Firmware FirmwareConfig `yaml:"firmware"`
	TimeUnit string         `yaml:"time_unit"` // seconds | milliseconds
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      logging.Config `yaml:"log"`
}

type GatewayConfig struct {
	Type              string          `yaml:"type"` // serial | tcp
	SerialPort        string          `yaml:"serial_port"`
	BaudRate          int             `yaml:"baud_rate"`
	Address           string          `yaml:"address"`
	ReadTimeout       time.Duration   `yaml:"read_timeout"`
	HeartbeatInterval *time.Duration  `yaml:"heartbeat_interval"` // 0 disables
	Reconnect         ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       *bool         `yaml:"jitter"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type FirmwareConfig struct {
	DefaultType    *uint16       `yaml:"default_type"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	VerifyChecksum bool          `yaml:"verify_checksum"`
	Images         []ImageConfig `yaml:"images"`
}

type ImageConfig struct {
	Type    uint16 `yaml:"type"`
	Version uint16 `yaml:"version"`
	Path    string `yaml:"path"`
}

type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

const (
	GatewaySerial = "serial"
	GatewayTCP    = "tcp"

	TimeSeconds      = "seconds"
	TimeMilliseconds = "milliseconds"

	noDefaultFirmware uint16 = 0xFFFF
)

var ErrInvalid = errors.New("config: invalid")

func LoadYAML(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	g := &cfg.Gateway
	if g.BaudRate <= 0 {
		g.BaudRate = 115200
	}
	if g.ReadTimeout <= 0 {
		g.ReadTimeout = time.Second
	}
	if g.HeartbeatInterval == nil {
		d := 5 * time.Minute
		g.HeartbeatInterval = &d
	}
	r := &g.Reconnect
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.Multiplier < 1 {
		r.Multiplier = 2
	}
	if r.Jitter == nil {
		on := true
		r.Jitter = &on
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "data/gateway.sqlite"
	}
	if cfg.Firmware.DefaultType == nil {
		t := noDefaultFirmware
		cfg.Firmware.DefaultType = &t
	}
	if cfg.Firmware.CacheTTL <= 0 {
		cfg.Firmware.CacheTTL = 10 * time.Minute
	}
	if cfg.TimeUnit == "" {
		cfg.TimeUnit = TimeSeconds
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c Config) Validate() error {
	switch c.Gateway.Type {
	case GatewaySerial:
		if c.Gateway.SerialPort == "" {
			return fmt.Errorf("%w: gateway.serial_port is required for a serial gateway", ErrInvalid)
		}
	case GatewayTCP:
		if c.Gateway.Address == "" {
			return fmt.Errorf("%w: gateway.address is required for a tcp gateway", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown gateway.type %q", ErrInvalid, c.Gateway.Type)
	}
	switch c.TimeUnit {
	case TimeSeconds, TimeMilliseconds:
	default:
		return fmt.Errorf("%w: unknown time_unit %q", ErrInvalid, c.TimeUnit)
	}
	for i, img := range c.Firmware.Images {
		if img.Path == "" {
			return fmt.Errorf("%w: firmware.images[%d] has no path", ErrInvalid, i)
		}
	}
	return nil
}
