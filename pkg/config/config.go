// Package config loads the daemon configuration file.
package config

import (
	"fmt"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
	"os"
	"regexp"
	"strconv"
	"time"
)

const (
	DefaultSocketPath = "/run/klmd.sock"
	DefaultSocketMode = FileMode(0666)

	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Socket   SocketConfig   `yaml:"socket"`
	Device   DeviceConfig   `yaml:"device"`
	State    StateConfig    `yaml:"state"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

type SocketConfig struct {
	Path           string   `yaml:"path"`
	Mode           FileMode `yaml:"mode"`
	RequestTimeout Duration `yaml:"request_timeout"` // negative disables deadlines
}

type DeviceConfig struct {
	Driver string `yaml:"driver"` // auto, ms1563 or virtual
}

type StateConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type ProtocolConfig struct {
	ReportHardwareErrors bool `yaml:"report_hardware_errors"`
}

type MetricsConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

// Duration is a time.Duration written as "5s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// FileMode is a permission mask written in octal, e.g. "0660".
type FileMode os.FileMode

func (m *FileMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := strconv.ParseUint(s, 8, 32)
	if err != nil || parsed > 0777 {
		return fmt.Errorf("invalid file mode %q", s)
	}
	*m = FileMode(parsed)
	return nil
}

func (m FileMode) FileMode() os.FileMode {
	return os.FileMode(m)
}

// Load reads the configuration at path. An empty path searches the XDG config
// dirs for klmd/config.yaml and falls back to defaults when there is none.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		found, err := xdg.SearchConfigFile("klmd/config.yaml")
		if err == nil {
			path = found
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) setDefaults() error {
	if c.Socket.Path == "" {
		c.Socket.Path = DefaultSocketPath
	}
	if c.Socket.Mode == 0 {
		c.Socket.Mode = DefaultSocketMode
	}
	if c.Socket.RequestTimeout == 0 {
		c.Socket.RequestTimeout = Duration(5 * time.Second)
	}
	if c.Socket.RequestTimeout < 0 {
		c.Socket.RequestTimeout = 0
	}

	if c.Device.Driver == "" {
		c.Device.Driver = "auto"
	}

	switch c.State.Backend {
	case "":
		c.State.Backend = BackendFile
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}

	if c.State.Path == "" && c.State.Backend != BackendMemory {
		name := "klmd/state.bin"
		if c.State.Backend == BackendSQLite {
			name = "klmd/state.db"
		}
		path, err := xdg.StateFile(name)
		if err != nil {
			return fmt.Errorf("resolve state path: %w", err)
		}
		c.State.Path = path
	}

	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
