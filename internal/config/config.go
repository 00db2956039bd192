package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/labstack/gommon/log"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the lens configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the lens configuration directory
const ConfigDirName = ".lens"

// SecretEnv overrides security.secret when set.
const SecretEnv = "LENS_SECRET"

// Config holds all lens configuration
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Storage  StorageConfig  `yaml:"storage"`
	Security SecurityConfig `yaml:"security"`
	Output   OutputConfig   `yaml:"output"`
}

// ServiceConfig holds configuration for the HTTP service
type ServiceConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// Addr returns host:port.
func (s ServiceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds configuration for the workspace on disk
type StorageConfig struct {
	// Path of the workspace directory, relative to the project root.
	Path string `yaml:"path"`

	// Autorefresh watches the workspace for projects added by other writers.
	Autorefresh *bool `yaml:"autorefresh,omitempty"`

	// Index keeps a SQLite index of snapshots in the config directory.
	Index *bool `yaml:"index,omitempty"`
}

// AutorefreshEnabled reports whether autorefresh is on.
func (s StorageConfig) AutorefreshEnabled() bool {
	return s.Autorefresh == nil || *s.Autorefresh
}

// IndexEnabled reports whether the snapshot index is on.
func (s StorageConfig) IndexEnabled() bool {
	return s.Index == nil || *s.Index
}

// SecurityConfig holds the shared secret guarding write access
type SecurityConfig struct {
	Secret string `yaml:"secret,omitempty"`
}

// OutputConfig holds configuration for output formatting
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .lens/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking up
// the directory tree. If no config is found, returns defaults.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		cfg := DefaultConfig()
		applyEnv(cfg)
		return cfg, nil
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults, applies environment overrides and
// validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	applyEnv(merged)

	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

func applyEnv(cfg *Config) {
	if secret, ok := os.LookupEnv(SecretEnv); ok {
		cfg.Security.Secret = secret
	}
}

// FindConfigDir locates the .lens directory by walking up from startDir.
// Returns the path to the .lens directory if found.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .lens directory if it doesn't exist.
// Returns the path to the .lens directory.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// WorkspacePath resolves storage.path against root, the directory holding
// .lens. Absolute paths are returned as is.
func (c *Config) WorkspacePath(root string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(root, c.Storage.Path)
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	if cfg.Service.Port <= 0 || cfg.Service.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d",
			ErrInvalidConfig, cfg.Service.Port)
	}

	if _, ok := ParseLogLevel(cfg.Service.LogLevel); !ok {
		return fmt.Errorf("%w: log_level must be one of %v, got %q",
			ErrInvalidConfig, ValidLogLevels, cfg.Service.LogLevel)
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("%w: storage path must not be empty", ErrInvalidConfig)
	}

	if !IsValidFormat(cfg.Output.DefaultFormat) {
		return fmt.Errorf("%w: default_format must be one of %v, got %q",
			ErrInvalidConfig, ValidFormats, cfg.Output.DefaultFormat)
	}

	return nil
}

// ValidLogLevels lists the accepted values of service.log_level
var ValidLogLevels = []string{"debug", "info", "warn", "error", "off"}

// ParseLogLevel maps a log level name to its gommon level.
func ParseLogLevel(level string) (log.Lvl, bool) {
	switch level {
	case "debug":
		return log.DEBUG, true
	case "info":
		return log.INFO, true
	case "warn":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	case "off":
		return log.OFF, true
	default:
		return log.INFO, false
	}
}

// SaveDefault writes the default configuration to .lens/config.yaml in workDir.
// Creates the .lens directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# lens configuration\n# The security secret can also be set with " + SecretEnv + ".\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}
