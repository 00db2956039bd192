package config

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Host:     "0.0.0.0",
			Port:     8000,
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Path:        "workspace",
			Autorefresh: boolPtr(true),
			Index:       boolPtr(true),
		},
		Output: OutputConfig{
			DefaultFormat: "yaml",
		},
	}
}

func boolPtr(b bool) *bool { return &b }

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}

	result.Service = mergeServiceConfig(loaded.Service, defaults.Service)
	result.Storage = mergeStorageConfig(loaded.Storage, defaults.Storage)

	// Secrets have no default.
	result.Security = loaded.Security

	result.Output = mergeOutputConfig(loaded.Output, defaults.Output)

	return result
}

func mergeServiceConfig(loaded, defaults ServiceConfig) ServiceConfig {
	result := defaults

	if loaded.Host != "" {
		result.Host = loaded.Host
	}
	if loaded.Port != 0 {
		result.Port = loaded.Port
	}
	if loaded.LogLevel != "" {
		result.LogLevel = loaded.LogLevel
	}

	return result
}

func mergeStorageConfig(loaded, defaults StorageConfig) StorageConfig {
	result := defaults

	if loaded.Path != "" {
		result.Path = loaded.Path
	}

	// Booleans are pointers so an explicit false survives the merge.
	if loaded.Autorefresh != nil {
		result.Autorefresh = loaded.Autorefresh
	}
	if loaded.Index != nil {
		result.Index = loaded.Index
	}

	return result
}

func mergeOutputConfig(loaded, defaults OutputConfig) OutputConfig {
	result := defaults

	if loaded.DefaultFormat != "" {
		result.DefaultFormat = loaded.DefaultFormat
	}

	return result
}

// ValidFormats lists the valid values for output format
var ValidFormats = []string{"yaml", "json", "table"}

// IsValidFormat checks if the given format value is valid
func IsValidFormat(format string) bool {
	for _, valid := range ValidFormats {
		if format == valid {
			return true
		}
	}
	return false
}
