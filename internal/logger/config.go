package logger

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled bool   `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	ConsoleStream  string `yaml:"console_stream"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`
}

// LoggingConfig wraps the Config for YAML parsing
type LoggingConfig struct {
	Logging Config `yaml:"logging"`
}

// DefaultConfig returns the logging setup used when no file is given.
// The console goes to stderr because stdout carries the session itself.
func DefaultConfig() Config {
	return Config{
		Level:          "WARNING",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		ConsoleStream:  "stderr",
		FileEnabled:    false,
		FilePath:       "logs/sockclient.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig loads the logging block of a YAML file over the defaults
// and applies environment variable overrides.
// A missing or unparsable file silently leaves the defaults in place.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			// Decoding into a copy of the defaults keeps unset keys, bools included
			wrapper := LoggingConfig{Logging: config}
			if err := yaml.Unmarshal(data, &wrapper); err == nil {
				config = wrapper.Logging
			}
		}
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Level = logLevel
	}

	if consoleFormat := os.Getenv("LOG_CONSOLE_FORMAT"); consoleFormat != "" {
		config.ConsoleFormat = consoleFormat
	}

	if fileEnabled := os.Getenv("LOG_FILE_ENABLED"); fileEnabled != "" {
		if enabled, err := strconv.ParseBool(fileEnabled); err == nil {
			config.FileEnabled = enabled
		}
	}

	if filePath := os.Getenv("LOG_FILE_PATH"); filePath != "" {
		config.FilePath = filePath
	}

	return config, nil
}
