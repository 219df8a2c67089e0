// Package config provides configuration management for maestro.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections.
type Config struct {
	Server        ServerConfig             `mapstructure:"server"`
	Logging       LoggingConfig            `mapstructure:"logging"`
	Process       ProcessConfig            `mapstructure:"process"`
	TabNaming     TabNamingConfig          `mapstructure:"tabNaming"`
	NATS          NATSConfig               `mapstructure:"nats"`
	Settings      SettingsConfig           `mapstructure:"settings"`
	ErrorPatterns ErrorPatternsConfig      `mapstructure:"errorPatterns"`
	Tracing       TracingConfig            `mapstructure:"tracing"`
	Agents        map[string]AgentOverride `mapstructure:"agents"`
	SSHRemotes    []SSHRemote              `mapstructure:"sshRemotes"`
	DataDir       string                   `mapstructure:"dataDir"`
}

// ServerConfig holds HTTP server configuration for maestrod.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ProcessConfig tunes the process manager.
type ProcessConfig struct {
	KillGracePeriodMs int   `mapstructure:"killGracePeriodMs"`
	BufferMaxBytes    int64 `mapstructure:"bufferMaxBytes"`
	RawFlushMs        int   `mapstructure:"rawFlushMs"`
	TerminalCols      int   `mapstructure:"terminalCols"`
	TerminalRows      int   `mapstructure:"terminalRows"`
}

// TabNamingConfig configures the ephemeral tab-naming runner.
type TabNamingConfig struct {
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	Prompt         string `mapstructure:"prompt"` // empty means the built-in prompt
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the
// in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
	SubjectPrefix string `mapstructure:"subjectPrefix"`
}

// SettingsConfig selects the settings store backend.
type SettingsConfig struct {
	Driver   string `mapstructure:"driver"` // memory, sqlite, postgres
	Path     string `mapstructure:"path"`   // sqlite file
	DSN      string `mapstructure:"dsn"`    // postgres
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// ErrorPatternsConfig points at an optional YAML file overriding the
// built-in error pattern tables.
type ErrorPatternsConfig struct {
	OverridePath string `mapstructure:"overridePath"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"serviceName"`
}

// AgentOverride holds per-agent user configuration. CustomEnv entries use the
// KEY=VALUE form so that key case survives viper's key normalization.
type AgentOverride struct {
	Model      string   `mapstructure:"model"`
	CustomArgs string   `mapstructure:"customArgs"`
	CustomEnv  []string `mapstructure:"customEnv"`
	CustomPath string   `mapstructure:"customPath"`
}

// SSHRemote is an SSH execution target definition.
type SSHRemote struct {
	ID             string   `mapstructure:"id"`
	Name           string   `mapstructure:"name"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Username       string   `mapstructure:"username"`
	PrivateKeyPath string   `mapstructure:"privateKeyPath"`
	RemoteEnv      []string `mapstructure:"remoteEnv"`
	Enabled        bool     `mapstructure:"enabled"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// Addr returns host:port for the HTTP listener.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// KillGracePeriod returns the SIGTERM→SIGKILL window.
func (p *ProcessConfig) KillGracePeriod() time.Duration {
	return time.Duration(p.KillGracePeriodMs) * time.Millisecond
}

// RawFlushInterval returns the raw output coalescing window.
func (p *ProcessConfig) RawFlushInterval() time.Duration {
	return time.Duration(p.RawFlushMs) * time.Millisecond
}

// Timeout returns the tab-naming timeout.
func (t *TabNamingConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// ParseEnvList converts KEY=VALUE entries into a map. Entries without '=' are ignored.
func ParseEnvList(entries []string) map[string]string {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".maestro"
	}
	return filepath.Join(home, ".maestro")
}

func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("MAESTRO_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7420)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stderr")

	v.SetDefault("process.killGracePeriodMs", 2000)
	v.SetDefault("process.bufferMaxBytes", 2*1024*1024)
	v.SetDefault("process.rawFlushMs", 50)
	v.SetDefault("process.terminalCols", 120)
	v.SetDefault("process.terminalRows", 40)

	v.SetDefault("tabNaming.timeoutSeconds", 30)
	v.SetDefault("tabNaming.prompt", "")

	// Empty URL means use the in-memory event bus.
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "maestro")
	v.SetDefault("nats.maxReconnects", 10)
	v.SetDefault("nats.subjectPrefix", "maestro")

	v.SetDefault("settings.driver", "memory")
	v.SetDefault("settings.path", "")
	v.SetDefault("settings.dsn", "")
	v.SetDefault("settings.maxConns", 10)
	v.SetDefault("settings.minConns", 2)

	v.SetDefault("errorPatterns.overridePath", "")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.serviceName", "maestrod")

	v.SetDefault("dataDir", defaultDataDir())
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix MAESTRO_ with "." replaced by "_".
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified directory or file, then
// the default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MAESTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not map camelCase keys, so bind the ones people set by hand.
	_ = v.BindEnv("settings.dsn", "MAESTRO_SETTINGS_DSN", "DATABASE_URL")
	_ = v.BindEnv("nats.url", "MAESTRO_NATS_URL", "NATS_URL")
	_ = v.BindEnv("tracing.endpoint", "MAESTRO_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("tabNaming.timeoutSeconds", "MAESTRO_TAB_NAMING_TIMEOUT_SECONDS")
	_ = v.BindEnv("errorPatterns.overridePath", "MAESTRO_ERROR_PATTERNS")

	if configPath != "" && filepath.Ext(configPath) != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configPath != "" {
			v.AddConfigPath(configPath)
		}
		v.AddConfigPath(".")
		v.AddConfigPath(defaultDataDir())
		v.AddConfigPath("/etc/maestro/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks configuration values and collects every problem found.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text, console")
	}

	if cfg.Process.KillGracePeriodMs <= 0 {
		errs = append(errs, "process.killGracePeriodMs must be positive")
	}
	if cfg.Process.BufferMaxBytes <= 0 {
		errs = append(errs, "process.bufferMaxBytes must be positive")
	}
	if cfg.TabNaming.TimeoutSeconds <= 0 {
		errs = append(errs, "tabNaming.timeoutSeconds must be positive")
	}

	switch strings.ToLower(cfg.Settings.Driver) {
	case "memory":
	case "sqlite":
		if cfg.Settings.Path == "" {
			cfg.Settings.Path = filepath.Join(cfg.DataDir, "settings.db")
		}
	case "postgres":
		if cfg.Settings.DSN == "" {
			errs = append(errs, "settings.dsn is required when settings.driver is postgres")
		}
	default:
		errs = append(errs, "settings.driver must be one of: memory, sqlite, postgres")
	}

	seen := make(map[string]bool, len(cfg.SSHRemotes))
	for i, remote := range cfg.SSHRemotes {
		if remote.ID == "" {
			errs = append(errs, fmt.Sprintf("sshRemotes[%d].id is required", i))
			continue
		}
		if seen[remote.ID] {
			errs = append(errs, fmt.Sprintf("sshRemotes[%d].id %q is duplicated", i, remote.ID))
		}
		seen[remote.ID] = true
		if remote.Host == "" {
			errs = append(errs, fmt.Sprintf("sshRemotes[%d].host is required", i))
		}
		if remote.Port < 0 || remote.Port > 65535 {
			errs = append(errs, fmt.Sprintf("sshRemotes[%d].port must be between 0 and 65535", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
