// Package config provides configuration management for hrserve using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files (.hrserve.yml), environment
// variable overrides with the HRSERVE_ prefix, and validation. It manages the
// bind parameters of the file server, the source watcher with its on-change
// command, and logging output.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultHost                  = "localhost"
	DefaultPort                  = 8000
	DefaultRoot                  = "."
	DefaultMaxConcurrentRequests = 1
	DefaultShutdownTimeout       = 5 * time.Second
	DefaultDebounce              = 300 * time.Millisecond
)

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host                  string        `mapstructure:"host" yaml:"host"`
	Port                  int           `mapstructure:"port" yaml:"port"`
	Root                  string        `mapstructure:"root" yaml:"root"`
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests" yaml:"max_concurrent_requests"`
	AllowedOrigins        []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns host:port as passed to net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Paths    []string      `mapstructure:"paths" yaml:"paths"`
	Command  string        `mapstructure:"command" yaml:"command"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  DefaultHost,
			Port:                  DefaultPort,
			Root:                  DefaultRoot,
			MaxConcurrentRequests: DefaultMaxConcurrentRequests,
			ShutdownTimeout:       DefaultShutdownTimeout,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: DefaultDebounce,
			Ignore:   []string{".git", "node_modules"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every default on v so that IsSet/Get behave
// consistently for keys that never appear in a file or the environment.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.root", d.Server.Root)
	v.SetDefault("server.max_concurrent_requests", d.Server.MaxConcurrentRequests)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle slices set via viper (workaround for viper slice handling)
	if v.IsSet("watch.paths") && len(config.Watch.Paths) == 0 {
		config.Watch.Paths = v.GetStringSlice("watch.paths")
	}
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	// The watcher follows the served directory unless told otherwise.
	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{config.Server.Root}
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
