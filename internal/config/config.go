// Package config loads the server configuration.
//
// Precedence (highest to lowest):
//  1. Command line flags explicitly set by the user
//  2. Environment variables (SIGCRAWL_*)
//  3. Configuration file (YAML)
//  4. Default values
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "SIGCRAWL"

const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8888
	DefaultThreads       = 4
	DefaultQuarantineDir = "./quarantine"
	DefaultLogFile       = "server.log"
	DefaultLogLevel      = "INFO"
	DefaultBacklog       = 5
	DefaultQueueSize     = 64
)

// ServerConfig is immutable once loaded and is passed around by value.
type ServerConfig struct {
	Host          string `mapstructure:"host" validate:"required" yaml:"host"`
	Port          int    `mapstructure:"port" validate:"gte=0,lte=65535" yaml:"port"`
	Threads       int    `mapstructure:"threads" validate:"gte=1" yaml:"threads"`
	QuarantineDir string `mapstructure:"quarantine" validate:"required" yaml:"quarantine"`

	// Logging enables the log file. When false every log record is dropped.
	Logging  bool   `mapstructure:"logging" yaml:"logging"`
	LogFile  string `mapstructure:"log_file" validate:"required_if=Logging true" yaml:"log_file"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"log_level"`

	// Backlog is the listen queue length requested from the kernel.
	Backlog int `mapstructure:"backlog" validate:"gte=1" yaml:"backlog"`
	// QueueSize bounds the connections accepted but not yet picked by a worker.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0" yaml:"queue_size"`

	// MetricsAddr is the listen address of the Prometheus endpoint. Empty disables it.
	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port" yaml:"metrics_addr"`
}

// Addr returns the host:port pair the server binds to.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LogPath returns the log file path, or an empty string when logging is disabled.
func (c ServerConfig) LogPath() string {
	if !c.Logging {
		return ""
	}
	return c.LogFile
}

// Default returns the configuration used when nothing else is specified.
func Default() ServerConfig {
	return ServerConfig{
		Host:          DefaultHost,
		Port:          DefaultPort,
		Threads:       DefaultThreads,
		QuarantineDir: DefaultQuarantineDir,
		LogFile:       DefaultLogFile,
		LogLevel:      DefaultLogLevel,
		Backlog:       DefaultBacklog,
		QueueSize:     DefaultQueueSize,
	}
}

// flagNames maps configuration keys to the serve command flags.
var flagNames = map[string]string{
	"host":         "host",
	"port":         "port",
	"threads":      "threads",
	"quarantine":   "quarantine",
	"logging":      "logging",
	"log_file":     "log-file",
	"log_level":    "log-level",
	"backlog":      "backlog",
	"queue_size":   "queue-size",
	"metrics_addr": "metrics-addr",
}

// Load builds a ServerConfig from defaults, the optional config file at
// configPath, the environment and the given flags. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (ServerConfig, error) {
	v := viper.New()

	setDefaults(v)
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return ServerConfig{}, err
	}

	if err := bindFlags(v, flags); err != nil {
		return ServerConfig{}, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("threads", def.Threads)
	v.SetDefault("quarantine", def.QuarantineDir)
	v.SetDefault("logging", def.Logging)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("backlog", def.Backlog)
	v.SetDefault("queue_size", def.QueueSize)
	v.SetDefault("metrics_addr", def.MetricsAddr)
}

// setupViper enables SIGCRAWL_* environment variables.
// Example: SIGCRAWL_QUEUE_SIZE=128
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	for key, name := range flagNames {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct constraints of cfg.
func Validate(cfg ServerConfig) error {
	err := validate.Struct(cfg)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed on '%s' (value %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}
