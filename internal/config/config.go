// Package config resolves runtime settings from flags, AVIATOR_* environment
// variables and defaults, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/harrylevesque/aviator/internal/utils"
)

const EnvPrefix = "AVIATOR"

// Keys understood by Load.
const (
	KeyPort         = "port"
	KeyRegistry     = "registry"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
	KeyLogFile      = "log_file"
	KeyHeadless     = "headless"
	KeyServiceName  = "service_name"
	KeyWriteTimeout = "write_timeout"
	KeyAdvertise    = "advertise"
)

const (
	DefaultPort         = 8000
	DefaultWriteTimeout = 5 * time.Second
)

// Config contains global runtime configuration.
type Config struct {
	Port         int
	Registry     string
	LogLevel     string
	LogFormat    string
	LogFile      string
	Headless     bool
	ServiceName  string
	WriteTimeout time.Duration
	Advertise    bool
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyRegistry, utils.GetRegistryPath())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, utils.GetLogPath())
	v.SetDefault(KeyHeadless, false)
	v.SetDefault(KeyServiceName, "")
	v.SetDefault(KeyWriteTimeout, DefaultWriteTimeout)
	v.SetDefault(KeyAdvertise, true)

	// Env support: AVIATOR_PORT, AVIATOR_LOG_LEVEL, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds each known key to the flag of the same name with dashes,
// e.g. log_level to --log-level. Flags that are not defined are skipped.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{
		KeyPort, KeyRegistry, KeyLogLevel, KeyLogFormat, KeyLogFile,
		KeyHeadless, KeyServiceName, KeyWriteTimeout, KeyAdvertise,
	} {
		f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:         v.GetInt(KeyPort),
		Registry:     v.GetString(KeyRegistry),
		LogLevel:     strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:    strings.ToLower(v.GetString(KeyLogFormat)),
		LogFile:      v.GetString(KeyLogFile),
		Headless:     v.GetBool(KeyHeadless),
		ServiceName:  v.GetString(KeyServiceName),
		WriteTimeout: v.GetDuration(KeyWriteTimeout),
		Advertise:    v.GetBool(KeyAdvertise),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns error if configuration is invalid.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Registry == "" {
		return fmt.Errorf("registry path cannot be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %s", c.WriteTimeout)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
