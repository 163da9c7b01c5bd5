package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FEX_ROOTFS_LAYERS_DIR.
const EnvPrefix = "FEX_ROOTFS"

// Config is the complete generator configuration.
type Config struct {
	Paths `mapstructure:",squash"`

	// OnDuplicate resolves layer name collisions
	OnDuplicate DuplicatePolicy `mapstructure:"on_duplicate"`

	// LogLevel is a systemd log level name or number (SYSTEMD_LOG_LEVEL)
	LogLevel string `mapstructure:"log_level"`

	// LogTarget is the systemd log target (SYSTEMD_LOG_TARGET)
	LogTarget string `mapstructure:"log_target"`
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"on-duplicate": "on_duplicate",
	"layers-dir":   "layers_dir",
	"mounts-dir":   "mounts_dir",
	"rootfs-dir":   "rootfs_dir",
	"writable-dir": "writable_dir",
	"work-dir":     "work_dir",
}

// Default returns the build-time configuration.
func Default() *Config {
	return &Config{
		Paths:       DefaultPaths(),
		OnDuplicate: DefaultDuplicatePolicy,
		LogLevel:    "info",
	}
}

// Load builds the configuration from defaults, an optional config file,
// FEX_ROOTFS_* environment variables and any flags in flags that map to a
// configuration key. configFile may be empty; flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("layers_dir", defaults.LayersDir)
	v.SetDefault("mounts_dir", defaults.MountsDir)
	v.SetDefault("rootfs_dir", defaults.RootfsDir)
	v.SetDefault("writable_dir", defaults.WritableDir)
	v.SetDefault("work_dir", defaults.WorkDir)
	v.SetDefault("on_duplicate", string(defaults.OnDuplicate))
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_target", defaults.LogTarget)

	// systemd.generator(7): generators take their log setup from the manager
	if err := v.BindEnv("log_level", "SYSTEMD_LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind log level: %w", err)
	}
	if err := v.BindEnv("log_target", "SYSTEMD_LOG_TARGET"); err != nil {
		return nil, fmt.Errorf("failed to bind log target: %w", err)
	}

	if flags != nil {
		for flagName, key := range FlagKeys {
			flag := flags.Lookup(flagName)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flagName, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	decodeHook := viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc())
	if err := v.Unmarshal(cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the paths and the duplicate policy.
func (c *Config) Validate() error {
	if err := c.Paths.Validate(); err != nil {
		return err
	}
	if _, err := ParseDuplicatePolicy(string(c.OnDuplicate)); err != nil {
		return err
	}
	return nil
}
