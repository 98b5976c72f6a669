// Package config loads host configuration using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. QUESTMIND_LOG_LEVEL.
const EnvPrefix = "QUESTMIND"

// Config holds host configuration.
type Config struct {
	BundlePaths []string   `mapstructure:"bundle_paths" validate:"required,min=1,dive,required"`
	Bundle      string     `mapstructure:"bundle" validate:"required"`
	LogLevel    string     `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Wasm        WasmConfig `mapstructure:"wasm"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages" validate:"min=1,max=65536"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory; empty disables the on-disk cache.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances" validate:"min=0"`
	// Per-call execution timeout (seconds); 0 disables it.
	ExecutionTimeout int `mapstructure:"execution_timeout" validate:"min=0"`
}

// Timeout returns the execution timeout as a duration.
func (w WasmConfig) Timeout() time.Duration {
	return time.Duration(w.ExecutionTimeout) * time.Second
}

// Load reads configuration with precedence:
// overrides > QUESTMIND_* env vars > config file > defaults.
// configPath may be empty. overrides holds already-parsed flag values keyed
// by config key, e.g. "log_level".
func Load(configPath string, overrides map[string]any) (*Config, error) {
	v := viper.New()

	v.SetDefault("bundle_paths", []string{"./bundles"})
	v.SetDefault("bundle", "questmind")
	v.SetDefault("log_level", "info")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 512) // 32MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 30)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
