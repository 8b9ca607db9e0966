package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EngineConfig contains all configuration for the local engine.
type EngineConfig struct {
	Engine  ExecutionConfig `mapstructure:"engine"`
	Logging LoggingConfig   `mapstructure:"logging"`
}

// ExecutionConfig contains the block sizes and parallelism of a run. Zero
// values fall back to the engine defaults.
type ExecutionConfig struct {
	Workers                int    `mapstructure:"workers"`
	MapBlockBytes          int64  `mapstructure:"map_block_bytes"`
	MapBufferBytes         int64  `mapstructure:"map_buffer_bytes"`
	MapSpillThresholdBytes int64  `mapstructure:"map_spill_threshold_bytes"`
	ReduceBlockBytes       int64  `mapstructure:"reduce_block_bytes"`
	ReduceBufferBytes      int64  `mapstructure:"reduce_buffer_bytes"`
	TempRoot               string `mapstructure:"temp_root"`
}

// LoadEngine loads the engine configuration from the given path.
// If configPath is empty, it looks for engine.yaml in the config/ directory.
// Environment variables with DISKMR_ prefix override config file values,
// e.g. DISKMR_ENGINE_WORKERS.
func LoadEngine(configPath string) (*EngineConfig, error) {
	v := viper.New()

	v.SetDefault("engine.workers", 1)
	v.SetDefault("engine.map_block_bytes", 64<<20)
	v.SetDefault("engine.map_buffer_bytes", 10<<20)
	v.SetDefault("engine.map_spill_threshold_bytes", 10<<20)
	v.SetDefault("engine.reduce_block_bytes", 64<<20)
	v.SetDefault("engine.reduce_buffer_bytes", 10<<20)
	v.SetDefault("engine.temp_root", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("engine")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DISKMR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return nil, fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}

	if cfg.Engine.Workers < 0 {
		return nil, fmt.Errorf("engine.workers must be >= 0, got %d", cfg.Engine.Workers)
	}

	return &cfg, nil
}
