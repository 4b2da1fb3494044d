package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"imgrev-go/pkg/appdir"
	"imgrev-go/pkg/log"
	"imgrev-go/pkg/search"
	"imgrev-go/pkg/transform"
)

type Config struct {
	Workers       int    `mapstructure:"workers"`
	Depth         int    `mapstructure:"depth"`
	KnownSequence string `mapstructure:"known_sequence"` // e.g. "xor,ror3,xor"; empty disables the hint
	CacheResults  bool   `mapstructure:"cache_results"`
	StorePath     string `mapstructure:"store_path"`
	LogDB         string `mapstructure:"log_db"`
	LogLevel      string `mapstructure:"log_level"`
	APIListenAddr string `mapstructure:"api_listen_address"`
	ConfigFile    string `mapstructure:"config_file"`
}

func DefaultConfig() *Config {
	return &Config{
		Workers:       0, // runtime.NumCPU()
		Depth:         search.DefaultDepth,
		KnownSequence: search.DefaultHint.String(),
		CacheResults:  true,
		StorePath:     appdir.Path("runs.db"),
		LogDB:         log.DefaultPath("imgrev"),
		LogLevel:      "info",
		APIListenAddr: "127.0.0.1:7780",
		ConfigFile:    "imgrev",
	}
}

// Load resolves configuration from defaults, the config file and IMGREV_* environment
// variables, in increasing order of precedence. configFile may be a path or a bare name
// searched in ., /etc/imgrev and $HOME/.imgrev. A missing file is not an error.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile != "" {
		cfg.ConfigFile = configFile
	}

	v := viper.New()
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("depth", cfg.Depth)
	v.SetDefault("known_sequence", cfg.KnownSequence)
	v.SetDefault("cache_results", cfg.CacheResults)
	v.SetDefault("store_path", cfg.StorePath)
	v.SetDefault("log_db", cfg.LogDB)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("api_listen_address", cfg.APIListenAddr)
	v.SetDefault("config_file", cfg.ConfigFile)

	if strings.ContainsAny(cfg.ConfigFile, `/\`) || strings.Contains(cfg.ConfigFile, ".") {
		v.SetConfigFile(cfg.ConfigFile)
	} else {
		v.SetConfigName(cfg.ConfigFile)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/imgrev/")
		v.AddConfigPath("$HOME/.imgrev")
	}
	v.SetEnvPrefix("IMGREV")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		cfg.ConfigFile = used
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if c.Depth < 1 {
		return fmt.Errorf("config: depth must be >= 1, got %d", c.Depth)
	}
	if _, err := c.Hints(); err != nil {
		return fmt.Errorf("config: known_sequence: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	return nil
}

// Hints returns the configured known sequences. Several may be separated by ';'.
func (c *Config) Hints() ([]transform.Sequence, error) {
	hints := []transform.Sequence{}
	for _, part := range strings.Split(c.KnownSequence, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		seq, err := transform.ParseSequence(part)
		if err != nil {
			return nil, err
		}
		hints = append(hints, seq)
	}
	return hints, nil
}

// SearchOptions builds the engine options for this configuration.
func (c *Config) SearchOptions() (search.Options, error) {
	hints, err := c.Hints()
	if err != nil {
		return search.Options{}, err
	}
	return search.Options{Depth: c.Depth, Workers: c.Workers, Hints: hints}, nil
}

func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
