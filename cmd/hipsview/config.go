package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gogpu/hips/projection"
)

// Config holds the settings of hipsview. Values come from flags,
// HIPSVIEW_* environment variables and an optional TOML file.
type Config struct {
	Width      int           `mapstructure:"width"`
	Height     int           `mapstructure:"height"`
	Projection string        `mapstructure:"projection"`
	FOV        float64       `mapstructure:"fov"` // degrees
	RA         float64       `mapstructure:"ra"`  // degrees
	Dec        float64       `mapstructure:"dec"` // degrees
	Output     string        `mapstructure:"output"`
	MaxFrames  int           `mapstructure:"max_frames"`
	FrameDelay time.Duration `mapstructure:"frame_delay"`
	CacheMB    int64         `mapstructure:"cache_mb"`
	Workers    int           `mapstructure:"workers"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Metrics    string        `mapstructure:"metrics"`
	Verbose    bool          `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("width", 1024)
	v.SetDefault("height", 512)
	v.SetDefault("projection", "mollweide")
	v.SetDefault("fov", 360.0)
	v.SetDefault("ra", 0.0)
	v.SetDefault("dec", 0.0)
	v.SetDefault("output", "hips.png")
	v.SetDefault("max_frames", 200)
	v.SetDefault("frame_delay", 50*time.Millisecond)
	v.SetDefault("cache_mb", 256)
	v.SetDefault("workers", 4)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("metrics", "")
	v.SetDefault("verbose", false)
}

// loadConfig reads the configuration. Flags of cmd take precedence over the
// environment, which takes precedence over the config file.
func loadConfig(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".hipsview")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix("HIPSVIEW")
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", c.Width, c.Height)
	}
	if c.FOV <= 0 || c.FOV > 360 {
		return fmt.Errorf("invalid field of view %v", c.FOV)
	}
	if _, err := projection.ParseKind(c.Projection); err != nil {
		return err
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// normalizeFlag maps dashed flag names to the underscored config keys.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "-", "_"))
}
