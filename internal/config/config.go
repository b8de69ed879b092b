// Package config loads sequencer configuration from file, environment and flags.
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

// EnvPrefix is the prefix for environment overrides (SEQUENCER_LOGGING_LEVEL, ...).
const EnvPrefix = "SEQUENCER"

// Config is the full sequencer configuration.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cutscenes CutscenesConfig `mapstructure:"cutscenes"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// SchedulerConfig tunes the tick loop and cancellation policy.
type SchedulerConfig struct {
	// TickInterval is the frame period of the Director run loop.
	TickInterval time.Duration `mapstructure:"tick_interval"`

	// ImmediateEpsilon is the delay below which a statement runs inline.
	ImmediateEpsilon time.Duration `mapstructure:"immediate_epsilon"`

	// CancelGracePeriod bounds how long a stopped command may keep running.
	CancelGracePeriod time.Duration `mapstructure:"cancel_grace_period"`

	// ReleaseDelayTicks is the number of ticks Close waits before releasing the camera.
	ReleaseDelayTicks int `mapstructure:"release_delay_ticks"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig controls the sqlite event log.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// CutscenesConfig controls cutscene library lookup.
type CutscenesConfig struct {
	ProjectDir string `mapstructure:"project_dir"`
	AssetsFile string `mapstructure:"assets_file"`
}

// MQTTConfig controls the external message bridge.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

// TUIConfig controls the playback monitor.
type TUIConfig struct {
	Theme string `mapstructure:"theme"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			TickInterval:      16 * time.Millisecond,
			ImmediateEpsilon:  time.Millisecond,
			CancelGracePeriod: 100 * time.Millisecond,
			ReleaseDelayTicks: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Database: DatabaseConfig{
			Enabled: false,
			Path:    filepath.Join(DefaultDataDir(), "sequencer.db"),
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "sequencer",
			Topic:    "sequencer",
		},
		TUI: TUIConfig{
			Theme: "default",
		},
	}
}

// DefaultConfigDir returns ~/.config/sequencer.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".sequencer"
	}
	return filepath.Join(home, ".config", "sequencer")
}

// DefaultDataDir returns ~/.local/share/sequencer.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".sequencer"
	}
	return filepath.Join(home, ".local", "share", "sequencer")
}

// Load reads configuration. An empty path searches the default config dir
// and tolerates a missing file; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scheduler.tick_interval", cfg.Scheduler.TickInterval)
	v.SetDefault("scheduler.immediate_epsilon", cfg.Scheduler.ImmediateEpsilon)
	v.SetDefault("scheduler.cancel_grace_period", cfg.Scheduler.CancelGracePeriod)
	v.SetDefault("scheduler.release_delay_ticks", cfg.Scheduler.ReleaseDelayTicks)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("database.enabled", cfg.Database.Enabled)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("cutscenes.project_dir", cfg.Cutscenes.ProjectDir)
	v.SetDefault("cutscenes.assets_file", cfg.Cutscenes.AssetsFile)
	v.SetDefault("mqtt.enabled", cfg.MQTT.Enabled)
	v.SetDefault("mqtt.broker", cfg.MQTT.Broker)
	v.SetDefault("mqtt.client_id", cfg.MQTT.ClientID)
	v.SetDefault("mqtt.topic", cfg.MQTT.Topic)
	v.SetDefault("tui.theme", cfg.TUI.Theme)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive, got %s", c.Scheduler.TickInterval)
	}
	if c.Scheduler.ImmediateEpsilon < 0 {
		return fmt.Errorf("scheduler.immediate_epsilon must not be negative")
	}
	if c.Scheduler.CancelGracePeriod < 0 {
		return fmt.Errorf("scheduler.cancel_grace_period must not be negative")
	}
	if c.Scheduler.ReleaseDelayTicks < 0 {
		return fmt.Errorf("scheduler.release_delay_ticks must not be negative")
	}
	if c.Database.Enabled && strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required when the event log is enabled")
	}
	if c.MQTT.Enabled && strings.TrimSpace(c.MQTT.Broker) == "" {
		return fmt.Errorf("mqtt.broker is required when the bridge is enabled")
	}
	return nil
}
