package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"example.com/prayer/internal/catalog"
)

// ClientConfig configures the terminal client and its synchronizer.
type ClientConfig struct {
	// BackendURL is the API base URL. Empty runs the client against demo data.
	BackendURL      string        `mapstructure:"backend_url"`
	StatePath       string        `mapstructure:"state_path"`
	CooldownSeconds int           `mapstructure:"cooldown_seconds"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ReconnectDelay  time.Duration `mapstructure:"reconnect_delay"`
	DemoDelay       time.Duration `mapstructure:"demo_delay"`
}

// Cooldown returns the local cooldown window.
func (c ClientConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// LoadClient reads client settings from an optional YAML file and PRAYER_* variables.
// An explicit configPath must exist; the default search locations may be empty.
func LoadClient(configPath string) (ClientConfig, error) {
	v := viper.New()
	setClientDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("prayer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "prayer"))
		}
	}

	v.SetEnvPrefix("PRAYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return ClientConfig{}, fmt.Errorf("read client config: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("decode client config: %w", err)
	}
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	if cfg.CooldownSeconds < 0 {
		cfg.CooldownSeconds = 0
	}
	return cfg, nil
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "")
	v.SetDefault("state_path", defaultStatePath())
	v.SetDefault("cooldown_seconds", catalog.DefaultCooldownSeconds)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("reconnect_delay", 3*time.Second)
	v.SetDefault("demo_delay", 300*time.Millisecond)
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "prayer-state.db"
	}
	return filepath.Join(dir, "prayer", "state.db")
}
