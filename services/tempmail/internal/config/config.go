package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration of the tempmail client
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Poll     PollConfig     `mapstructure:"poll"`
	Database DatabaseConfig `mapstructure:"database"`
	Prefs    PrefsConfig    `mapstructure:"prefs"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type ProviderConfig struct {
	Default   string          `mapstructure:"default" validate:"oneof=mailtm guerrilla"`
	Timeout   time.Duration   `mapstructure:"timeout" validate:"gt=0"`
	RateLimit float64         `mapstructure:"rate_limit" validate:"gte=0"`
	Burst     int             `mapstructure:"burst" validate:"gte=1"`
	MailTM    MailTMConfig    `mapstructure:"mailtm"`
	Guerrilla GuerrillaConfig `mapstructure:"guerrilla"`
}

type MailTMConfig struct {
	APIURL   string `mapstructure:"api_url" validate:"required,url"`
	Password string `mapstructure:"password"`
}

type GuerrillaConfig struct {
	APIURL string `mapstructure:"api_url" validate:"required,url"`
	IP     string `mapstructure:"ip" validate:"omitempty,ip"`
	Agent  string `mapstructure:"agent"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

type DatabaseConfig struct {
	// URL is optional; without it preferences live in a local file
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

type PrefsConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider.default", "mailtm")
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("provider.rate_limit", 2.0)
	v.SetDefault("provider.burst", 4)
	v.SetDefault("provider.mailtm.api_url", "https://api.mail.tm")
	v.SetDefault("provider.guerrilla.api_url", "https://api.guerrillamail.com/ajax.php")
	v.SetDefault("provider.guerrilla.ip", "127.0.0.1")
	v.SetDefault("provider.guerrilla.agent", "desktop")
	v.SetDefault("poll.interval", 10*time.Second)
	v.SetDefault("prefs.path", "tempmail-prefs.yaml")
	v.SetDefault("server.addr", ":8090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
