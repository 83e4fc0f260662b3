package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/keulen/huddle/internal/domain"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	RelayURL     string        `mapstructure:"relay_url"`
	MeetingID    string        `mapstructure:"meeting_id"`
	DisplayName  string        `mapstructure:"display_name"`
	ControlPort  int           `mapstructure:"control_port"`
	STUNServers  []string      `mapstructure:"stun_servers"`
	OfferStagger time.Duration `mapstructure:"offer_stagger"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	ReadLimit    int64         `mapstructure:"read_limit"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("relay_url", "ws://localhost:8000/ws/video")
	v.SetDefault("meeting_id", "")
	v.SetDefault("display_name", "Guest")
	v.SetDefault("control_port", 8090)
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("offer_stagger", "200ms")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("read_limit", 32768)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.DisplayName) > domain.MaxDisplayNameLen {
		cfg.DisplayName = cfg.DisplayName[:domain.MaxDisplayNameLen]
	}
	return &cfg, nil
}
