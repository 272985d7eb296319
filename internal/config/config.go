package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env-default:"8080"`
	Redis      Redis  `yaml:"redis"`
	Bot        Bot    `yaml:"bot"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// Bot - tuning for the computer player: how long it pretends to think
// before a move lands.
type Bot struct {
	ThinkingDelayMinMS int `yaml:"thinking-delay-min-ms" env-default:"1000"`
	ThinkingDelayMaxMS int `yaml:"thinking-delay-max-ms" env-default:"2000"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Bot) ThinkingDelayBounds() (time.Duration, time.Duration) {
	minDelay := time.Duration(that.ThinkingDelayMinMS) * time.Millisecond
	maxDelay := time.Duration(that.ThinkingDelayMaxMS) * time.Millisecond

	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	return minDelay, maxDelay
}
