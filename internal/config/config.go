package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port  string `yaml:"port" envconfig:"SERVER_PORT"`
		Debug bool   `yaml:"debug" envconfig:"SERVER_DEBUG"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
		Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" envconfig:"REDIS_DB"`
		TTL      string `yaml:"ttl" envconfig:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" envconfig:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Bolt struct {
		Path string `yaml:"path" envconfig:"BOLT_PATH"`
	} `yaml:"bolt"`
	Quiz struct {
		TTL       string `yaml:"ttl" envconfig:"QUIZ_TTL"`
		CacheSize int    `yaml:"cacheSize" envconfig:"QUIZ_CACHE_SIZE"`
	} `yaml:"quiz"`
	Game struct {
		CodeLength int `yaml:"codeLength" envconfig:"GAME_CODE_LENGTH"`
	} `yaml:"game"`
}

// Load reads YAML config from path, then applies LIVEQUIZ_* env overrides. A
// missing file is fine: everything can come from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case !os.IsNotExist(err):
		return cfg, err
	}
	if err := envconfig.Process("livequiz", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
