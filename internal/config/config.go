package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		Bind           string   `yaml:"bind"`
		PublicURL      string   `yaml:"publicUrl"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Trivia struct {
		Source        string `yaml:"source"`
		BaseURL       string `yaml:"baseUrl"`
		Timeout       string `yaml:"timeout"`
		CategoriesTTL string `yaml:"categoriesTtl"`
	} `yaml:"trivia"`
	Game struct {
		DefaultAmount    int    `yaml:"defaultAmount"`
		DefaultTimeLimit int    `yaml:"defaultTimeLimit"`
		SettleDelay      string `yaml:"settleDelay"`
		Tick             string `yaml:"tick"`
	} `yaml:"game"`
}

// Question sources accepted by trivia.source.
const (
	SourceOpenTDB  = "opentdb"
	SourcePostgres = "postgres"
	SourceStatic   = "static"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Bind = "0.0.0.0"
	cfg.Redis.TTL = "1h"
	cfg.Trivia.Source = SourceOpenTDB
	cfg.Trivia.BaseURL = "https://opentdb.com"
	cfg.Trivia.Timeout = "10s"
	cfg.Trivia.CategoriesTTL = "1h"
	cfg.Game.DefaultAmount = 10
	cfg.Game.DefaultTimeLimit = 15
	cfg.Game.SettleDelay = "3s"
	cfg.Game.Tick = "1s"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
