package main

import "github.com/kelseyhightower/envconfig"

// Config is read from PROBE_* variables, flags override it.
type Config struct {
	URL   string `envconfig:"URL" default:"ws://localhost:8080/ws"`
	Token string `envconfig:"TOKEN"`
	// PROBE_JWT_SECRET lets the probe mint its own token for --user
	Secret  string `envconfig:"JWT_SECRET"`
	Issuer  string `envconfig:"JWT_ISSUER"`
	Colours bool   `envconfig:"COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("probe", &cfg)
	return cfg, err
}
