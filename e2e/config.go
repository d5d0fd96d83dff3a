package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RelayGRPCAddr string `envconfig:"RELAY_GRPC_ADDR"`
	RelayWSURL    string `envconfig:"RELAY_WS_URL" default:"ws://localhost:8080/ws"`
	// E2E_JWT_SECRET must match the relay JWT_SECRET so the suite can mint user tokens
	JWTSecret string `envconfig:"E2E_JWT_SECRET"`
	JWTIssuer string `envconfig:"E2E_JWT_ISSUER"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
