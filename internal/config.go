package internal

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	GRPCPort int    `env:"GRPC_PORT,default=9090"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	JWTSecret      string `env:"JWT_SECRET,required=true"`
	JWTIssuer      string `env:"JWT_ISSUER"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=65536"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`

	NotificationQueueSize     int           `env:"NOTIFICATION_QUEUE_SIZE,default=256"`
	NumberOfNotifiers         int           `env:"NUMBER_OF_NOTIFIERS,default=2"`
	NotificationTimeout       time.Duration `env:"NOTIFICATION_TIMEOUT,default=10s"`
	NotificationBodyMaxLength int           `env:"NOTIFICATION_BODY_MAX_LENGTH,default=100"`
	VAPIDPublicKey            string        `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey           string        `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject              string        `env:"VAPID_SUBJECT,default=mailto:admin@example.com"`
	PushTTL                   time.Duration `env:"PUSH_TTL,default=24h"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=1m"`

	// DebugPort serves the badger inspector when LOG_LEVEL is DEBUG. Zero disables it.
	DebugPort int `env:"DEBUG_PORT,default=0"`
}

// PushEnabled tells whether both VAPID keys are configured.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// Origins splits ALLOWED_ORIGINS on commas. Empty means any origin.
func (c Config) Origins() []string {
	origins := lo.Map(strings.Split(c.AllowedOrigins, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	})
	return lo.Compact(origins)
}
