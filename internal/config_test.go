package internal

import (
	"os"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_FromEnviron(t *testing.T) {
	req := require.New(t)

	// Given only the required variables
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BADGER_FILEPATH", "/tmp/relay")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	// When decoding
	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	// Then defaults are filled
	req.NoError(err)
	req.Equal(8080, config.Port)
	req.Equal(60*time.Second, config.PongTimeout)
	req.Equal(100, config.NotificationBodyMaxLength)
	req.False(config.PushEnabled())
	req.Equal([]string{"https://a.example", "https://b.example"}, config.Origins())
}

func TestConfig_Missing_Secret(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "unset")
	req.NoError(os.Unsetenv("JWT_SECRET"))
	t.Setenv("BADGER_FILEPATH", "/tmp/relay")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.Error(err)
}
