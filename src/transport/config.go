package transport

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MonitoredChannels []string `envconfig:"MONITORED_CHANNELS"`
	WebhookSecret     string   `envconfig:"WEBHOOK_SECRET"`

	RelayURL          string        `envconfig:"RELAY_URL"`
	RelayToken        string        `envconfig:"RELAY_TOKEN"`
	RelayReconnectMin time.Duration `envconfig:"RELAY_RECONNECT_MIN" default:"1s"`
	RelayReconnectMax time.Duration `envconfig:"RELAY_RECONNECT_MAX" default:"30s"`
	RelayReadTimeout  time.Duration `envconfig:"RELAY_READ_TIMEOUT" default:"90s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
