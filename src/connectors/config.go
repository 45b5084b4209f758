package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BridgeURL     string        `envconfig:"BRIDGE_URL" default:"http://127.0.0.1:8228"`
	BridgeToken   string        `envconfig:"BRIDGE_TOKEN"`
	BridgeTimeout time.Duration `envconfig:"BRIDGE_TIMEOUT" default:"15s"`
	RetryAttempts int           `envconfig:"BRIDGE_RETRY_ATTEMPTS" default:"5"`
	RatePerSecond float64       `envconfig:"BRIDGE_RATE_PER_SECOND" default:"10"`
	RateBurst     int           `envconfig:"BRIDGE_RATE_BURST" default:"5"`

	DryRun       bool    `envconfig:"DRY_RUN" default:"false"`
	PaperBalance float64 `envconfig:"PAPER_BALANCE" default:"10000"`
	PaperSuffix  string  `envconfig:"BROKER_SYMBOL_SUFFIX"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
