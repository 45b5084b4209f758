package reconciliation

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Interval     time.Duration `envconfig:"RECONCILE_INTERVAL" default:"10s"`
	PnLEvery     int           `envconfig:"PNL_EVERY" default:"3"`
	ErrorBackoff time.Duration `envconfig:"ERROR_BACKOFF" default:"2s"`
	CallTimeout  time.Duration `envconfig:"VENUE_CALL_TIMEOUT" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
