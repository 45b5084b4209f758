package lifecycle

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ExecuteImmediately bool          `envconfig:"EXECUTE_IMMEDIATELY" default:"true"`
	PendingExpiry      time.Duration `envconfig:"PENDING_EXPIRY" default:"30m"`
	DefaultLot         float64       `envconfig:"DEFAULT_LOT" default:"0.10"`
	LotStep            float64       `envconfig:"LOT_STEP" default:"0.01"`
	MinLot             float64       `envconfig:"MIN_LOT" default:"0.01"`
	LegSplit           []int         `envconfig:"LEG_SPLIT" default:"50,30,20"`
	InterOrderDelay    time.Duration `envconfig:"INTER_ORDER_DELAY" default:"300ms"`
	PlaceRetries       int           `envconfig:"PLACE_RETRIES" default:"3"`
	RetryBackoff       time.Duration `envconfig:"RETRY_BACKOFF" default:"500ms"`
	BreakevenOffset    float64       `envconfig:"BREAKEVEN_OFFSET" default:"0"` // price units
	SymbolSuffix       string        `envconfig:"BROKER_SYMBOL_SUFFIX" default:""`
	OrderComment       string        `envconfig:"ORDER_COMMENT" default:"signalbridge"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
