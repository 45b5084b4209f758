package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	EnableNoTradeWindow bool               `envconfig:"RISK_ENABLE_NO_TRADE_WINDOW" default:"true"`
	TradingHours        string             `envconfig:"RISK_TRADING_HOURS" default:""` // "HH:MM-HH:MM" UTC, may wrap midnight
	MaxDailyDrawdownPct float64            `envconfig:"RISK_MAX_DAILY_DRAWDOWN_PCT" default:"5"`
	MaxOpenTrades       int                `envconfig:"RISK_MAX_OPEN_TRADES" default:"5"`
	MaxSpreadPips       float64            `envconfig:"RISK_MAX_SPREAD_PIPS" default:"3"`
	SpreadOverrides     map[string]float64 `envconfig:"RISK_SPREAD_OVERRIDES" default:"XAUUSD:40,XAGUSD:40,US30:30,NAS100:20,BTCUSD:6000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
