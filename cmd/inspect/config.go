package inspect

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	VocabularyFile string `envconfig:"VOCABULARY_FILE"`
	TradesLimit    int    `envconfig:"INSPECT_TRADES_LIMIT" default:"50"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
