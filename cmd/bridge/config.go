package bridge

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	VocabularyFile string `envconfig:"VOCABULARY_FILE"`
	EnableRelay    bool   `envconfig:"ENABLE_RELAY" default:"false"`
	EnableServer   bool   `envconfig:"ENABLE_SERVER" default:"true"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
