package interpreter

import (
	"fmt"
	"os"
	"sort"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Vocabulary is the set of tradable instruments and the nicknames
// channels use for them.
type Vocabulary struct {
	Instruments []string
	Aliases     map[string]string
}

var defaultInstruments = []string{
	"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "USDCAD", "AUDUSD", "NZDUSD",
	"EURGBP", "EURJPY", "GBPJPY", "EURCHF", "EURAUD", "EURCAD", "EURNZD",
	"GBPAUD", "GBPCAD", "GBPCHF", "GBPNZD", "AUDJPY", "AUDCAD", "AUDCHF",
	"AUDNZD", "NZDJPY", "NZDCAD", "NZDCHF", "CADJPY", "CADCHF", "CHFJPY",
	"XAUUSD", "XAGUSD",
	"US30", "NAS100", "SPX500", "GER40", "UK100", "JPN225",
	"BTCUSD", "ETHUSD",
	"USOIL", "UKOIL",
}

var defaultAliases = map[string]string{
	"GOLD":     "XAUUSD",
	"XAU":      "XAUUSD",
	"SILVER":   "XAGUSD",
	"XAG":      "XAGUSD",
	"CABLE":    "GBPUSD",
	"FIBER":    "EURUSD",
	"FIBRE":    "EURUSD",
	"LOONIE":   "USDCAD",
	"AUSSIE":   "AUDUSD",
	"KIWI":     "NZDUSD",
	"SWISSY":   "USDCHF",
	"GUPPY":    "GBPJPY",
	"DOW":      "US30",
	"DJ30":     "US30",
	"DJI":      "US30",
	"NASDAQ":   "NAS100",
	"NAS":      "NAS100",
	"USTEC":    "NAS100",
	"US100":    "NAS100",
	"SP500":    "SPX500",
	"SPX":      "SPX500",
	"US500":    "SPX500",
	"DAX":      "GER40",
	"GER30":    "GER40",
	"DE40":     "GER40",
	"FTSE":     "UK100",
	"NIKKEI":   "JPN225",
	"BITCOIN":  "BTCUSD",
	"BTC":      "BTCUSD",
	"ETHEREUM": "ETHUSD",
	"ETH":      "ETHUSD",
	"WTI":      "USOIL",
	"CRUDE":    "USOIL",
	"OIL":      "USOIL",
	"BRENT":    "UKOIL",
}

// DefaultVocabulary returns a fresh copy of the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	v := Vocabulary{
		Instruments: append([]string(nil), defaultInstruments...),
		Aliases:     make(map[string]string, len(defaultAliases)),
	}
	for k, val := range defaultAliases {
		v.Aliases[k] = val
	}
	return v
}

type aliasFile struct {
	Instruments []string          `yaml:"instruments"`
	Aliases     map[string]string `yaml:"aliases"`
}

// LoadVocabularyFile extends the default vocabulary with a YAML file of the form
//
//	instruments: [USDZAR]
//	aliases:
//	  YEN: USDJPY
func LoadVocabularyFile(path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read vocabulary file: %w", err)
	}

	var f aliasFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return v, fmt.Errorf("parse vocabulary file: %w", err)
	}

	v.Merge(f.Instruments, f.Aliases)

	logger.WithFields(map[string]interface{}{
		"path":        path,
		"instruments": len(f.Instruments),
		"aliases":     len(f.Aliases),
	}).Info("Loaded interpreter vocabulary")

	return v, nil
}

// Merge adds instruments and aliases; aliases pointing at unknown
// instruments register the instrument as well.
func (v *Vocabulary) Merge(instruments []string, aliases map[string]string) {
	known := make(map[string]bool, len(v.Instruments))
	for _, s := range v.Instruments {
		known[s] = true
	}
	add := func(s string) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !known[s] {
			known[s] = true
			v.Instruments = append(v.Instruments, s)
		}
	}
	for _, s := range instruments {
		add(s)
	}
	if v.Aliases == nil {
		v.Aliases = map[string]string{}
	}
	for alias, target := range aliases {
		target = strings.ToUpper(strings.TrimSpace(target))
		v.Aliases[strings.ToUpper(strings.TrimSpace(alias))] = target
		add(target)
	}
}

// names returns instruments and aliases, longest first so that
// "XAUUSD" wins over "XAU" at the same position.
func (v Vocabulary) names() []string {
	out := make([]string, 0, len(v.Instruments)+len(v.Aliases))
	out = append(out, v.Instruments...)
	for a := range v.Aliases {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

func (v Vocabulary) resolve(name string) string {
	if target, ok := v.Aliases[name]; ok {
		return target
	}
	return name
}
