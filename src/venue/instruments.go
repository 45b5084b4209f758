package venue

import (
	"math"
	"strings"
)

// InstrumentMeta describes price and size conventions for a symbol.
type InstrumentMeta struct {
	Name         string
	PipLocation  int
	ContractSize float64
}

var Instruments = map[string]InstrumentMeta{
	"XAUUSD": {Name: "XAUUSD", PipLocation: -1, ContractSize: 100},
	"XAGUSD": {Name: "XAGUSD", PipLocation: -2, ContractSize: 5000},
	"US30":   {Name: "US30", PipLocation: 0, ContractSize: 1},
	"NAS100": {Name: "NAS100", PipLocation: 0, ContractSize: 1},
	"SPX500": {Name: "SPX500", PipLocation: 0, ContractSize: 1},
	"GER40":  {Name: "GER40", PipLocation: 0, ContractSize: 1},
	"UK100":  {Name: "UK100", PipLocation: 0, ContractSize: 1},
	"JPN225": {Name: "JPN225", PipLocation: 0, ContractSize: 1},
	"BTCUSD": {Name: "BTCUSD", PipLocation: 0, ContractSize: 1},
	"ETHUSD": {Name: "ETHUSD", PipLocation: 0, ContractSize: 1},
	"USOIL":  {Name: "USOIL", PipLocation: -2, ContractSize: 1000},
	"UKOIL":  {Name: "UKOIL", PipLocation: -2, ContractSize: 1000},
}

// Meta returns the metadata for symbol. Unknown six letter pairs are treated
// as forex, with JPY quotes one pip location higher.
func Meta(symbol string) InstrumentMeta {
	s := strings.ToUpper(symbol)
	if m, ok := Instruments[s]; ok {
		return m
	}
	if strings.HasSuffix(s, "JPY") {
		return InstrumentMeta{Name: s, PipLocation: -2, ContractSize: 100000}
	}
	return InstrumentMeta{Name: s, PipLocation: -4, ContractSize: 100000}
}

// PipSize returns the price value of one pip.
func PipSize(symbol string) float64 {
	return math.Pow10(Meta(symbol).PipLocation)
}

// Digits is the number of decimals quoted for symbol, one past the pip.
func Digits(symbol string) int32 {
	loc := Meta(symbol).PipLocation
	if loc >= 0 {
		return 2
	}
	return int32(-loc + 1)
}

// ToBrokerSymbol appends the broker suffix, e.g. "XAUUSD" -> "XAUUSDm".
func ToBrokerSymbol(symbol, suffix string) string {
	s := strings.TrimSpace(symbol)
	if suffix != "" && strings.HasSuffix(s, suffix) {
		return s
	}
	return strings.ToUpper(s) + suffix
}

// FromBrokerSymbol strips the broker suffix and returns the canonical symbol.
func FromBrokerSymbol(symbol, suffix string) string {
	s := strings.TrimSpace(symbol)
	if suffix != "" {
		s = strings.TrimSuffix(s, suffix)
	}
	return strings.ToUpper(s)
}
