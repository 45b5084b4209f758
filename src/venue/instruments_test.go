package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipSize(t *testing.T) {
	cases := map[string]float64{
		"EURUSD": 0.0001,
		"GBPJPY": 0.01,
		"XAUUSD": 0.1,
		"XAGUSD": 0.01,
		"US30":   1,
		"BTCUSD": 1,
		"eurgbp": 0.0001,
	}
	for symbol, want := range cases {
		assert.InDelta(t, want, PipSize(symbol), 1e-12, symbol)
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, int32(5), Digits("EURUSD"))
	assert.Equal(t, int32(3), Digits("USDJPY"))
	assert.Equal(t, int32(2), Digits("XAUUSD"))
	assert.Equal(t, int32(2), Digits("US30"))
}

func TestBrokerSymbolSuffix(t *testing.T) {
	assert.Equal(t, "XAUUSDm", ToBrokerSymbol("xauusd", "m"))
	assert.Equal(t, "XAUUSDm", ToBrokerSymbol("XAUUSDm", "m"))
	assert.Equal(t, "EURUSD", ToBrokerSymbol("eurusd", ""))
	assert.Equal(t, "XAUUSD", FromBrokerSymbol("XAUUSDm", "m"))
	assert.Equal(t, "EURUSD", FromBrokerSymbol("EURUSD", ""))
}

func TestQuoteSpreadAndTicketSet(t *testing.T) {
	q := Quote{Bid: 1.1800, Ask: 1.1802}
	assert.InDelta(t, 0.0002, q.Spread(), 1e-9)

	set := TicketSet([]Position{{Ticket: 1}, {Ticket: 7}})
	_, ok := set[7]
	assert.True(t, ok)
	assert.Len(t, set, 2)
}
