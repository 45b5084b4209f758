package risk

import (
	"testing"
	"time"
)

func nyDate(year int, month time.Month, day, hour int) time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// fallback. still deterministic. hours will be interpreted as UTC
		return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
	}
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}

func TestSessionAt_WithNoTradeWindow(t *testing.T) {
	tests := []struct {
		name        string
		at          time.Time
		wantSession Session
	}{
		{name: "Asia session Tuesday 21.00 NY", at: nyDate(2025, time.March, 4, 21), wantSession: SessionAsia},
		{name: "London session Tuesday 04.00 NY", at: nyDate(2025, time.March, 4, 4), wantSession: SessionLondon},
		{name: "US session Tuesday 10.00 NY", at: nyDate(2025, time.March, 4, 10), wantSession: SessionUS},
		{name: "Dead zone Tuesday 18.00 NY", at: nyDate(2025, time.March, 4, 18), wantSession: SessionDeadZone},
		{name: "Friday before rollover", at: nyDate(2025, time.March, 7, 16), wantSession: SessionUS},
		{name: "Friday after rollover", at: nyDate(2025, time.March, 7, 18), wantSession: SessionNoTrade},
		{name: "Saturday", at: nyDate(2025, time.March, 8, 12), wantSession: SessionNoTrade},
		{name: "Sunday before open", at: nyDate(2025, time.March, 9, 16), wantSession: SessionNoTrade},
		{name: "Sunday after open", at: nyDate(2025, time.March, 9, 18), wantSession: SessionDeadZone},
		{name: "Christmas", at: nyDate(2025, time.December, 25, 10), wantSession: SessionNoTrade},
		{name: "New Year observed on Monday", at: nyDate(2023, time.January, 2, 10), wantSession: SessionNoTrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SessionAt(tt.at, true); got != tt.wantSession {
				t.Fatalf("expected session %s, got %s", tt.wantSession, got)
			}
		})
	}
}

func TestSessionAt_WithoutNoTradeWindow(t *testing.T) {
	if got := SessionAt(nyDate(2025, time.March, 8, 12), false); got != SessionWeekendHoliday {
		t.Fatalf("expected %s, got %s", SessionWeekendHoliday, got)
	}
	if got := SessionAt(nyDate(2025, time.December, 25, 10), false); got != SessionWeekendHoliday {
		t.Fatalf("expected %s, got %s", SessionWeekendHoliday, got)
	}
}

func TestMarketClosed(t *testing.T) {
	if MarketClosed(nyDate(2025, time.March, 5, 12)) {
		t.Fatalf("expected market open on a Wednesday")
	}
	if !MarketClosed(nyDate(2025, time.March, 8, 12)) {
		t.Fatalf("expected market closed on a Saturday")
	}
}

func TestParseTradingWindow(t *testing.T) {
	w, err := ParseTradingWindow("07:00-20:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Contains(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 10:00 inside window")
	}
	if w.Contains(time.Date(2025, 3, 4, 21, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 21:00 outside window")
	}
	if w.String() != "07:00-20:00" {
		t.Fatalf("unexpected string %s", w.String())
	}

	wrap, err := ParseTradingWindow("22:00-06:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, h := range []int{22, 23, 0, 5} {
		if !wrap.Contains(time.Date(2025, 3, 4, h, 0, 0, 0, time.UTC)) {
			t.Fatalf("expected %02d:00 inside wrapping window", h)
		}
	}
	if wrap.Contains(time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 12:00 outside wrapping window")
	}

	none, err := ParseTradingWindow("")
	if err != nil || none != nil {
		t.Fatalf("expected nil window for empty string")
	}
	if !none.Contains(time.Now()) {
		t.Fatalf("nil window should always allow")
	}

	if _, err := ParseTradingWindow("7-20"); err == nil {
		t.Fatalf("expected error for malformed window")
	}
}
