package risk

import (
	"fmt"
	"strings"
	"time"
)

// TradingWindow is a daily UTC time range. Start after End wraps midnight.
type TradingWindow struct {
	Start time.Duration
	End   time.Duration
}

// ParseTradingWindow parses "HH:MM-HH:MM". An empty string means no window.
func ParseTradingWindow(s string) (*TradingWindow, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid trading hours %q: expected HH:MM-HH:MM", s)
	}

	start, err := parseClock(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid trading hours %q: %w", s, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid trading hours %q: %w", s, err)
	}

	return &TradingWindow{Start: start, End: end}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether now (in UTC) falls inside the window.
func (w *TradingWindow) Contains(now time.Time) bool {
	if w == nil || w.Start == w.End {
		return true
	}
	u := now.UTC()
	clock := time.Duration(u.Hour())*time.Hour + time.Duration(u.Minute())*time.Minute

	if w.Start < w.End {
		return clock >= w.Start && clock < w.End
	}
	return clock >= w.Start || clock < w.End
}

func (w *TradingWindow) String() string {
	if w == nil {
		return "always"
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		int(w.Start.Hours()), int(w.Start.Minutes())%60,
		int(w.End.Hours()), int(w.End.Minutes())%60)
}
