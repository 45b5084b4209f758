package risk

import (
	"time"
)

// ----- session labels -----

type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionDeadZone       Session = "dead_zone"
	SessionAsia           Session = "asia_session"
	SessionLondon         Session = "london_session"
	SessionUS             Session = "us_session"
	SessionDefault        Session = "default"
	SessionNoTrade        Session = "no_trade"
	OffsetDaysForHoliday          = 1
	NewYearDay                    = 1
	ChristmasDay                  = 25
	// FX rolls over at 17:00 New York time
	RolloverHourNY = 17
)

// SessionAt returns the NY based session label for now.
// When enableNoTradeWindow is set, the weekend close is reported as SessionNoTrade.
func SessionAt(now time.Time, enableNoTradeWindow bool) Session {
	et := getEasternTime(now)

	if enableNoTradeWindow && isNoTradeWindowNY(et) {
		return SessionNoTrade
	}
	return detectSession(et)
}

// MarketClosed reports whether the FX market is closed at now.
func MarketClosed(now time.Time) bool {
	return isNoTradeWindowNY(getEasternTime(now))
}

func getEasternTime(t time.Time) time.Time {
	nyLocation, err := time.LoadLocation("America/New_York")
	if err != nil {
		return t.UTC()
	}
	return t.In(nyLocation)
}

// isNoTradeWindowNY covers the weekend close, Friday 17:00 NY until
// Sunday 17:00 NY, plus the Christmas and New Year's days.
func isNoTradeWindowNY(t time.Time) bool {
	if isHoliday(t) {
		return true
	}

	h := t.Hour()
	switch t.Weekday() {
	case time.Friday:
		return h >= RolloverHourNY
	case time.Saturday:
		return true
	case time.Sunday:
		return h < RolloverHourNY
	default:
		return false
	}
}

func detectSession(t time.Time) Session {
	if t.Weekday() == time.Saturday || isHoliday(t) {
		return SessionWeekendHoliday
	}
	if t.Weekday() == time.Sunday && t.Hour() < RolloverHourNY {
		return SessionWeekendHoliday
	}

	switch {
	case isDeadZone(t):
		return SessionDeadZone
	case isAsiaSession(t):
		return SessionAsia
	case isLondonSession(t):
		return SessionLondon
	case isUSSession(t):
		return SessionUS
	default:
		return SessionDefault
	}
}

func isDeadZone(t time.Time) bool {
	return t.Hour() >= 17 && t.Hour() < 20
}

func isAsiaSession(t time.Time) bool {
	return t.Hour() >= 20 || t.Hour() < 3
}

func isLondonSession(t time.Time) bool {
	return t.Hour() >= 3 && t.Hour() < 9
}

func isUSSession(t time.Time) bool {
	return t.Hour() >= 9 && t.Hour() < 17
}

// isHoliday covers the days liquidity providers close: New Year's Day and
// Christmas, moved to Monday when they fall on a Sunday.
func isHoliday(t time.Time) bool {
	year := t.Year()

	newYearsDay := time.Date(year, time.January, NewYearDay, 0, 0, 0, 0, time.UTC)
	if newYearsDay.Weekday() == time.Sunday {
		newYearsDay = newYearsDay.AddDate(0, 0, OffsetDaysForHoliday)
	}

	christmasDay := time.Date(year, time.December, ChristmasDay, 0, 0, 0, 0, time.UTC)
	if christmasDay.Weekday() == time.Sunday {
		christmasDay = christmasDay.AddDate(0, 0, OffsetDaysForHoliday)
	}

	return isDateAmong(t, []time.Time{newYearsDay, christmasDay})
}

// isDateAmong checks if the given date matches any date in the list.
func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
