package interpreter

import (
	"signalbridge/src/model"
)

// validate returns the reasons a signal cannot be acted on.
func validate(s model.Signal) []string {
	var errs []string

	switch s.Intent {
	case model.IntentNewTrade:
		if s.Symbol == "" {
			errs = append(errs, "missing symbol")
		}
		if s.Direction == "" {
			errs = append(errs, "missing direction")
		}
		if s.StopLoss == nil && len(s.TakeProfits) == 0 {
			errs = append(errs, "missing stop loss and take profit")
		}
		errs = append(errs, checkOrdering(s)...)

	case model.IntentUpdateStopLoss:
		if s.StopLoss == nil {
			errs = append(errs, "missing new stop loss")
		}

	case model.IntentUpdateTakeProfit:
		if len(s.TakeProfits) == 0 {
			errs = append(errs, "missing new take profit")
		}

	case model.IntentTakeProfitHit:
		if s.TPLevel < 1 || s.TPLevel > 3 {
			errs = append(errs, "take profit level out of range")
		}
	}

	return errs
}

// checkOrdering verifies stop and first target sit on the correct side of
// the entry band. Without a band only stop against target is checked.
func checkOrdering(s model.Signal) []string {
	if s.Direction == "" {
		return nil
	}
	tp1, hasTP := s.TakeProfit(1)
	long := s.Direction == model.DirectionLong

	var errs []string
	if !s.IsMarket() {
		lo, hi := *s.EntryMin, *s.EntryMax
		if s.StopLoss != nil {
			if long && *s.StopLoss >= lo {
				errs = append(errs, "stop loss must be below entry for a long")
			}
			if !long && *s.StopLoss <= hi {
				errs = append(errs, "stop loss must be above entry for a short")
			}
		}
		if hasTP {
			if long && tp1 <= hi {
				errs = append(errs, "take profit 1 must be above entry for a long")
			}
			if !long && tp1 >= lo {
				errs = append(errs, "take profit 1 must be below entry for a short")
			}
		}
		return errs
	}

	if s.StopLoss != nil && hasTP {
		if long && *s.StopLoss >= tp1 {
			errs = append(errs, "stop loss must be below take profit 1 for a long")
		}
		if !long && *s.StopLoss <= tp1 {
			errs = append(errs, "stop loss must be above take profit 1 for a short")
		}
	}
	return errs
}
