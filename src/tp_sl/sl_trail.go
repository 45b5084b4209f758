package tp_sl

import (
	"signalbridge/src/model"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func SideFromDirection(d model.Direction) Side {
	if d == model.DirectionShort {
		return SideShort
	}
	return SideLong
}

// BreakevenTarget returns the stop that locks in the fill plus offset.
//
// Long:  fill + offset
// Short: fill - offset
func BreakevenTarget(side Side, fill, offset decimal.Decimal, digits int32) decimal.Decimal {
	target := fill.Add(offset)
	if side == SideShort {
		target = fill.Sub(offset)
	}
	return target.Round(digits)
}

// ComputeBreakevenStopLoss moves a leg stop to breakeven.
//
// A zero currentSL means the leg has no stop yet.
// The stop only tightens: up for longs, down for shorts. When the current
// stop is already at or beyond the target it is returned unchanged.
func ComputeBreakevenStopLoss(
	side Side,
	currentSL decimal.Decimal,
	fill decimal.Decimal,
	offset decimal.Decimal,
	digits int32,
) (newSL decimal.Decimal, moved bool) {
	if fill.LessThanOrEqual(decimal.Zero) {
		return currentSL, false
	}
	target := BreakevenTarget(side, fill, offset, digits)

	if currentSL.IsZero() {
		return target, true
	}

	switch side {
	case SideLong:
		if target.GreaterThan(currentSL) {
			return target, true
		}
		return currentSL, false

	case SideShort:
		if target.LessThan(currentSL) {
			return target, true
		}
		return currentSL, false

	default:
		return currentSL, false
	}
}

// SplitLots returns total x percent/100 for each entry, floored to step.
// Shares are not rescaled when the percentages do not add up to 100.
func SplitLots(total decimal.Decimal, percents []int, step decimal.Decimal) []decimal.Decimal {
	if len(percents) == 0 {
		return nil
	}

	hundred := decimal.NewFromInt(100)
	out := make([]decimal.Decimal, len(percents))
	for i, p := range percents {
		share := decimal.Zero
		if p > 0 {
			share = total.Mul(decimal.NewFromInt(int64(p))).Div(hundred)
		}
		if step.GreaterThan(decimal.Zero) {
			share = share.Div(step).Floor().Mul(step)
		}
		out[i] = share
	}
	return out
}
