package interpreter

import (
	"regexp"
	"strconv"
	"strings"

	"signalbridge/src/model"
)

const levelListPat = `([1-3](?:\s*(?:,|&|\+|/|and)\s*[1-3])*)`

var (
	slHitRe = regexp.MustCompile(`\b(?:sl|s/l|stop\s*loss|stoploss)\s*(?:was\s+|got\s+|has\s+been\s+|is\s+)?(?:hit|reached|triggered|taken|touched)\b|\b(?:hit|touched|took)\s+(?:the\s+|our\s+)?(?:sl|stop\s*loss)\b|\bstopped\s+out\b`)
	slCrossRe = regexp.MustCompile(`(?:\bsl|\bs/l|\bstop\s*loss)\s*:?\s*❌`)

	allTargetsRe = regexp.MustCompile(`\ball\s+(?:the\s+)?(?:targets?|tps?|take\s*profits?)\s+(?:are\s+|were\s+|have\s+been\s+)?(?:hit|achieved|reached|done|smashed|completed|secured)\b|\b(?:targets?|tps?)\s+all\s+(?:hit|done|achieved)\b|\bfull\s+targets?\s+(?:hit|achieved|reached|done)\b`)
	reachesTPRe  = regexp.MustCompile(`\b(?:reach(?:ed|es)?|hits?|touch(?:ed|es)?|achieved)\s+(?:the\s+)?(?:tp|target|take\s*profit)\s*([1-3])\b`)
	bannerRe     = regexp.MustCompile(`\bnew\s+(?:signal|trade|setup|position)\b|\b(?:signal|trade)\s+alert\b`)
	closedRe     = regexp.MustCompile(`\b(?:closed|closing|exited)\b`)
	tpHitRe      = regexp.MustCompile(`\b(?:tp|target|take\s*profit)\s*` + levelListPat + `?\s*(?:is\s+|was\s+|has\s+been\s+)?(?:hit|reached|done|achieved|smashed|secured|touched)\b|\b(?:tp|target)\s*` + levelListPat + `?\s*(?:✅|🎯|💰|✔)`)
	breakevenRe  = regexp.MustCompile(`(?m)\bbreak\s*-?\s*even\b|\bmove\s+(?:the\s+)?(?:sl|stop\s*loss|stop)\s+to\s+(?:entry|be|open(?:ing)?\s+price|cost)\b|\b(?:sl|stop\s*loss)\s*(?:to|@|=|at)\s*(?:entry|be)\b|\bset\s+be\b|\brisk\s*free\b|^(?:sl\s+)?be(?:\s*(?:now\b|✅|✔|☑|\x{FE0F}|!))*\s*$`)
	closeVerbRe  = regexp.MustCompile(`\b(?:close|exit)\b`)
	closeObjRe   = regexp.MustCompile(`^(?:now|all|everything|it|them|here|early|manually|(?:the|this|that|your|our|all|my)\s+(?:trades?|positions?|orders?|signals?)|trades?|positions?|orders?)\b`)
	closeNearRe  = regexp.MustCompile(`^(?:to|by|enough|call|in|from|at|above|below|out\s+of|range)\b`)
	closeNegRe   = regexp.MustCompile(`\b(?:don['’]?t|do\s+not|not|never|no\s+need\s+to|won['’]?t|wouldn['’]?t|shouldn['’]?t)\s+(?:[a-z]+\s+){0,2}?(?:close|exit)\b`)
	takeNowRe    = regexp.MustCompile(`\btake\s+(?:the\s+)?profits?\s+now\b`)
	cancelRe     = regexp.MustCompile(`\bcancel(?:l?ed)?\b|\bdelete(?:d)?\b|\bvoid\b|\bignore\s+(?:this|the|that|previous|last)\b|\bdon'?t\s+(?:enter|take)\b`)
	updateSLRe   = regexp.MustCompile(`\b(?:move|moved|change|changed|update|updated|adjust|adjusted|modify|modified|new|set|trail)\s+(?:the\s+|our\s+|your\s+)?(?:sl|s/l|stop\s*loss|stop)\b|\b(?:sl|stop\s*loss)\s+(?:moved|changed|updated|adjusted)\b`)
	updateTPRe   = regexp.MustCompile(`\b(?:move|moved|change|changed|update|updated|adjust|adjusted|modify|modified|new|set|extend)\s+(?:the\s+|our\s+|your\s+)?(?:tp\s*[1-3]?|targets?\s*[1-3]?|take\s*profits?\s*[1-3]?)\b|\b(?:tp\s*[1-3]?|take\s*profit)\s+(?:moved|changed|updated|adjusted)\b`)
	longRe       = regexp.MustCompile(`\b(?:buy|long|bullish)\b|🟢|📈|⬆|🔼`)
	shortRe      = regexp.MustCompile(`\b(?:sell|short|bearish)\b|🔴|📉|⬇|🔽`)
)

type classification struct {
	intent model.Intent
	level  int
	cancel bool
}

// classify runs the intent detectors in priority order; the first that
// fires wins. full reports whether the message carries entry, stop and
// target, which demotes close markers back to a new trade. isSymbol
// reports whether a word names a tradable instrument.
func classify(lower string, full bool, isSymbol func(word string) bool) classification {
	switch {
	case slHitRe.MatchString(lower) || isStopLossCross(lower):
		return classification{intent: model.IntentStopLossHit}

	case allTargetsRe.MatchString(lower):
		return classification{intent: model.IntentTakeProfitHit, level: 3}

	case reachesTPRe.MatchString(lower):
		m := reachesTPRe.FindStringSubmatch(lower)
		level, _ := strconv.Atoi(m[1])
		return classification{intent: model.IntentTakeProfitHit, level: level}

	case bannerRe.MatchString(lower):
		return classification{intent: model.IntentNewTrade}

	case closedRe.MatchString(lower):
		if full {
			return classification{intent: model.IntentNewTrade}
		}
		return classification{intent: model.IntentCloseTrade}

	case tpHitRe.MatchString(lower):
		return classification{intent: model.IntentTakeProfitHit, level: hitLevel(lower)}

	case breakevenRe.MatchString(lower):
		return classification{intent: model.IntentBreakeven}

	case cancelRe.MatchString(lower) && !full:
		return classification{intent: model.IntentCloseTrade, cancel: true}

	case !full && isCloseCommand(lower, isSymbol):
		return classification{intent: model.IntentCloseTrade}

	case updateSLRe.MatchString(lower) && !full:
		return classification{intent: model.IntentUpdateStopLoss}

	case updateTPRe.MatchString(lower) && !full:
		return classification{intent: model.IntentUpdateTakeProfit}

	case longRe.MatchString(lower) || shortRe.MatchString(lower):
		return classification{intent: model.IntentNewTrade}
	}

	return classification{intent: model.IntentUnrecognized}
}

// isCloseCommand accepts "close" or "exit" as an instruction: at the start
// of a line, followed by an object ("close all", "close the trade") or by an
// instrument ("close gold"). Negated or descriptive uses ("don't close",
// "close to entry") never count.
func isCloseCommand(lower string, isSymbol func(word string) bool) bool {
	if closeNegRe.MatchString(lower) {
		return false
	}
	for _, loc := range closeVerbRe.FindAllStringIndex(lower, -1) {
		rest := strings.TrimLeft(lower[loc[1]:], " :,-")
		if closeNearRe.MatchString(rest) {
			continue
		}
		if atLineStart(lower, loc[0]) || closeObjRe.MatchString(rest) {
			return true
		}
		if isSymbol != nil && isSymbol(firstWord(rest)) {
			return true
		}
	}
	return takeNowRe.MatchString(lower)
}

// atLineStart reports whether only symbols and spaces precede pos on its line.
func atLineStart(text string, pos int) bool {
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	return !hasAlphanumeric(text[lineStart:pos])
}

func firstWord(s string) string {
	end := strings.IndexAny(s, " \n\t,.!?;:")
	if end < 0 {
		return s
	}
	return s[:end]
}

// isStopLossCross matches "SL ❌" style reports but not a stop price
// decorated with a cross ("SL ❌ 1.1780").
func isStopLossCross(lower string) bool {
	for _, loc := range slCrossRe.FindAllStringIndex(lower, -1) {
		rest := strings.TrimLeft(lower[loc[1]:], " :")
		if rest == "" || (rest[0] < '0' || rest[0] > '9') {
			return true
		}
	}
	return false
}

// hitLevel returns the highest level named by TP-hit markers, 1 when
// the markers carry no number.
func hitLevel(lower string) int {
	level := 0
	for _, m := range tpHitRe.FindAllStringSubmatch(lower, -1) {
		for _, group := range m[1:] {
			for _, r := range group {
				if r >= '1' && r <= '3' && int(r-'0') > level {
					level = int(r - '0')
				}
			}
		}
	}
	if level == 0 {
		return 1
	}
	return level
}

// direction returns the side named first in the message.
func direction(lower string) model.Direction {
	l := longRe.FindStringIndex(lower)
	s := shortRe.FindStringIndex(lower)
	switch {
	case l == nil && s == nil:
		return ""
	case s == nil:
		return model.DirectionLong
	case l == nil:
		return model.DirectionShort
	case l[0] < s[0]:
		return model.DirectionLong
	default:
		return model.DirectionShort
	}
}
