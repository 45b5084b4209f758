package interpreter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const shortMessageRunes = 60

var (
	// phrases that only appear in trade instructions
	strongIndicatorRe = regexp.MustCompile(`(?i)\b(buy|sell)\s+(now|limit|stop)\b|\bstop\s*loss\b|\b(sl|s/l)\s*[:=@]|\btp\s*[1-3]?\s*[:=@]|\btake\s*profit\b|\bentry\b|\b(tp|sl)\s*[1-3]?\s*(hit|reached|touched|done)\b`)

	// status keywords that keep a short message alive
	statusKeywordRe = regexp.MustCompile(`(?i)\b(tp[1-3]?|sl|hit|close|closed|breakeven|break\s*even|be|cancel|cancelled|buy|sell|target|targets)\b|✅|❌|🎯`)
)

var noiseFragments = []string{
	"good morning", "good night", "good evening", "have a great", "happy weekend",
	"join", "vip", "subscribe", "promo", "discount", "offer", "giveaway",
	"congratulations", "welcome", "link in bio", "t.me/", "http://", "https://",
	"register", "sign up", "free signals", "weekly report", "monthly report",
	"profit report", "testimonial", "thank you", "announcement", "live session",
	"webinar", "market update", "don't miss", "limited spots", "account management",
	"copy trading", "follow us", "check out", "pips this week", "results of",
}

// triage reports whether a message is chatter that should never reach
// the extractors. Strong trade phrasing always wins over the denylist.
func triage(text string) (noise bool, reason string) {
	lower := strings.ToLower(text)

	if strongIndicatorRe.MatchString(lower) {
		return false, ""
	}

	if utf8.RuneCountInString(lower) <= shortMessageRunes && statusKeywordRe.MatchString(lower) {
		return false, ""
	}

	for _, frag := range noiseFragments {
		if strings.Contains(lower, frag) {
			return true, "ignored: matched noise phrase \"" + frag + "\""
		}
	}

	if !hasAlphanumeric(lower) {
		return true, "ignored: no text content"
	}

	return false, ""
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
