package interpreter

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"signalbridge/src/model"
)

const (
	numPat  = `\b(\d+(?:\.\d+)?)`
	sepPat  = `\s*(?:->|-|~|\||/|→|➡️|➡|\bto\b|\band\b)\s*`
	listSep = `\s*(?:,|/|\||-|&|\band\b|\s)\s*`
	rawNum  = `\d+(?:\.\d+)?`

	minLot = 0.0
	maxLot = 100.0

	// bounds of the unlabeled price scan
	minPlausiblePrice = 0.1
	maxPlausiblePrice = 10000.0
)

var (
	// entry templates, tried in order on text with stop/target/lot phrases masked out
	zoneLabelRe       = regexp.MustCompile(`\b(?:entry\s*(?:zone|area|price|point|level)?|zone|enter|open\s+price)\s*[:=@\-]?\s*(?:at\s+|@\s*|between\s+|from\s+)?` + numPat + sepPat + numPat)
	emojiZoneRe       = regexp.MustCompile(`\p{So}\x{FE0F}?\s*` + numPat + sepPat + numPat)
	directionZoneRe   = regexp.MustCompile(`\b(?:buy|sell|long|short)\b(?:\s+(?:now|limit|stop|zone|at|@|from|between|[a-z][a-z0-9.]{2,9})){0,3}?\s*[:@]?\s*` + numPat + sepPat + numPat)
	singleLabelRe     = regexp.MustCompile(`(?:\b(?:entry\s*(?:price|point|level)?|enter|open\s+price|price)|@)\s*[:=@\-]?\s*(?:at\s+)?` + numPat)
	directionPriceRe  = regexp.MustCompile(`\b(?:buy|sell|long|short)\b(?:\s+(?:now|limit|stop|at|@|from|[a-z][a-z0-9.]{2,9})){0,3}?\s*[:@]?\s*` + numPat)
	marketRe          = regexp.MustCompile(`\b(?:market(?:\s+(?:execution|order|price))?|now|cmp|current\s+(?:market\s+)?price|instant)\b`)
	plausiblePriceRe  = regexp.MustCompile(numPat)
	stopTargetMaskRe  = regexp.MustCompile(`\b(?:sl|s/l|stop\s*loss|stoploss|tps?\s*[1-3]?|take\s*profits?\s*[1-3]?|targets?\s*[1-3]?|tgt\s*[1-3]?|(?:1st|2nd|3rd|first|second|third)\s+(?:tp|target|take\s*profit))\b[^\d\n]{0,30}` + rawNum + `(?:` + listSep + rawNum + `)*`)
	emojiLevelMaskRe  = regexp.MustCompile(`(?:🛑|⛔|🎯|💰)\s*[:=]?\s*` + rawNum)
	lotMaskRe         = regexp.MustCompile(`\b(?:lots?|lot\s*size|volume|vol)\b\s*[:=@]?\s*` + rawNum + `|\b` + rawNum + `\s*lots?\b`)
	stopLossRe        = regexp.MustCompile(`\b(?:sl|s/l|stop\s*loss|stoploss)\b[^\d\n]{0,30}` + numPat)
	stopLossEmojiRe   = regexp.MustCompile(`(?:🛑|⛔)\s*(?:sl\b)?\s*[:=]?\s*` + numPat)
	numberedTPRe      = regexp.MustCompile(`\b(?:tp|take\s*profit|target|tgt)\s*([1-3])(?:\s*[:=@\-)]\s*|\s+)(?:at\s+|@\s*|to\s+)?` + numPat)
	ordinalTPRe       = regexp.MustCompile(`\b(first|second|third|1st|2nd|3rd)\s+(?:tp|target|take\s*profit)\s*[:=@\-]?\s*` + numPat)
	tpListRe          = regexp.MustCompile(`\b(?:tps?|targets?|take\s*profits?|tgt)\b\s*[:=@\-]?\s*(` + rawNum + `(?:` + listSep + rawNum + `)*)`)
	emojiTPLineRe     = regexp.MustCompile(`(?m)^(?:🎯|💰)\s*(?:tp\s*)?[:=]?\s*` + numPat)
	lotRe             = regexp.MustCompile(`\b(?:lots?|lot\s*size|volume|vol)\b\s*[:=@]?\s*` + numPat + `|` + numPat + `\s*lots?\b`)
	pipsSuffixRe      = regexp.MustCompile(`^\s*(?:pips?|points?|pts)\b`)
	pairSlashRe       = regexp.MustCompile(`\b([A-Z]{3})\s*/\s*([A-Z]{3})\b`)
	rawNumRe          = regexp.MustCompile(rawNum)
	shorthandDigitsRe = regexp.MustCompile(`^\d+$`)
)

var ordinalLevels = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
}

// terms holds every value the extractors could find, regardless of intent.
type terms struct {
	symbol      string
	direction   model.Direction
	entryMin    *float64
	entryMax    *float64
	market      bool
	stopLoss    *float64
	takeProfits []float64
	numbered    map[int]float64
	lot         *float64
}

func (t terms) full() bool {
	return t.entryMin != nil && t.stopLoss != nil && len(t.takeProfits) > 0
}

func (in *Interpreter) extract(norm string) terms {
	lower := strings.ToLower(norm)

	t := terms{
		symbol:    in.extractSymbol(strings.ToUpper(norm)),
		direction: direction(lower),
		stopLoss:  extractStopLoss(lower),
		lot:       extractLot(lower),
	}
	t.numbered = extractNumberedTargets(lower)
	t.takeProfits = orderedTargets(lower, t.numbered, t.stopLoss, t.direction)
	t.entryMin, t.entryMax, t.market = extractEntry(lower)
	return t
}

// extractSymbol returns the instrument mentioned first; at equal
// positions the longer name wins, instruments before aliases.
func (in *Interpreter) extractSymbol(upper string) string {
	upper = pairSlashRe.ReplaceAllStringFunc(upper, func(m string) string {
		parts := pairSlashRe.FindStringSubmatch(m)
		if in.known[parts[1]+parts[2]] {
			return parts[1] + parts[2]
		}
		return m
	})

	best, symbol := -1, ""
	if loc := in.instrumentRe.FindStringSubmatchIndex(upper); loc != nil {
		best, symbol = loc[0], upper[loc[2]:loc[3]]
	}
	if loc := in.aliasRe.FindStringSubmatchIndex(upper); loc != nil && (best < 0 || loc[0] < best) {
		symbol = upper[loc[2]:loc[3]]
	}
	if symbol == "" {
		return ""
	}
	return in.vocab.resolve(symbol)
}

func extractStopLoss(lower string) *float64 {
	for _, re := range []*regexp.Regexp{stopLossRe, stopLossEmojiRe} {
		if v := firstPrice(re, lower); v != nil {
			return v
		}
	}
	return nil
}

// firstPrice returns the first capture of re that is a price rather
// than a distance in pips.
func firstPrice(re *regexp.Regexp, text string) *float64 {
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end := lastGroup(loc)
		if start < 0 || pipsSuffixRe.MatchString(text[end:]) {
			continue
		}
		if v, err := strconv.ParseFloat(text[start:end], 64); err == nil && v > 0 {
			return &v
		}
	}
	return nil
}

// lastGroup returns the bounds of the last participating capture group.
func lastGroup(loc []int) (int, int) {
	for i := len(loc) - 2; i >= 2; i -= 2 {
		if loc[i] >= 0 {
			return loc[i], loc[i+1]
		}
	}
	return -1, -1
}

func extractNumberedTargets(lower string) map[int]float64 {
	out := map[int]float64{}
	for _, loc := range numberedTPRe.FindAllStringSubmatchIndex(lower, -1) {
		if pipsSuffixRe.MatchString(lower[loc[5]:]) {
			continue
		}
		level, _ := strconv.Atoi(lower[loc[2]:loc[3]])
		v, err := strconv.ParseFloat(lower[loc[4]:loc[5]], 64)
		if _, seen := out[level]; err == nil && !seen && v > 0 {
			out[level] = v
		}
	}
	for _, m := range ordinalTPRe.FindAllStringSubmatch(lower, -1) {
		level := ordinalLevels[m[1]]
		v, err := strconv.ParseFloat(m[2], 64)
		if _, seen := out[level]; err == nil && !seen && v > 0 {
			out[level] = v
		}
	}
	return out
}

// orderedTargets picks targets by precedence: numbered labels, then
// repeated label lines sorted away from the entry, then a single label
// list kept in written order with values next to the stop loss removed.
func orderedTargets(lower string, numbered map[int]float64, stopLoss *float64, dir model.Direction) []float64 {
	if len(numbered) > 0 {
		levels := make([]int, 0, len(numbered))
		for l := range numbered {
			levels = append(levels, l)
		}
		sort.Ints(levels)
		out := make([]float64, 0, len(levels))
		for _, l := range levels {
			out = append(out, numbered[l])
		}
		return out
	}

	var values []float64
	lists := tpListRe.FindAllStringSubmatchIndex(lower, -1)
	for _, loc := range lists {
		if pipsSuffixRe.MatchString(lower[loc[3]:]) {
			continue
		}
		for _, s := range rawNumRe.FindAllString(lower[loc[2]:loc[3]], -1) {
			if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
				values = append(values, v)
			}
		}
	}
	emojiLines := emojiTPLineRe.FindAllStringSubmatch(lower, -1)
	for _, m := range emojiLines {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			values = append(values, v)
		}
	}

	repeated := len(lists)+len(emojiLines) > 1
	if !repeated && stopLoss != nil {
		filtered := values[:0]
		for _, v := range values {
			if !adjacent(v, *stopLoss) {
				filtered = append(filtered, v)
			}
		}
		values = filtered
	}

	values = dedupe(values)
	if repeated {
		if dir == model.DirectionShort {
			sort.Sort(sort.Reverse(sort.Float64Slice(values)))
		} else if dir == model.DirectionLong {
			sort.Float64s(values)
		}
	}
	if len(values) > 3 {
		values = values[:3]
	}
	return values
}

// adjacent reports whether v is within 5 basis points of ref.
func adjacent(v, ref float64) bool {
	diff := v - ref
	if diff < 0 {
		diff = -diff
	}
	return diff <= ref*0.0005
}

func dedupe(values []float64) []float64 {
	seen := map[float64]bool{}
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func extractLot(lower string) *float64 {
	v := firstPrice(lotRe, lower)
	if v == nil || *v <= minLot || *v > maxLot {
		return nil
	}
	return v
}

// extractEntry tries the entry templates in order. market is true when
// the message asks for immediate execution without a band.
func extractEntry(lower string) (min, max *float64, market bool) {
	masked := maskNonEntry(lower)

	for _, re := range []*regexp.Regexp{zoneLabelRe, emojiZoneRe, directionZoneRe} {
		if m := re.FindStringSubmatch(masked); m != nil {
			lo, hi, ok := zone(m[1], m[2])
			if ok {
				return &lo, &hi, false
			}
		}
	}

	for _, re := range []*regexp.Regexp{singleLabelRe, directionPriceRe} {
		if v := firstPrice(re, masked); v != nil {
			return v, model.Float(*v), false
		}
	}

	if marketRe.MatchString(masked) {
		return nil, nil, true
	}

	for _, s := range plausiblePriceRe.FindAllString(masked, -1) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			continue
		}
		if v < minPlausiblePrice || v > maxPlausiblePrice {
			continue
		}
		// bare level digits such as "1" left over from labels
		if !strings.Contains(s, ".") && v < 10 {
			continue
		}
		return &v, model.Float(v), false
	}

	return nil, nil, false
}

func maskNonEntry(lower string) string {
	blank := func(s string) string { return strings.Repeat(" ", len(s)) }
	s := stopTargetMaskRe.ReplaceAllStringFunc(lower, blank)
	s = emojiLevelMaskRe.ReplaceAllStringFunc(s, blank)
	return lotMaskRe.ReplaceAllStringFunc(s, blank)
}

// zone parses a two-sided band. A shorter second bound borrows the
// leading digits of the first, so "2345-50" reads as 2345-2350.
func zone(a, b string) (lo, hi float64, ok bool) {
	first, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, false
	}
	if shorthandDigitsRe.MatchString(b) {
		intPart := strings.SplitN(a, ".", 2)[0]
		if len(b) < len(intPart) {
			b = intPart[:len(intPart)-len(b)] + b
		}
	}
	second, err := strconv.ParseFloat(b, 64)
	if err != nil || first <= 0 || second <= 0 {
		return 0, 0, false
	}
	if first > second {
		first, second = second, first
	}
	return first, second, true
}
