package interpreter

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"signalbridge/src/model"
	"signalbridge/src/utils"

	logger "github.com/sirupsen/logrus"
)

// Interpreter turns raw channel text into a Signal. It holds no mutable
// state and is safe for concurrent use.
type Interpreter struct {
	vocab        Vocabulary
	known        map[string]bool
	instrumentRe *regexp.Regexp
	aliasRe      *regexp.Regexp

	now   func() time.Time
	newID func() string
}

// New builds an interpreter for the given vocabulary.
func New(vocab Vocabulary) *Interpreter {
	in := &Interpreter{
		vocab: vocab,
		known: make(map[string]bool, len(vocab.Instruments)),
		now:   time.Now,
		newID: utils.NewID,
	}
	for _, s := range vocab.Instruments {
		in.known[s] = true
	}

	var instruments, aliases []string
	for _, name := range vocab.names() {
		if in.known[name] {
			instruments = append(instruments, regexp.QuoteMeta(name))
		} else {
			aliases = append(aliases, regexp.QuoteMeta(name))
		}
	}
	sort.SliceStable(instruments, func(i, j int) bool { return len(instruments[i]) > len(instruments[j]) })

	// broker suffixes such as XAUUSDm or EURUSD.r
	in.instrumentRe = regexp.MustCompile(`\b(` + strings.Join(instruments, "|") + `)(?:\.?[A-Z]{1,2})?\b`)
	if len(aliases) == 0 {
		aliases = []string{`\x00`}
	}
	in.aliasRe = regexp.MustCompile(`\b(` + strings.Join(aliases, "|") + `)\b`)
	return in
}

// NewDefault builds an interpreter with the built-in vocabulary.
func NewDefault() *Interpreter {
	return New(DefaultVocabulary())
}

// Interpret classifies text received outside any channel context.
func (in *Interpreter) Interpret(text string) model.Signal {
	return in.InterpretMessage(text, "", "", in.now())
}

// InterpretMessage classifies one channel message. It never fails: text
// that cannot be understood yields an Unrecognized signal with reasons.
func (in *Interpreter) InterpretMessage(text, channelID, messageID string, receivedAt time.Time) model.Signal {
	sig := model.Signal{
		ID:         in.newID(),
		ChannelID:  channelID,
		MessageID:  messageID,
		ReceivedAt: receivedAt,
		RawText:    text,
		Intent:     model.IntentUnrecognized,
	}

	norm := normalize(text)
	if norm == "" {
		sig.ParseErrors = []string{"ignored: empty message"}
		return sig
	}

	if noise, reason := triage(norm); noise {
		sig.ParseErrors = []string{reason}
		logger.WithFields(map[string]interface{}{
			"channel_id": channelID,
			"message_id": messageID,
			"reason":     reason,
		}).Debug("Message triaged as noise")
		return sig
	}

	t := in.extract(norm)
	c := classify(strings.ToLower(norm), t.full(), in.isSymbol)

	sig.Intent = c.intent
	sig.Symbol = t.symbol
	sig.Direction = t.direction

	switch c.intent {
	case model.IntentNewTrade:
		sig.EntryMin = t.entryMin
		sig.EntryMax = t.entryMax
		sig.StopLoss = t.stopLoss
		sig.TakeProfits = t.takeProfits
		sig.LotSize = t.lot

	case model.IntentTakeProfitHit:
		sig.TPLevel = c.level

	case model.IntentCloseTrade:
		sig.Cancel = c.cancel

	case model.IntentUpdateStopLoss:
		sig.StopLoss = t.stopLoss

	case model.IntentUpdateTakeProfit:
		sig.TPLevel, sig.TakeProfits = updatedTargets(t)

	case model.IntentUnrecognized:
		sig.ParseErrors = []string{"unrecognized message"}
		return sig
	}

	sig.ParseErrors = validate(sig)
	sig.Parsed = len(sig.ParseErrors) == 0

	logger.WithFields(map[string]interface{}{
		"channel_id": channelID,
		"message_id": messageID,
		"intent":     sig.Intent,
		"symbol":     sig.Symbol,
		"direction":  sig.Direction,
		"parsed":     sig.Parsed,
	}).Debug("Message interpreted")

	return sig
}

// isSymbol reports whether word is an instrument or alias on its own.
func (in *Interpreter) isSymbol(word string) bool {
	if word == "" {
		return false
	}
	return in.extractSymbol(strings.ToUpper(word)) != ""
}

// updatedTargets returns a single numbered target as (level, [value]),
// otherwise the targets in level order with level 0.
func updatedTargets(t terms) (int, []float64) {
	if len(t.numbered) == 1 {
		for level, v := range t.numbered {
			return level, []float64{v}
		}
	}
	return 0, t.takeProfits
}
