package inspect

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"signalbridge/src/model"
)

type messageInterpreter interface {
	Interpret(text string) model.Signal
}

// Parse prints how the interpreter reads a message, without touching the
// venue or the database.
type Parse struct {
	Log         *logrus.Entry
	Out         io.Writer
	Interpreter messageInterpreter
}

func (p *Parse) Run(text string) error {
	text = strings.TrimSpace(text)
	sig := p.Interpreter.Interpret(text)

	p.Log.WithFields(map[string]interface{}{
		"intent": sig.Intent,
		"parsed": sig.Parsed,
	}).Debug("Message parsed")

	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(sig)
}
