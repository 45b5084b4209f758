package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"signalbridge/src/lifecycle"
	"signalbridge/src/model"
	"signalbridge/src/transport"
)

type signalInterpreter interface {
	InterpretMessage(text, channelID, messageID string, receivedAt time.Time) model.Signal
}

type signalLogRepository interface {
	Create(ctx context.Context, log *model.SignalLog) error
}

type signalRouter interface {
	Handle(ctx context.Context, sig model.Signal) error
}

// SignalController turns channel messages into lifecycle operations.
type SignalController struct {
	cfg         Config
	interpreter signalInterpreter
	router      signalRouter
	signalLogs  signalLogRepository
	exceptions  exceptionRepository
}

var _ transport.Receiver = (*SignalController)(nil)

func NewSignalController(cfg Config, in signalInterpreter, router signalRouter) *SignalController {
	return &SignalController{cfg: cfg, interpreter: in, router: router}
}

func (c *SignalController) WithSignalLogs(repo signalLogRepository) *SignalController {
	c.signalLogs = repo
	return c
}

func (c *SignalController) WithExceptions(repo exceptionRepository) *SignalController {
	c.exceptions = repo
	return c
}

// OnMessage interprets the message, records it and routes the resulting
// signal. Messages that target nothing or repeat an earlier trade are
// logged and dropped; only infrastructure failures are returned.
func (c *SignalController) OnMessage(ctx context.Context, msg transport.Message) error {
	sig := c.interpreter.InterpretMessage(msg.Text, msg.ChannelID, msg.MessageID, msg.Timestamp)

	fields := map[string]interface{}{
		"signal_id":  sig.ID,
		"channel_id": msg.ChannelID,
		"message_id": msg.MessageID,
		"intent":     sig.Intent,
		"edited":     msg.Edited,
	}

	if c.signalLogs != nil && (c.cfg.LogNoise || !isNoise(sig)) {
		if err := c.signalLogs.Create(ctx, model.NewSignalLog(sig)); err != nil {
			Capture(ctx, c.exceptions, c.cfg.ServiceName, "controller", "SignalLogCreate", "warn", err, fields)
		}
	}

	if !sig.Parsed {
		if !isNoise(sig) {
			fields["errors"] = strings.Join(sig.ParseErrors, "; ")
			logger.WithFields(fields).Info("Message not actionable")
		}
		return nil
	}

	err := c.router.Handle(ctx, sig)
	switch {
	case err == nil:
		logger.WithFields(fields).Info("Signal handled")
		return nil
	case errors.Is(err, lifecycle.ErrDuplicate):
		logger.WithFields(fields).Info("Signal already produced a trade, ignoring")
		return nil
	case errors.Is(err, lifecycle.ErrNoTarget):
		logger.WithFields(fields).Warn("No open trade matches the update")
		return nil
	default:
		fields["symbol"] = sig.Symbol
		Capture(ctx, c.exceptions, c.cfg.ServiceName, "lifecycle", string(sig.Intent), "error", err, fields)
		return err
	}
}

func isNoise(sig model.Signal) bool {
	return sig.Intent == model.IntentUnrecognized &&
		len(sig.ParseErrors) > 0 &&
		strings.HasPrefix(sig.ParseErrors[0], "ignored:")
}
