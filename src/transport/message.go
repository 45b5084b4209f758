package transport

import (
	"context"
	"errors"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
)

var ErrInvalidMessage = errors.New("message needs text, channel_id and message_id")

// Message is one channel post as delivered by the transport. Edits are
// delivered again with the same MessageID.
type Message struct {
	Text      string    `json:"text"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
	Edited    bool      `json:"edited,omitempty"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" || m.ChannelID == "" || m.MessageID == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Receiver consumes messages from monitored channels.
type Receiver interface {
	OnMessage(ctx context.Context, msg Message) error
}

// Filter admits messages from the configured channels. An empty list
// admits every channel.
type Filter struct {
	channels map[string]struct{}
}

func NewFilter(channels []string) Filter {
	f := Filter{channels: map[string]struct{}{}}
	for _, c := range channels {
		if c = strings.TrimSpace(c); c != "" {
			f.channels[c] = struct{}{}
		}
	}
	return f
}

func (f Filter) Allows(channelID string) bool {
	if len(f.channels) == 0 {
		return true
	}
	_, ok := f.channels[channelID]
	return ok
}

// Dispatcher applies the channel filter and forwards to the receiver.
type Dispatcher struct {
	filter   Filter
	receiver Receiver
	now      func() time.Time
}

func NewDispatcher(filter Filter, receiver Receiver) *Dispatcher {
	return &Dispatcher{filter: filter, receiver: receiver, now: time.Now}
}

// Deliver reports whether the message was forwarded.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}
	if !d.filter.Allows(msg.ChannelID) {
		logger.WithFields(map[string]interface{}{
			"component":  "Transport",
			"channel_id": msg.ChannelID,
			"message_id": msg.MessageID,
		}).Debug("Ignoring message from unmonitored channel")
		return false, nil
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = d.now().UTC()
	}
	return true, d.receiver.OnMessage(ctx, msg)
}
