package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/utils"
)

// relayFrame is the wire format pushed by the relay, one JSON object per
// websocket text frame.
type relayFrame struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	frameMessage = "message"
	frameEdited  = "edited_message"
	framePing    = "ping"
)

// RelayClient keeps a websocket subscription to a channel relay open and
// feeds every frame to the dispatcher. Dropped connections are redialled
// with exponential backoff.
type RelayClient struct {
	cfg        Config
	dispatcher deliverer
	dialer     *websocket.Dialer
	sleep      func(ctx context.Context, d time.Duration) bool
}

func NewRelayClient(cfg Config, d deliverer) *RelayClient {
	return &RelayClient{
		cfg:        cfg,
		dispatcher: d,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		},
		sleep: utils.SleepContext,
	}
}

// Run blocks until ctx is done.
func (c *RelayClient) Run(ctx context.Context) error {
	if c.cfg.RelayURL == "" {
		return errors.New("relay url is empty")
	}
	log := logger.WithFields(map[string]interface{}{
		"component": "RelayClient",
		"url":       c.cfg.RelayURL,
	})

	retry := newReconnectBackoff(c.cfg.RelayReconnectMin, c.cfg.RelayReconnectMax)
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			log.Info("Relay client stopped")
			return nil
		}
		if connected {
			retry.Reset()
		}
		wait := retry.NextBackOff()
		log.WithError(err).WithField("retry_in", wait.String()).Warn("Relay connection lost")
		if !c.sleep(ctx, wait) {
			log.Info("Relay client stopped")
			return nil
		}
	}
}

// newReconnectBackoff doubles from lo up to hi and never gives up.
func newReconnectBackoff(lo, hi time.Duration) *backoff.ExponentialBackOff {
	if lo <= 0 {
		lo = time.Second
	}
	if hi < lo {
		hi = lo
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lo
	b.MaxInterval = hi
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// session runs one connection until it fails. connected reports whether
// the dial succeeded.
func (c *RelayClient) session(ctx context.Context) (connected bool, err error) {
	header := http.Header{}
	if c.cfg.RelayToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.RelayToken)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.RelayURL, header)
	if err != nil {
		return false, fmt.Errorf("ws dial failed: %w", err)
	}
	logger.WithField("component", "RelayClient").Info("Relay connected")

	var once sync.Once
	closeConn := func() {
		once.Do(func() {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	if c.cfg.RelayReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.RelayReadTimeout))
		conn.SetPingHandler(func(data string) error {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.RelayReadTimeout))
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		})
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				strings.Contains(err.Error(), "use of closed network connection") {
				return true, nil
			}
			return true, fmt.Errorf("ws read failed: %w", err)
		}
		if c.cfg.RelayReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.RelayReadTimeout))
		}
		c.handleFrame(ctx, raw)
	}
}

func (c *RelayClient) handleFrame(ctx context.Context, raw []byte) {
	var f relayFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logger.WithField("component", "RelayClient").WithError(err).Warn("Dropping malformed relay frame")
		return
	}

	switch f.Type {
	case framePing:
		return
	case frameMessage, frameEdited, "":
	default:
		logger.WithFields(map[string]interface{}{
			"component": "RelayClient",
			"type":      f.Type,
		}).Debug("Ignoring relay frame")
		return
	}

	msg := Message{
		Text:      f.Text,
		ChannelID: f.ChannelID,
		MessageID: f.MessageID,
		Timestamp: f.Timestamp,
		Edited:    f.Type == frameEdited,
	}
	if _, err := c.dispatcher.Deliver(ctx, msg); err != nil {
		logger.WithFields(map[string]interface{}{
			"component":  "RelayClient",
			"channel_id": f.ChannelID,
			"message_id": f.MessageID,
		}).WithError(err).Error("Failed to process relay message")
	}
}
