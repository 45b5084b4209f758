package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReceiver struct {
	mu   sync.Mutex
	msgs []Message
	err  error
	got  chan Message
}

func newRecordingReceiver() *recordingReceiver {
	return &recordingReceiver{got: make(chan Message, 16)}
}

func (r *recordingReceiver) OnMessage(_ context.Context, msg Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	r.got <- msg
	return r.err
}

func (r *recordingReceiver) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func TestFilter(t *testing.T) {
	f := NewFilter([]string{" -1001 ", "gold_vip", ""})
	assert.True(t, f.Allows("-1001"))
	assert.True(t, f.Allows("gold_vip"))
	assert.False(t, f.Allows("other"))

	open := NewFilter(nil)
	assert.True(t, open.Allows("anything"))
}

func TestDispatcherDropsUnmonitoredChannels(t *testing.T) {
	rec := newRecordingReceiver()
	d := NewDispatcher(NewFilter([]string{"vip"}), rec)
	fixed := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	ok, err := d.Deliver(context.Background(), Message{Text: "EURUSD BUY", ChannelID: "free", MessageID: "1"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.Deliver(context.Background(), Message{Text: "EURUSD BUY", ChannelID: "vip", MessageID: "2"})
	require.NoError(t, err)
	assert.True(t, ok)

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "2", msgs[0].MessageID)
	assert.Equal(t, fixed, msgs[0].Timestamp)

	_, err = d.Deliver(context.Background(), Message{Text: "  ", ChannelID: "vip", MessageID: "3"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestWebhookHandler(t *testing.T) {
	rec := newRecordingReceiver()
	h := WebhookHandler(NewDispatcher(NewFilter([]string{"vip"}), rec), "s3cret")

	post := func(body, secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(body))
		if secret != "" {
			req.Header.Set(secretHeader, secret)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := post(`{"text":"XAUUSD SELL NOW","channel_id":"vip","message_id":"7"}`, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(`{not json`, "s3cret")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(`{"text":"","channel_id":"vip","message_id":"7"}`, "s3cret")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(`{"text":"XAUUSD SELL NOW","channel_id":"vip","message_id":"7","timestamp":"2025-03-04T12:00:00Z"}`, "s3cret")
	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp webhookResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Accepted)

	rr = post(`{"text":"XAUUSD SELL NOW","channel_id":"free","message_id":"8"}`, "s3cret")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.False(t, resp.Accepted)

	rec.err = errors.New("boom")
	rr = post(`{"text":"XAUUSD SELL NOW","channel_id":"vip","message_id":"9"}`, "s3cret")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestReconnectBackoff(t *testing.T) {
	b := newReconnectBackoff(time.Second, 5*time.Second)
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, 5*time.Second, b.NextBackOff())
	assert.Equal(t, 5*time.Second, b.NextBackOff())

	b.Reset()
	assert.Equal(t, time.Second, b.NextBackOff())
}

func TestRelayClientReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var conns int32
	var gotAuth atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		switch atomic.AddInt32(&conns, 1) {
		case 1:
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","text":"EURUSD BUY 1.1800","channel_id":"vip","message_id":"1"}`))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
		default:
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"edited_message","text":"EURUSD BUY 1.1805","channel_id":"vip","message_id":"1"}`))
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
	}))
	defer server.Close()

	rec := newRecordingReceiver()
	client := NewRelayClient(Config{
		RelayURL:          "ws" + strings.TrimPrefix(server.URL, "http"),
		RelayToken:        "tok",
		RelayReconnectMin: time.Millisecond,
		RelayReconnectMax: 10 * time.Millisecond,
	}, NewDispatcher(NewFilter(nil), rec))
	client.sleep = func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-rec.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("relay client did not stop")
	}

	msgs := rec.messages()
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].Edited)
	assert.True(t, msgs[1].Edited)
	assert.Equal(t, "EURUSD BUY 1.1805", msgs[1].Text)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&conns), int32(2))
	assert.Equal(t, "Bearer tok", gotAuth.Load())
}

func TestRelayClientRequiresURL(t *testing.T) {
	client := NewRelayClient(Config{}, NewDispatcher(NewFilter(nil), newRecordingReceiver()))
	assert.Error(t, client.Run(context.Background()))
}
