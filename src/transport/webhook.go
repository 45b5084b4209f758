package transport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"
)

const secretHeader = "X-Webhook-Secret"

type deliverer interface {
	Deliver(ctx context.Context, msg Message) (bool, error)
}

type webhookResponse struct {
	Accepted bool `json:"accepted"`
}

// WebhookHandler accepts a Message posted as JSON and hands it to the
// dispatcher. When secret is set the request must carry it.
func WebhookHandler(d deliverer, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), []byte(secret)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var msg Message
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&msg); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		accepted, err := d.Deliver(r.Context(), msg)
		if errors.Is(err, ErrInvalidMessage) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"channel_id": msg.ChannelID,
				"message_id": msg.MessageID,
			}).WithError(err).Error("failed to process webhook message")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(webhookResponse{Accepted: accepted}); err != nil {
			logger.WithError(err).Error("failed to encode webhook response")
		}
	}
}
