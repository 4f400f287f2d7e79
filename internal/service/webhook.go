package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultHTTPStatusThreshold = 300

// SecurityWebhook pushes security alerts, such as refresh-token reuse, to an
// external monitoring endpoint. Notifications are fire-and-forget.
type SecurityWebhook struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
}

func NewSecurityWebhook(log *zap.SugaredLogger, webhookURL string) *SecurityWebhook {
	return &SecurityWebhook{
		client:     &http.Client{},
		log:        log,
		webhookURL: webhookURL,
	}
}

func (s *SecurityWebhook) NotifyTokenReuse(_ context.Context, data map[string]interface{}) {
	go func() {
		if s.webhookURL == "" {
			return
		}

		payload, err := json.Marshal(data)
		if err != nil {
			s.log.Errorw("failed to marshal webhook payload", "error", err)
			return
		}

		// The originating request context is not used here, it is canceled
		// as soon as the triggering response is written.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
		if err != nil {
			s.log.Errorw("failed to create webhook request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Errorw("failed to send webhook", "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= defaultHTTPStatusThreshold {
			s.log.Warnw("webhook returned non-2xx status", "status", resp.StatusCode)
		}
	}()
}
