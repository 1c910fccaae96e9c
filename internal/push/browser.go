package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/notifications"
)

// WebPushSender delivers browser pushes by posting the payload to each
// subscription's endpoint. A 404 or 410 from the push service means the
// subscription is gone and the registration should be dropped.
type WebPushSender struct {
	client *http.Client
	ttl    int
}

// NewWebPushSender creates a browser pusher.
func NewWebPushSender() *WebPushSender {
	return &WebPushSender{
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    60,
	}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.NotificationBrowserSubscription, msg notifications.PushMessage) error {
	body, err := json.Marshal(map[string]string{
		"title":   msg.Title,
		"message": msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", fmt.Sprintf("%d", s.ttl))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return notifications.ErrTokenGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("web push: unexpected status %d", resp.StatusCode)
	}
	return nil
}
