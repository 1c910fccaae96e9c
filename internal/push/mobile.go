package push

import (
	"context"

	"firebase.google.com/go/v4/messaging"
	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/notifications"
)

// FCMSender delivers mobile pushes through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender creates an FCM-backed mobile pusher.
func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Send(ctx context.Context, token models.NotificationDeviceToken, msg notifications.PushMessage) error {
	m := &messaging.Message{
		Token: token.DeviceToken,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
	}
	if msg.PlaySound {
		m.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		}
		m.Android = &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{Sound: "default"},
		}
	}
	_, err := s.client.Send(ctx, m)
	if err != nil && messaging.IsUnregistered(err) {
		return notifications.ErrTokenGone
	}
	return err
}
