package notifications

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
)

// ErrTokenGone is returned by a pusher when the provider reports the device
// token or subscription endpoint permanently invalid. The drain disables the
// registration and keeps going.
var ErrTokenGone = errors.New("push registration no longer valid")

// PushMessage is what a transport delivers to one device.
type PushMessage struct {
	Title     string
	Body      string
	PlaySound bool
}

// MobilePusher sends to one mobile device token (APNs/FCM).
type MobilePusher interface {
	Send(ctx context.Context, token models.NotificationDeviceToken, msg PushMessage) error
}

// BrowserPusher sends to one web-push subscription.
type BrowserPusher interface {
	Send(ctx context.Context, sub models.NotificationBrowserSubscription, msg PushMessage) error
}

// BufferedMessage is one in-flight push, held until the next drain. Process
// lifetime only; lost on crash and re-derived from the store on the next poll.
type BufferedMessage struct {
	UserID    int64
	Message   string
	Title     string
	PlaySound bool
	Channels  ChannelSet
}

type bufferKey struct {
	userID  int64
	message string
}

// PublishQueue buffers outgoing pushes and fans them out to the per-device
// transports on each drain. Publishing the same (user, message) pair twice
// before a drain collapses to one entry.
type PublishQueue struct {
	mu       sync.Mutex
	buffer   map[bufferKey]BufferedMessage
	order    []bufferKey
	draining bool

	mobile  MobilePusher
	browser BrowserPusher
	devices repositories.DeviceRepository
}

// NewPublishQueue creates a queue draining to the given transports.
func NewPublishQueue(mobile MobilePusher, browser BrowserPusher, devices repositories.DeviceRepository) *PublishQueue {
	return &PublishQueue{
		buffer:  make(map[bufferKey]BufferedMessage),
		mobile:  mobile,
		browser: browser,
		devices: devices,
	}
}

// Publish buffers a push for the user. Safe to call with identical arguments
// more than once.
func (q *PublishQueue) Publish(userID int64, message, title string, playSound bool, channels ChannelSet) {
	if !channels.Any() {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	key := bufferKey{userID: userID, message: message}
	if existing, ok := q.buffer[key]; ok {
		// Merge channels so a second publish on another channel is not lost.
		existing.Channels.Mobile = existing.Channels.Mobile || channels.Mobile
		existing.Channels.Browser = existing.Channels.Browser || channels.Browser
		q.buffer[key] = existing
		return
	}
	q.buffer[key] = BufferedMessage{
		UserID:    userID,
		Message:   message,
		Title:     title,
		PlaySound: playSound,
		Channels:  channels,
	}
	q.order = append(q.order, key)
}

// Len reports the number of buffered messages.
func (q *PublishQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Drain sends every buffered message and clears the buffer. A drain already
// in progress makes a second call return immediately; messages published
// during a drain wait for the next one. Per-device failures are logged and
// never abort the drain; a permanently invalid registration is disabled.
func (q *PublishQueue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.draining = true
	batch := make([]BufferedMessage, 0, len(q.order))
	for _, key := range q.order {
		batch = append(batch, q.buffer[key])
	}
	q.buffer = make(map[bufferKey]BufferedMessage)
	q.order = nil
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	for _, msg := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if msg.Channels.Mobile {
			q.sendMobile(ctx, msg)
		}
		if msg.Channels.Browser {
			q.sendBrowser(ctx, msg)
		}
	}
	return nil
}

func (q *PublishQueue) sendMobile(ctx context.Context, msg BufferedMessage) {
	tokens, err := q.devices.GetDevices(msg.UserID)
	if err != nil {
		log.Printf("push: load devices for user %d: %v", msg.UserID, err)
		return
	}
	payload := PushMessage{Title: msg.Title, Body: msg.Message, PlaySound: msg.PlaySound}
	for _, token := range tokens {
		err := q.mobile.Send(ctx, token, payload)
		switch {
		case errors.Is(err, ErrTokenGone):
			if derr := q.devices.DisableDevice(token.DeviceToken); derr != nil {
				log.Printf("push: disable stale device for user %d: %v", msg.UserID, derr)
			}
		case err != nil:
			log.Printf("push: mobile send to user %d failed: %v", msg.UserID, err)
		}
	}
}

func (q *PublishQueue) sendBrowser(ctx context.Context, msg BufferedMessage) {
	subs, err := q.devices.GetBrowserSubscriptions(msg.UserID)
	if err != nil {
		log.Printf("push: load browser subscriptions for user %d: %v", msg.UserID, err)
		return
	}
	payload := PushMessage{Title: msg.Title, Body: msg.Message, PlaySound: msg.PlaySound}
	for _, sub := range subs {
		err := q.browser.Send(ctx, sub, payload)
		switch {
		case errors.Is(err, ErrTokenGone):
			if derr := q.devices.DisableBrowser(sub.Endpoint); derr != nil {
				log.Printf("push: disable stale browser subscription for user %d: %v", msg.UserID, derr)
			}
		case err != nil:
			log.Printf("push: browser send to user %d failed: %v", msg.UserID, err)
		}
	}
}
