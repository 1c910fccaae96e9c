package models

import "time"

// Mobile device types accepted at registration.
const (
	DeviceTypeIOS     = "ios"
	DeviceTypeAndroid = "android"
)

// NotificationDeviceToken is one registered mobile push target. A permanent
// delivery failure (expired/invalid token) disables the row; re-registering
// the same token re-enables it.
type NotificationDeviceToken struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      int64     `json:"userId" gorm:"index"`
	DeviceType  string    `json:"deviceType" gorm:"size:10"`
	DeviceToken string    `json:"deviceToken" gorm:"uniqueIndex"`
	Enabled     bool      `json:"enabled" gorm:"default:true"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NotificationBrowserSubscription is one registered browser push endpoint
// (Push API subscription: endpoint plus the p256dh/auth key pair).
type NotificationBrowserSubscription struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"userId" gorm:"index"`
	Endpoint  string    `json:"endpoint" gorm:"uniqueIndex"`
	P256dhKey string    `json:"p256dhKey"`
	AuthKey   string    `json:"authKey"`
	Enabled   bool      `json:"enabled" gorm:"default:true"`
	CreatedAt time.Time `json:"createdAt"`
}
