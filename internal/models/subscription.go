package models

import "time"

// Subscription means subscriberId wants an update whenever userId uploads.
type Subscription struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SubscriberID int64     `json:"subscriberId" gorm:"index;uniqueIndex:idx_subscriber_user"`
	UserID       int64     `json:"userId" gorm:"index;uniqueIndex:idx_subscriber_user"`
	CreatedAt    time.Time `json:"createdAt"`
}
