package models

import "time"

// Notification is a persistent aggregation bucket. At most one unviewed
// notification exists per (user_id, type, entity_id) at any time; once viewed,
// a new event for the same key starts a fresh bucket.
type Notification struct {
	ID          uint                 `json:"id" gorm:"primaryKey"`
	UserID      int64                `json:"userId" gorm:"index:idx_notifications_user_type"`
	Type        string               `json:"type" gorm:"size:40;index:idx_notifications_user_type"`
	EntityID    *int64               `json:"entityId" gorm:"index"`
	ChallengeID string               `json:"challengeId,omitempty" gorm:"size:64"`
	Blocknumber int64                `json:"blocknumber"`
	Timestamp   time.Time            `json:"timestamp" gorm:"index"`
	IsViewed    bool                 `json:"isViewed" gorm:"default:false;index"`
	IsRead      bool                 `json:"isRead" gorm:"default:false"`
	IsHidden    bool                 `json:"isHidden" gorm:"default:false"`
	Actions     []NotificationAction `json:"actions" gorm:"foreignKey:NotificationID"`
}

// NotificationAction is one contributor recorded against a bucket: one more
// favoriter, a milestone threshold value, a trending rank. Unique on
// (notification_id, action_entity_type, action_entity_id) so replayed events
// are no-ops.
type NotificationAction struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	NotificationID   uint      `json:"notificationId" gorm:"index;uniqueIndex:idx_notification_actions_key"`
	ActionEntityType string    `json:"actionEntityType" gorm:"size:40;uniqueIndex:idx_notification_actions_key"`
	ActionEntityID   int64     `json:"actionEntityId" gorm:"uniqueIndex:idx_notification_actions_key"`
	Blocknumber      int64     `json:"blocknumber"`
	CreatedAt        time.Time `json:"createdAt"`
}
