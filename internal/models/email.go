package models

import "time"

// NotificationEmail records one successfully sent digest. The most recent row
// per user is the start time for the next digest; it is only written after the
// smtp send succeeds, so a failed send retries naturally on the next cycle.
type NotificationEmail struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         int64     `json:"userId" gorm:"index"`
	EmailFrequency string    `json:"emailFrequency" gorm:"size:10"`
	Timestamp      time.Time `json:"timestamp" gorm:"index"`
}
