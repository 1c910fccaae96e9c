package models

// Email digest frequencies.
const (
	EmailFrequencyOff    = "off"
	EmailFrequencyLive   = "live"
	EmailFrequencyDaily  = "daily"
	EmailFrequencyWeekly = "weekly"
)

// UserNotificationSettings holds the per-category channel toggles and the
// email digest frequency for one user. Rows are created lazily; a user with
// no row gets every category enabled on every channel (the defaults below).
type UserNotificationSettings struct {
	ID     uint  `json:"-" gorm:"primaryKey"`
	UserID int64 `json:"userId" gorm:"uniqueIndex"`

	MobileFollowers  bool `json:"mobileFollowers"`
	MobileReposts    bool `json:"mobileReposts"`
	MobileFavorites  bool `json:"mobileFavorites"`
	MobileRemixes    bool `json:"mobileRemixes"`
	MobileMilestones bool `json:"mobileMilestonesAndAchievements"`

	BrowserFollowers  bool `json:"browserFollowers"`
	BrowserReposts    bool `json:"browserReposts"`
	BrowserFavorites  bool `json:"browserFavorites"`
	BrowserRemixes    bool `json:"browserRemixes"`
	BrowserMilestones bool `json:"browserMilestonesAndAchievements"`

	EmailFrequency string `json:"emailFrequency" gorm:"size:10"`
}

// DefaultNotificationSettings returns the settings applied to a user with no
// stored row: everything on, live email.
func DefaultNotificationSettings(userID int64) UserNotificationSettings {
	return UserNotificationSettings{
		UserID:            userID,
		MobileFollowers:   true,
		MobileReposts:     true,
		MobileFavorites:   true,
		MobileRemixes:     true,
		MobileMilestones:  true,
		BrowserFollowers:  true,
		BrowserReposts:    true,
		BrowserFavorites:  true,
		BrowserRemixes:    true,
		BrowserMilestones: true,
		EmailFrequency:    EmailFrequencyLive,
	}
}

// UpdateSettingsRequest is the POST /notifications/settings body. Pointer
// fields distinguish "not provided" from "set to false".
type UpdateSettingsRequest struct {
	MobileFollowers   *bool   `json:"mobileFollowers"`
	MobileReposts     *bool   `json:"mobileReposts"`
	MobileFavorites   *bool   `json:"mobileFavorites"`
	MobileRemixes     *bool   `json:"mobileRemixes"`
	MobileMilestones  *bool   `json:"mobileMilestonesAndAchievements"`
	BrowserFollowers  *bool   `json:"browserFollowers"`
	BrowserReposts    *bool   `json:"browserReposts"`
	BrowserFavorites  *bool   `json:"browserFavorites"`
	BrowserRemixes    *bool   `json:"browserRemixes"`
	BrowserMilestones *bool   `json:"browserMilestonesAndAchievements"`
	EmailFrequency    *string `json:"emailFrequency" validate:"omitempty,oneof=off live daily weekly"`
}
