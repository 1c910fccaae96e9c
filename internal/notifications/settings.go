package notifications

import (
	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
)

// categoryFor maps a notification type to its settings category. Types absent
// from the map have no user-facing toggle and are gated only by the override
// rules below.
var categoryFor = map[NotificationType]Category{
	TypeFollow: CategoryFollowers,

	TypeRepostTrack:    CategoryReposts,
	TypeRepostAlbum:    CategoryReposts,
	TypeRepostPlaylist: CategoryReposts,

	TypeFavoriteTrack:    CategoryFavorites,
	TypeFavoriteAlbum:    CategoryFavorites,
	TypeFavoritePlaylist: CategoryFavorites,

	TypeRemixCreate: CategoryRemixes,

	TypeMilestoneFollow:   CategoryMilestones,
	TypeMilestoneRepost:   CategoryMilestones,
	TypeMilestoneFavorite: CategoryMilestones,
	TypeMilestoneListen:   CategoryMilestones,
	TypeTrendingTrack:     CategoryMilestones,
	TypeChallengeReward:   CategoryMilestones,
}

// alwaysPush types bypass per-category settings and go to both channels.
var alwaysPush = map[NotificationType]bool{
	TypeRemixCosign:    true,
	TypeCreateTrack:    true,
	TypeCreateAlbum:    true,
	TypeCreatePlaylist: true,
}

// SettingsResolver decides, per recipient and notification type, which push
// channels a notification may go out on.
type SettingsResolver struct {
	settings repositories.SettingsRepository
}

// NewSettingsResolver creates a resolver backed by the settings store.
func NewSettingsResolver(settings repositories.SettingsRepository) *SettingsResolver {
	return &SettingsResolver{settings: settings}
}

// Resolve batch-loads settings for the recipients and returns a per-user
// channel decision for the given type. Users without a stored settings row
// get the all-enabled defaults.
func (r *SettingsResolver) Resolve(nType NotificationType, userIDs []int64) (map[int64]ChannelSet, error) {
	result := make(map[int64]ChannelSet, len(userIDs))
	if alwaysPush[nType] {
		for _, id := range userIDs {
			result[id] = ChannelSet{Mobile: true, Browser: true}
		}
		return result, nil
	}
	settings, err := r.settings.GetByUserIDs(userIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		result[id] = channelsFor(nType, settings[id])
	}
	return result, nil
}

// ChannelSet is the per-user outcome of a settings check.
type ChannelSet struct {
	Mobile  bool
	Browser bool
}

// Any reports whether at least one channel is enabled.
func (c ChannelSet) Any() bool { return c.Mobile || c.Browser }

func channelsFor(nType NotificationType, s models.UserNotificationSettings) ChannelSet {
	cat, ok := categoryFor[nType]
	if !ok {
		// No toggle for this type (supporter rank changes, announcements).
		return ChannelSet{Mobile: true, Browser: true}
	}
	switch cat {
	case CategoryFollowers:
		return ChannelSet{Mobile: s.MobileFollowers, Browser: s.BrowserFollowers}
	case CategoryReposts:
		return ChannelSet{Mobile: s.MobileReposts, Browser: s.BrowserReposts}
	case CategoryFavorites:
		return ChannelSet{Mobile: s.MobileFavorites, Browser: s.BrowserFavorites}
	case CategoryRemixes:
		return ChannelSet{Mobile: s.MobileRemixes, Browser: s.BrowserRemixes}
	case CategoryMilestones:
		return ChannelSet{Mobile: s.MobileMilestones, Browser: s.BrowserMilestones}
	}
	return ChannelSet{}
}
