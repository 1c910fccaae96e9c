package notifications

import (
	"sort"
	"time"
)

// NotificationType is the persisted bucket type tag.
type NotificationType string

const (
	TypeFollow NotificationType = "Follow"

	TypeRepostTrack    NotificationType = "RepostTrack"
	TypeRepostAlbum    NotificationType = "RepostAlbum"
	TypeRepostPlaylist NotificationType = "RepostPlaylist"

	TypeFavoriteTrack    NotificationType = "FavoriteTrack"
	TypeFavoriteAlbum    NotificationType = "FavoriteAlbum"
	TypeFavoritePlaylist NotificationType = "FavoritePlaylist"

	TypeCreateTrack    NotificationType = "CreateTrack"
	TypeCreateAlbum    NotificationType = "CreateAlbum"
	TypeCreatePlaylist NotificationType = "CreatePlaylist"

	TypeRemixCreate NotificationType = "RemixCreate"
	TypeRemixCosign NotificationType = "RemixCosign"

	TypeMilestoneFollow   NotificationType = "MilestoneFollow"
	TypeMilestoneRepost   NotificationType = "MilestoneRepost"
	TypeMilestoneFavorite NotificationType = "MilestoneFavorite"
	TypeMilestoneListen   NotificationType = "MilestoneListen"

	TypeTrendingTrack      NotificationType = "TrendingTrack"
	TypeChallengeReward    NotificationType = "ChallengeReward"
	TypeSupporterRankUp    NotificationType = "SupporterRankUp"
	TypeSupportingRankUp   NotificationType = "SupportingRankUp"
	TypeSupporterDethroned NotificationType = "SupporterDethroned"

	TypeAnnouncement NotificationType = "Announcement"
)

// ActionEntityType tags what an action's entity id refers to.
type ActionEntityType string

const (
	ActionUser     ActionEntityType = "User"
	ActionTrack    ActionEntityType = "Track"
	ActionAlbum    ActionEntityType = "Album"
	ActionPlaylist ActionEntityType = "Playlist"

	// ActionMilestone actions store the threshold reached as the entity id;
	// ActionRank actions store a chart or supporter rank.
	ActionMilestone ActionEntityType = "Milestone"
	ActionRank      ActionEntityType = "Rank"
)

// Channel is one push delivery mechanism.
type Channel string

const (
	ChannelMobile  Channel = "mobile"
	ChannelBrowser Channel = "browser"
)

// Settings categories consulted by the resolver.
type Category string

const (
	CategoryFollowers  Category = "followers"
	CategoryReposts    Category = "reposts"
	CategoryFavorites  Category = "favorites"
	CategoryRemixes    Category = "remixes"
	CategoryMilestones Category = "milestonesAndAchievements"
)

// EntityKind is the track/album/playlist discriminator carried on repost,
// favorite and create events.
type EntityKind string

const (
	EntityTrack    EntityKind = "track"
	EntityAlbum    EntityKind = "album"
	EntityPlaylist EntityKind = "playlist"
)

// MilestoneKind selects which counter a milestone event is about.
type MilestoneKind string

const (
	MilestoneFollow   MilestoneKind = "follow"
	MilestoneRepost   MilestoneKind = "repost"
	MilestoneFavorite MilestoneKind = "favorite"
	MilestoneListen   MilestoneKind = "listen"
)

// EventType is the raw feed event tag.
type EventType string

const (
	EventFollow          EventType = "follow"
	EventRepost          EventType = "repost"
	EventFavorite        EventType = "favorite"
	EventCreate          EventType = "create"
	EventRemixCreate     EventType = "remix_create"
	EventRemixCosign     EventType = "remix_cosign"
	EventMilestone       EventType = "milestone"
	EventTrendingTrack   EventType = "trending_track"
	EventChallengeReward EventType = "challenge_reward"
	EventSupporterRank   EventType = "supporter_rank_up"
)

// Event is one classified feed record. Payload is a closed set of per-type
// structs; processors type-assert the variant they registered for.
type Event struct {
	Type        EventType
	Blocknumber int64
	Timestamp   time.Time
	Initiator   int64
	Payload     Payload
}

// Payload is the closed union of event payloads.
type Payload interface{ isPayload() }

// FollowPayload: follower followed followee.
type FollowPayload struct {
	FolloweeUserID int64
	FollowerUserID int64
}

// EntityPayload covers reposts and favorites of a track/album/playlist.
type EntityPayload struct {
	EntityID      int64
	EntityOwnerID int64
	EntityKind    EntityKind
}

// CreatePayload is an upload. For albums/playlists TrackIDs lists the
// collection's contents so pending per-track notifications can be superseded.
type CreatePayload struct {
	EntityID      int64
	EntityOwnerID int64
	EntityKind    EntityKind
	TrackIDs      []int64
}

// RemixCreatePayload: someone remixed ParentTrackID.
type RemixCreatePayload struct {
	TrackID           int64
	TrackOwnerID      int64
	ParentTrackID     int64
	ParentTrackUserID int64
}

// CosignPayload: the original artist reposted/favorited the remix.
type CosignPayload struct {
	TrackID      int64
	TrackOwnerID int64
}

// MilestonePayload carries the counter's new value; the processor decides
// whether it lands exactly on a threshold. EntityKind describes what EntityID
// refers to for repost/favorite/listen milestones.
type MilestonePayload struct {
	Kind       MilestoneKind
	EntityID   int64
	EntityKind EntityKind
	OwnerID    int64
	Count      int64
}

// TrendingPayload: TrackID holds RankPosition on the trending chart.
type TrendingPayload struct {
	TrackID      int64
	TrackOwnerID int64
	Rank         int64
	TimeRange    string
	Genre        string
}

// ChallengePayload: the initiator completed ChallengeID.
type ChallengePayload struct {
	ChallengeID string
	Amount      int64
}

// SupporterRankPayload: the initiator reached Rank among SupportedUserID's
// supporters, tipping NewAmount (previously OldAmount).
type SupporterRankPayload struct {
	SupportedUserID int64
	Rank            int64
	OldAmount       int64
	NewAmount       int64
}

func (FollowPayload) isPayload()        {}
func (EntityPayload) isPayload()        {}
func (CreatePayload) isPayload()        {}
func (RemixCreatePayload) isPayload()   {}
func (CosignPayload) isPayload()        {}
func (MilestonePayload) isPayload()     {}
func (TrendingPayload) isPayload()      {}
func (ChallengePayload) isPayload()     {}
func (SupporterRankPayload) isPayload() {}

// MilestoneThresholds is the shared ascending threshold list for
// follower/repost/favorite/listen milestones. A count triggers only when it
// equals a threshold exactly; scanMilestone walks the list from the highest
// index down and stops at the first match.
var MilestoneThresholds = []int64{10, 25, 50, 100, 250, 500, 1000}

func init() {
	if !sort.SliceIsSorted(MilestoneThresholds, func(i, j int) bool {
		return MilestoneThresholds[i] < MilestoneThresholds[j]
	}) {
		panic("milestone thresholds must be ascending")
	}
}

func scanMilestone(count int64) (int64, bool) {
	for i := len(MilestoneThresholds) - 1; i >= 0; i-- {
		if count == MilestoneThresholds[i] {
			return MilestoneThresholds[i], true
		}
	}
	return 0, false
}

// Pipeline timing defaults.
const (
	// PendingCreateDedupeWindow is how long a subscriber's track-create push
	// is held back so a superseding album/playlist create can cancel it. An
	// album arriving after the window produces duplicate notifications; that
	// race is accepted.
	PendingCreateDedupeWindow = 3 * time.Minute

	// TrendingInterval is the minimum gap between trending notifications for
	// the same track.
	TrendingInterval = 3 * time.Hour
)
