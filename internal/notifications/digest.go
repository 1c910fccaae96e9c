package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
)

// DigestNotificationLimit caps how many notifications one digest email shows.
const DigestNotificationLimit = 5

// digestSendWindow is how long after a user's local start-of-day a daily or
// weekly digest may still go out, so sends cluster near a consistent local
// time.
const digestSendWindow = 2 * time.Hour

// DigestItem is one rendered line of a digest email.
type DigestItem struct {
	Message   string
	Timestamp time.Time
}

// DigestData is everything the mail renderer needs for one user's digest.
type DigestData struct {
	Name      string
	Email     string
	Frequency string
	Items     []DigestItem
}

// ErrEmailNotConfigured is returned by an EmailSender with no mail transport
// set up. The scheduler skips the user without writing a send record, so the
// digest goes out once the transport is configured.
var ErrEmailNotConfigured = errors.New("email transport not configured")

// EmailSender renders and delivers one digest email.
type EmailSender interface {
	SendDigest(ctx context.Context, data DigestData) error
}

// DigestScheduler batches unseen notifications into periodic emails. It runs
// on its own cadence and reads the same persisted store as the push pipeline,
// but never mutates buckets.
type DigestScheduler struct {
	users         repositories.UserRepository
	settings      repositories.SettingsRepository
	emails        repositories.EmailRepository
	repo          repositories.NotificationRepository
	announcements repositories.AnnouncementRepository
	meta          MetadataClient
	sender        EmailSender
	now           func() time.Time
}

// NewDigestScheduler wires the digest job.
func NewDigestScheduler(
	users repositories.UserRepository,
	settings repositories.SettingsRepository,
	emails repositories.EmailRepository,
	repo repositories.NotificationRepository,
	announcements repositories.AnnouncementRepository,
	meta MetadataClient,
	sender EmailSender,
) *DigestScheduler {
	return &DigestScheduler{
		users:         users,
		settings:      settings,
		emails:        emails,
		repo:          repo,
		announcements: announcements,
		meta:          meta,
		sender:        sender,
		now:           time.Now,
	}
}

// RunOnce walks every user with an email address and sends a digest to those
// due one. A failed send is logged and skipped; the send record is written
// only on success, so the next cycle retries naturally.
func (s *DigestScheduler) RunOnce(ctx context.Context) error {
	users, err := s.users.GetAllWithEmail()
	if err != nil {
		return err
	}
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.processUser(ctx, user); err != nil {
			log.Printf("digest: user %d: %v", user.BlockchainUserID, err)
		}
	}
	return nil
}

func (s *DigestScheduler) processUser(ctx context.Context, user models.User) error {
	settings, err := s.settings.GetByUserID(user.BlockchainUserID)
	if err != nil {
		return err
	}
	if settings.EmailFrequency == models.EmailFrequencyOff {
		return nil
	}

	lastSend, err := s.emails.LastSend(user.BlockchainUserID)
	if err != nil {
		return err
	}
	startTime := user.CreatedAt
	if lastSend != nil {
		startTime = lastSend.Timestamp
	}
	if !s.eligible(settings.EmailFrequency, lastSend, user.Timezone) {
		return nil
	}

	items, err := s.collect(ctx, user.BlockchainUserID, startTime)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	data := DigestData{
		Name:      user.Name,
		Email:     user.Email,
		Frequency: settings.EmailFrequency,
		Items:     items,
	}
	if err := s.sender.SendDigest(ctx, data); err != nil {
		if errors.Is(err, ErrEmailNotConfigured) {
			return nil
		}
		return fmt.Errorf("send digest: %w", err)
	}
	return s.emails.RecordSend(user.BlockchainUserID, settings.EmailFrequency, s.now())
}

// eligible applies the cadence rules: live sends whenever there is something
// to send; daily and weekly hold off until their period has passed and the
// user's local clock is within the morning send window.
func (s *DigestScheduler) eligible(frequency string, lastSend *models.NotificationEmail, timezone string) bool {
	if frequency == models.EmailFrequencyLive {
		return true
	}

	period := 24 * time.Hour
	if frequency == models.EmailFrequencyWeekly {
		period = 7 * 24 * time.Hour
	}
	now := s.now()
	// A small slack keeps a send that happened late in yesterday's window
	// from pushing today's past the window.
	if lastSend != nil && now.Sub(lastSend.Timestamp) < period-digestSendWindow {
		return false
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return local.Sub(startOfDay) < digestSendWindow
}

func (s *DigestScheduler) collect(ctx context.Context, userID int64, since time.Time) ([]DigestItem, error) {
	buckets, err := s.repo.ListUnviewedSince(userID, since, DigestNotificationLimit)
	if err != nil {
		return nil, err
	}

	actorIDs := make([]int64, 0, len(buckets))
	for _, b := range buckets {
		for _, a := range b.Actions {
			if a.ActionEntityType == string(ActionUser) {
				actorIDs = append(actorIDs, a.ActionEntityID)
			}
		}
	}
	actors, err := s.meta.GetUsers(ctx, actorIDs)
	if err != nil {
		return nil, err
	}

	items := make([]DigestItem, 0, DigestNotificationLimit)
	for _, b := range buckets {
		msg, ok := summarizeBucket(b, actors)
		if !ok {
			continue
		}
		items = append(items, DigestItem{Message: msg, Timestamp: b.Timestamp})
	}

	if s.announcements != nil && len(items) < DigestNotificationLimit {
		anns, err := s.announcements.GetSince(ctx, since, DigestNotificationLimit-len(items))
		if err != nil {
			return nil, err
		}
		for _, a := range anns {
			items = append(items, DigestItem{Message: a.Title, Timestamp: a.DatePublished})
		}
	}
	if len(items) > DigestNotificationLimit {
		items = items[:DigestNotificationLimit]
	}
	return items, nil
}

// summarizeBucket phrases one bucket for the digest without a per-entity
// metadata fetch. Buckets whose actors cannot be named are skipped.
func summarizeBucket(n models.Notification, actors map[int64]UserMeta) (string, bool) {
	firstActor := func() (UserMeta, int, bool) {
		var first UserMeta
		count := 0
		found := false
		for _, a := range n.Actions {
			if a.ActionEntityType != string(ActionUser) {
				continue
			}
			count++
			if !found {
				if u, ok := actors[a.ActionEntityID]; ok {
					first = u
					found = true
				}
			}
		}
		return first, count, found
	}
	withOthers := func(name string, count int, verb string) string {
		if count > 1 {
			return fmt.Sprintf("%s and %d others %s", name, count-1, verb)
		}
		return fmt.Sprintf("%s %s", name, verb)
	}

	switch NotificationType(n.Type) {
	case TypeFollow:
		actor, count, ok := firstActor()
		if !ok {
			return "", false
		}
		return withOthers(actor.Name, count, "followed you"), true
	case TypeRepostTrack, TypeRepostAlbum, TypeRepostPlaylist:
		actor, count, ok := firstActor()
		if !ok {
			return "", false
		}
		return withOthers(actor.Name, count, "reposted your "+reactionNoun(n.Type)), true
	case TypeFavoriteTrack, TypeFavoriteAlbum, TypeFavoritePlaylist:
		actor, count, ok := firstActor()
		if !ok {
			return "", false
		}
		return withOthers(actor.Name, count, "favorited your "+reactionNoun(n.Type)), true
	case TypeCreateTrack, TypeCreateAlbum, TypeCreatePlaylist:
		return "An artist you subscribe to released new music", true
	case TypeRemixCreate:
		return "Someone remixed your track", true
	case TypeRemixCosign:
		actor, _, ok := firstActor()
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s co-signed your remix", actor.Name), true
	case TypeMilestoneFollow, TypeMilestoneRepost, TypeMilestoneFavorite, TypeMilestoneListen:
		if v, ok := actionValue(n, ActionMilestone); ok {
			return fmt.Sprintf("You reached a new milestone: %d", v), true
		}
		return "", false
	case TypeTrendingTrack:
		if v, ok := actionValue(n, ActionRank); ok {
			return fmt.Sprintf("Your track is #%d on trending", v), true
		}
		return "", false
	case TypeChallengeReward:
		if v, ok := actionValue(n, ActionMilestone); ok {
			return fmt.Sprintf("You earned %d $WAVE for completing a challenge", v), true
		}
		return "", false
	case TypeSupporterRankUp:
		if v, ok := actionValue(n, ActionRank); ok {
			return fmt.Sprintf("You have a new #%d top supporter", v), true
		}
		return "", false
	case TypeSupportingRankUp:
		if v, ok := actionValue(n, ActionRank); ok {
			return fmt.Sprintf("You became a #%d top supporter", v), true
		}
		return "", false
	case TypeSupporterDethroned:
		return "You've been dethroned as a top supporter", true
	}
	return "", false
}

func reactionNoun(t string) string {
	switch NotificationType(t) {
	case TypeRepostAlbum, TypeFavoriteAlbum:
		return "album"
	case TypeRepostPlaylist, TypeFavoritePlaylist:
		return "playlist"
	}
	return "track"
}

func actionValue(n models.Notification, at ActionEntityType) (int64, bool) {
	for _, a := range n.Actions {
		if a.ActionEntityType == string(at) {
			return a.ActionEntityID, true
		}
	}
	return 0, false
}
