package notifications

import (
	"context"
	"log"
	"time"

	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
)

// BatchOutput collects the push side effects of one processed batch. Nothing
// is handed to the publish queue until the batch transaction commits, so a
// rollback never leaks pushes for uncommitted rows.
type BatchOutput struct {
	Pushes         []BufferedMessage
	Holds          []PendingCreate
	CancelTrackIDs []int64
}

func (o *BatchOutput) push(userID int64, message, title string, channels ChannelSet) {
	if !channels.Any() {
		return
	}
	o.Pushes = append(o.Pushes, BufferedMessage{
		UserID:    userID,
		Message:   message,
		Title:     title,
		PlaySound: true,
		Channels:  channels,
	})
}

func (o *BatchOutput) hold(p PendingCreate) {
	o.Holds = append(o.Holds, p)
}

func (o *BatchOutput) cancelTracks(trackIDs []int64) {
	o.CancelTrackIDs = append(o.CancelTrackIDs, trackIDs...)
}

// procContext carries the per-batch collaborators. Repo is transaction-scoped.
type procContext struct {
	ctx      context.Context
	repo     repositories.NotificationRepository
	subs     repositories.SubscriptionRepository
	resolver *SettingsResolver
	meta     MetadataClient
	out      *BatchOutput
}

// Processor handles one batch of same-type events.
type Processor func(p *procContext, events []Event) error

// processors dispatches by event type. The map is the single place a new
// event type gets registered.
var processors = map[EventType]Processor{
	EventFollow:          processFollows,
	EventRepost:          processReactions,
	EventFavorite:        processReactions,
	EventCreate:          processCreates,
	EventRemixCreate:     processRemixCreates,
	EventRemixCosign:     processRemixCosigns,
	EventMilestone:       processMilestones,
	EventTrendingTrack:   processTrending,
	EventChallengeReward: processChallengeRewards,
	EventSupporterRank:   processSupporterRanks,
}

// processOrder fixes the iteration order over event types so replays are
// deterministic. Creates run after reactions and before remixes so same-batch
// album creates can supersede their member tracks.
var processOrder = []EventType{
	EventFollow,
	EventRepost,
	EventFavorite,
	EventCreate,
	EventRemixCreate,
	EventRemixCosign,
	EventMilestone,
	EventTrendingTrack,
	EventChallengeReward,
	EventSupporterRank,
}

func processFollows(p *procContext, events []Event) error {
	followerIDs := make([]int64, 0, len(events))
	followeeIDs := make([]int64, 0, len(events))
	for _, ev := range events {
		pl := ev.Payload.(FollowPayload)
		followerIDs = append(followerIDs, pl.FollowerUserID)
		followeeIDs = append(followeeIDs, pl.FolloweeUserID)
	}
	users, err := p.meta.GetUsers(p.ctx, append(followerIDs, followeeIDs...))
	if err != nil {
		return err
	}
	channels, err := p.resolver.Resolve(TypeFollow, followeeIDs)
	if err != nil {
		return err
	}

	for _, ev := range events {
		pl := ev.Payload.(FollowPayload)
		key := repositories.BucketKey{UserID: pl.FolloweeUserID, Type: string(TypeFollow)}
		res, err := p.repo.UpsertBucket(key, string(ActionUser), pl.FollowerUserID, ev.Blocknumber, ev.Timestamp)
		if err != nil {
			return err
		}
		if !res.ActionCreated {
			continue
		}
		follower, ok := users[pl.FollowerUserID]
		if !ok {
			log.Printf("notifications: missing user metadata for follower %d, push skipped", pl.FollowerUserID)
			continue
		}
		p.out.push(pl.FolloweeUserID, formatFollow(follower), TitleFollow, channels[pl.FolloweeUserID])
	}
	return nil
}

// processReactions handles reposts and favorites; the two families differ
// only in bucket type and wording.
func processReactions(p *procContext, events []Event) error {
	var userIDs, trackIDs, collectionIDs []int64
	ownersByType := make(map[NotificationType][]int64)
	for _, ev := range events {
		pl := ev.Payload.(EntityPayload)
		userIDs = append(userIDs, ev.Initiator)
		if pl.EntityKind == EntityTrack {
			trackIDs = append(trackIDs, pl.EntityID)
		} else {
			collectionIDs = append(collectionIDs, pl.EntityID)
		}
		nType := reactionType(ev.Type, pl.EntityKind)
		ownersByType[nType] = append(ownersByType[nType], pl.EntityOwnerID)
	}
	users, err := p.meta.GetUsers(p.ctx, userIDs)
	if err != nil {
		return err
	}
	tracks, err := p.meta.GetTracks(p.ctx, trackIDs)
	if err != nil {
		return err
	}
	collections, err := p.meta.GetCollections(p.ctx, collectionIDs)
	if err != nil {
		return err
	}
	channelsByType := make(map[NotificationType]map[int64]ChannelSet, len(ownersByType))
	for nType, owners := range ownersByType {
		channels, err := p.resolver.Resolve(nType, owners)
		if err != nil {
			return err
		}
		channelsByType[nType] = channels
	}

	for _, ev := range events {
		pl := ev.Payload.(EntityPayload)
		nType := reactionType(ev.Type, pl.EntityKind)
		entityID := pl.EntityID
		key := repositories.BucketKey{UserID: pl.EntityOwnerID, Type: string(nType), EntityID: &entityID}
		res, err := p.repo.UpsertBucket(key, string(ActionUser), ev.Initiator, ev.Blocknumber, ev.Timestamp)
		if err != nil {
			return err
		}
		if !res.ActionCreated {
			continue
		}
		actor, ok := users[ev.Initiator]
		if !ok {
			log.Printf("notifications: missing user metadata for %d, push skipped", ev.Initiator)
			continue
		}
		name, ok := entityName(pl.EntityKind, pl.EntityID, tracks, collections)
		if !ok {
			log.Printf("notifications: missing %s metadata for %d, push skipped", pl.EntityKind, pl.EntityID)
			continue
		}
		var message, title string
		if ev.Type == EventRepost {
			message, title = formatRepost(actor, pl.EntityKind, name), TitleRepost
		} else {
			message, title = formatFavorite(actor, pl.EntityKind, name), TitleFavorite
		}
		p.out.push(pl.EntityOwnerID, message, title, channelsByType[nType][pl.EntityOwnerID])
	}
	return nil
}

func processCreates(p *procContext, events []Event) error {
	var artistIDs, trackIDs, collectionIDs []int64
	for _, ev := range events {
		pl := ev.Payload.(CreatePayload)
		artistIDs = append(artistIDs, pl.EntityOwnerID)
		if pl.EntityKind == EntityTrack {
			trackIDs = append(trackIDs, pl.EntityID)
		} else {
			collectionIDs = append(collectionIDs, pl.EntityID)
		}
	}
	users, err := p.meta.GetUsers(p.ctx, artistIDs)
	if err != nil {
		return err
	}
	tracks, err := p.meta.GetTracks(p.ctx, trackIDs)
	if err != nil {
		return err
	}
	collections, err := p.meta.GetCollections(p.ctx, collectionIDs)
	if err != nil {
		return err
	}

	// One artist often uploads several entities in a batch; fetch each
	// subscriber list once.
	subsByOwner := make(map[int64][]int64)
	for _, ev := range events {
		pl := ev.Payload.(CreatePayload)
		subscribers, ok := subsByOwner[pl.EntityOwnerID]
		if !ok {
			subscribers, err = p.subs.GetSubscriberIDs(pl.EntityOwnerID)
			if err != nil {
				return err
			}
			subsByOwner[pl.EntityOwnerID] = subscribers
		}
		if len(subscribers) == 0 {
			continue
		}
		artist, artistOK := users[pl.EntityOwnerID]
		// Uploads push regardless of settings.
		channels := ChannelSet{Mobile: true, Browser: true}

		if pl.EntityKind == EntityTrack {
			ownerID := pl.EntityOwnerID
			for _, sub := range subscribers {
				key := repositories.BucketKey{UserID: sub, Type: string(TypeCreateTrack), EntityID: &ownerID}
				res, err := p.repo.UpsertBucket(key, string(ActionTrack), pl.EntityID, ev.Blocknumber, ev.Timestamp)
				if err != nil {
					return err
				}
				if !res.ActionCreated || !artistOK {
					continue
				}
				track, ok := tracks[pl.EntityID]
				if !ok {
					log.Printf("notifications: missing track metadata for %d, push skipped", pl.EntityID)
					continue
				}
				p.out.hold(PendingCreate{
					UserID:   sub,
					TrackID:  pl.EntityID,
					Message:  formatCreateTrack(artist, track.Title),
					Title:    TitleCreate,
					Channels: channels,
				})
			}
			continue
		}

		nType := TypeCreateAlbum
		if pl.EntityKind == EntityPlaylist {
			nType = TypeCreatePlaylist
		}
		collectionID := pl.EntityID
		for _, sub := range subscribers {
			key := repositories.BucketKey{UserID: sub, Type: string(nType), EntityID: &collectionID}
			res, err := p.repo.UpsertBucket(key, string(ActionUser), pl.EntityOwnerID, ev.Blocknumber, ev.Timestamp)
			if err != nil {
				return err
			}
			if !res.ActionCreated || !artistOK {
				continue
			}
			col, ok := collections[pl.EntityID]
			if !ok {
				log.Printf("notifications: missing collection metadata for %d, push skipped", pl.EntityID)
				continue
			}
			p.out.push(sub, formatCreateCollection(artist, pl.EntityKind, col.Name), TitleCreate, channels)
		}

		// The collection supersedes standalone notifications for its tracks:
		// strip persisted track actions and cancel any still-buffered pushes.
		if len(pl.TrackIDs) > 0 {
			if err := p.repo.DeleteCreateActions(string(TypeCreateTrack), pl.EntityOwnerID, pl.TrackIDs); err != nil {
				return err
			}
			p.out.cancelTracks(pl.TrackIDs)
		}
	}
	return nil
}

func processRemixCreates(p *procContext, events []Event) error {
	var remixerIDs, parentOwnerIDs, trackIDs []int64
	for _, ev := range events {
		pl := ev.Payload.(RemixCreatePayload)
		remixerIDs = append(remixerIDs, pl.TrackOwnerID)
		parentOwnerIDs = append(parentOwnerIDs, pl.ParentTrackUserID)
		trackIDs = append(trackIDs, pl.TrackID, pl.ParentTrackID)
	}
	users, err := p.meta.GetUsers(p.ctx, remixerIDs)
	if err != nil {
		return err
	}
	tracks, err := p.meta.GetTracks(p.ctx, trackIDs)
	if err != nil {
		return err
	}
	channels, err := p.resolver.Resolve(TypeRemixCreate, parentOwnerIDs)
	if err != nil {
		return err
	}

	for _, ev := range events {
		pl := ev.Payload.(RemixCreatePayload)
		trackID := pl.TrackID
		key := repositories.BucketKey{UserID: pl.ParentTrackUserID, Type: string(TypeRemixCreate), EntityID: &trackID}
		res, err := p.repo.UpsertBucket(key, string(ActionUser), pl.TrackOwnerID, ev.Blocknumber, ev.Timestamp)
		if err != nil {
			return err
		}
		// Secondary actions record which tracks are involved; they never gate
		// the push.
		if _, err := p.repo.UpsertBucket(key, string(ActionTrack), pl.TrackID, ev.Blocknumber, ev.Timestamp); err != nil {
			return err
		}
		if _, err := p.repo.UpsertBucket(key, string(ActionTrack), pl.ParentTrackID, ev.Blocknumber, ev.Timestamp); err != nil {
			return err
		}
		if !res.ActionCreated {
			continue
		}
		remixer, okU := users[pl.TrackOwnerID]
		remix, okR := tracks[pl.TrackID]
		parent, okP := tracks[pl.ParentTrackID]
		if !okU || !okR || !okP {
			log.Printf("notifications: missing metadata for remix of track %d, push skipped", pl.ParentTrackID)
			continue
		}
		p.out.push(pl.ParentTrackUserID, formatRemixCreate(remixer, remix.Title, parent.Title),
			TitleRemixCreate, channels[pl.ParentTrackUserID])
	}
	return nil
}

func processRemixCosigns(p *procContext, events []Event) error {
	var artistIDs, trackIDs []int64
	for _, ev := range events {
		pl := ev.Payload.(CosignPayload)
		artistIDs = append(artistIDs, ev.Initiator)
		trackIDs = append(trackIDs, pl.TrackID)
	}
	users, err := p.meta.GetUsers(p.ctx, artistIDs)
	if err != nil {
		return err
	}
	tracks, err := p.meta.GetTracks(p.ctx, trackIDs)
	if err != nil {
		return err
	}

	for _, ev := range events {
		pl := ev.Payload.(CosignPayload)
		trackID := pl.TrackID
		key := repositories.BucketKey{UserID: pl.TrackOwnerID, Type: string(TypeRemixCosign), EntityID: &trackID}
		// A cosign lands one second after the repost/favorite that caused it
		// so it sorts above that notification in the feed.
		ts := ev.Timestamp.Add(time.Second)
		res, err := p.repo.UpsertBucket(key, string(ActionUser), ev.Initiator, ev.Blocknumber, ts)
		if err != nil {
			return err
		}
		if !res.ActionCreated {
			continue
		}
		artist, okU := users[ev.Initiator]
		remix, okT := tracks[pl.TrackID]
		if !okU || !okT {
			log.Printf("notifications: missing metadata for cosign of track %d, push skipped", pl.TrackID)
			continue
		}
		// Cosigns ignore per-category settings.
		p.out.push(pl.TrackOwnerID, formatRemixCosign(artist, remix.Title), TitleRemixCosign,
			ChannelSet{Mobile: true, Browser: true})
	}
	return nil
}

func processMilestones(p *procContext, events []Event) error {
	var trackIDs, collectionIDs []int64
	for _, ev := range events {
		pl := ev.Payload.(MilestonePayload)
		if pl.Kind == MilestoneFollow {
			continue
		}
		if pl.EntityKind == EntityTrack {
			trackIDs = append(trackIDs, pl.EntityID)
		} else {
			collectionIDs = append(collectionIDs, pl.EntityID)
		}
	}
	tracks, err := p.meta.GetTracks(p.ctx, trackIDs)
	if err != nil {
		return err
	}
	collections, err := p.meta.GetCollections(p.ctx, collectionIDs)
	if err != nil {
		return err
	}

	for _, ev := range events {
		pl := ev.Payload.(MilestonePayload)
		threshold, hit := scanMilestone(pl.Count)
		if !hit {
			continue
		}
		nType := milestoneType(pl.Kind)
		var entityID *int64
		if pl.Kind != MilestoneFollow {
			id := pl.EntityID
			entityID = &id
		}
		// A bucket for this exact threshold means the event is a replay.
		exists, err := p.repo.MilestoneExists(pl.OwnerID, string(nType), entityID, threshold)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		// Each threshold gets a fresh bucket; the old one is removed below so
		// only the latest milestone stays visible.
		bucket := models.Notification{
			UserID:      pl.OwnerID,
			Type:        string(nType),
			EntityID:    entityID,
			Blocknumber: ev.Blocknumber,
			Timestamp:   ev.Timestamp,
			Actions: []models.NotificationAction{{
				ActionEntityType: string(ActionMilestone),
				ActionEntityID:   threshold,
				Blocknumber:      ev.Blocknumber,
			}},
		}
		if err := p.repo.CreateBucket(&bucket); err != nil {
			return err
		}
		if err := p.repo.DeleteStaleMilestones(pl.OwnerID, string(nType), entityID, bucket.ID); err != nil {
			return err
		}
		channels, err := p.resolver.Resolve(nType, []int64{pl.OwnerID})
		if err != nil {
			return err
		}
		var name string
		if pl.Kind != MilestoneFollow {
			var ok bool
			if name, ok = entityName(pl.EntityKind, pl.EntityID, tracks, collections); !ok {
				log.Printf("notifications: missing %s metadata for milestone on %d, push skipped", pl.EntityKind, pl.EntityID)
				continue
			}
			name = string(pl.EntityKind) + " " + name
		}
		p.out.push(pl.OwnerID, formatMilestone(pl.Kind, name, threshold), TitleMilestone, channels[pl.OwnerID])
	}
	return nil
}

func processTrending(p *procContext, events []Event) error {
	var trackIDs []int64
	for _, ev := range events {
		trackIDs = append(trackIDs, ev.Payload.(TrendingPayload).TrackID)
	}
	tracks, err := p.meta.GetTracks(p.ctx, trackIDs)
	if err != nil {
		return err
	}

	for _, ev := range events {
		pl := ev.Payload.(TrendingPayload)
		prev, err := p.repo.LatestTrending(pl.TrackID)
		if err != nil {
			return err
		}
		if prev != nil {
			if ev.Timestamp.Sub(prev.Timestamp) < TrendingInterval {
				continue
			}
			// Only a strictly better rank notifies.
			if prevRank, ok := trendingRank(prev); ok && prevRank <= pl.Rank {
				continue
			}
		}
		trackID := pl.TrackID
		bucket := models.Notification{
			UserID:      pl.TrackOwnerID,
			Type:        string(TypeTrendingTrack),
			EntityID:    &trackID,
			Blocknumber: ev.Blocknumber,
			Timestamp:   ev.Timestamp,
			Actions: []models.NotificationAction{{
				ActionEntityType: string(ActionRank),
				ActionEntityID:   pl.Rank,
				Blocknumber:      ev.Blocknumber,
			}},
		}
		if err := p.repo.CreateBucket(&bucket); err != nil {
			return err
		}
		channels, err := p.resolver.Resolve(TypeTrendingTrack, []int64{pl.TrackOwnerID})
		if err != nil {
			return err
		}
		track, ok := tracks[pl.TrackID]
		if !ok {
			log.Printf("notifications: missing track metadata for trending track %d, push skipped", pl.TrackID)
			continue
		}
		p.out.push(pl.TrackOwnerID, formatTrending(track.Title, pl.Rank), TitleTrendingTrack, channels[pl.TrackOwnerID])
	}
	return nil
}

// processChallengeRewards creates a fresh bucket per event; rewards never
// aggregate.
func processChallengeRewards(p *procContext, events []Event) error {
	for _, ev := range events {
		pl := ev.Payload.(ChallengePayload)
		// One-shot, but a replayed batch must not mint a second reward. The
		// guard keys on the challenge itself so distinct challenges completed
		// at the same block each get one.
		exists, err := p.repo.ChallengeRewardExists(ev.Initiator, pl.ChallengeID, ev.Blocknumber)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		bucket := models.Notification{
			UserID:      ev.Initiator,
			Type:        string(TypeChallengeReward),
			ChallengeID: pl.ChallengeID,
			Blocknumber: ev.Blocknumber,
			Timestamp:   ev.Timestamp,
			Actions: []models.NotificationAction{{
				ActionEntityType: string(ActionMilestone),
				ActionEntityID:   pl.Amount,
				Blocknumber:      ev.Blocknumber,
			}},
		}
		if err := p.repo.CreateBucket(&bucket); err != nil {
			return err
		}
		channels, err := p.resolver.Resolve(TypeChallengeReward, []int64{ev.Initiator})
		if err != nil {
			return err
		}
		p.out.push(ev.Initiator, formatChallengeReward(pl.Amount), TitleChallengeReward, channels[ev.Initiator])
	}
	return nil
}

func processSupporterRanks(p *procContext, events []Event) error {
	var userIDs []int64
	for _, ev := range events {
		pl := ev.Payload.(SupporterRankPayload)
		userIDs = append(userIDs, ev.Initiator, pl.SupportedUserID)
	}
	users, err := p.meta.GetUsers(p.ctx, userIDs)
	if err != nil {
		return err
	}

	for _, ev := range events {
		pl := ev.Payload.(SupporterRankPayload)
		senderID := ev.Initiator
		supportedID := pl.SupportedUserID

		exists, err := p.repo.ExistsAt(supportedID, string(TypeSupporterRankUp), &senderID, ev.Blocknumber)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		// Supported user learns about their new #N supporter.
		rankUp := models.Notification{
			UserID:      supportedID,
			Type:        string(TypeSupporterRankUp),
			EntityID:    &senderID,
			Blocknumber: ev.Blocknumber,
			Timestamp:   ev.Timestamp,
			Actions: []models.NotificationAction{{
				ActionEntityType: string(ActionRank),
				ActionEntityID:   pl.Rank,
				Blocknumber:      ev.Blocknumber,
			}},
		}
		if err := p.repo.CreateBucket(&rankUp); err != nil {
			return err
		}
		// Sender learns they reached the rank.
		supportingUp := models.Notification{
			UserID:      senderID,
			Type:        string(TypeSupportingRankUp),
			EntityID:    &supportedID,
			Blocknumber: ev.Blocknumber,
			Timestamp:   ev.Timestamp,
			Actions: []models.NotificationAction{{
				ActionEntityType: string(ActionRank),
				ActionEntityID:   pl.Rank,
				Blocknumber:      ev.Blocknumber,
			}},
		}
		if err := p.repo.CreateBucket(&supportingUp); err != nil {
			return err
		}

		sender, okSender := users[senderID]
		supported, okSupported := users[supportedID]
		if okSender {
			p.out.push(supportedID, formatSupporterRankUp(sender, pl.Rank), TitleSupporterRankUp,
				ChannelSet{Mobile: true, Browser: true})
		}
		if okSupported {
			p.out.push(senderID, formatSupportingRankUp(supported, pl.Rank), TitleSupporterRankUp,
				ChannelSet{Mobile: true, Browser: true})
		}

		if pl.Rank != 1 {
			continue
		}
		if err := p.synthesizeDethroned(ev, pl, users); err != nil {
			return err
		}
	}
	return nil
}

// synthesizeDethroned notifies the supporter who just lost the #1 spot. The
// previous top supporter is read off the current ranked list: after the flip
// they sit at #2. Ties and self-replacement never dethrone.
func (p *procContext) synthesizeDethroned(ev Event, pl SupporterRankPayload, users map[int64]UserMeta) error {
	supporters, err := p.meta.GetTopSupporters(p.ctx, pl.SupportedUserID, 2)
	if err != nil {
		log.Printf("notifications: fetch supporters for user %d: %v", pl.SupportedUserID, err)
		return nil
	}
	if len(supporters) < 2 {
		return nil
	}
	dethroned := supporters[1]
	if dethroned.SenderID == ev.Initiator || dethroned.Amount == supporters[0].Amount {
		return nil
	}
	supportedID := pl.SupportedUserID
	bucket := models.Notification{
		UserID:      dethroned.SenderID,
		Type:        string(TypeSupporterDethroned),
		EntityID:    &supportedID,
		Blocknumber: ev.Blocknumber,
		Timestamp:   ev.Timestamp,
		Actions: []models.NotificationAction{{
			ActionEntityType: string(ActionUser),
			ActionEntityID:   ev.Initiator,
			Blocknumber:      ev.Blocknumber,
		}},
	}
	if err := p.repo.CreateBucket(&bucket); err != nil {
		return err
	}
	usurper, okU := users[ev.Initiator]
	supported, okS := users[pl.SupportedUserID]
	if okU && okS {
		p.out.push(dethroned.SenderID, formatDethroned(usurper, supported), TitleDethroned,
			ChannelSet{Mobile: true, Browser: true})
	}
	return nil
}

func reactionType(ev EventType, kind EntityKind) NotificationType {
	if ev == EventRepost {
		switch kind {
		case EntityAlbum:
			return TypeRepostAlbum
		case EntityPlaylist:
			return TypeRepostPlaylist
		default:
			return TypeRepostTrack
		}
	}
	switch kind {
	case EntityAlbum:
		return TypeFavoriteAlbum
	case EntityPlaylist:
		return TypeFavoritePlaylist
	default:
		return TypeFavoriteTrack
	}
}

func milestoneType(kind MilestoneKind) NotificationType {
	switch kind {
	case MilestoneFollow:
		return TypeMilestoneFollow
	case MilestoneRepost:
		return TypeMilestoneRepost
	case MilestoneFavorite:
		return TypeMilestoneFavorite
	default:
		return TypeMilestoneListen
	}
}

func entityName(kind EntityKind, id int64, tracks map[int64]TrackMeta, collections map[int64]CollectionMeta) (string, bool) {
	if kind == EntityTrack {
		t, ok := tracks[id]
		return t.Title, ok
	}
	c, ok := collections[id]
	return c.Name, ok
}

func trendingRank(n *models.Notification) (int64, bool) {
	for _, a := range n.Actions {
		if a.ActionEntityType == string(ActionRank) {
			return a.ActionEntityID, true
		}
	}
	return 0, false
}
