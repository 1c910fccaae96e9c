package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// rawRecord is one inbound feed entry as served by the indexer. Metadata is
// decoded per type; unknown types are skipped, not errors, so a feed running
// ahead of this service does not wedge the poll loop.
type rawRecord struct {
	Type        string          `json:"type"`
	Blocknumber int64           `json:"blocknumber"`
	Timestamp   time.Time       `json:"timestamp"`
	Initiator   int64           `json:"initiator"`
	Metadata    json.RawMessage `json:"metadata"`
}

// FeedClient polls the indexer for raw notification events past a block
// checkpoint and classifies them into typed Events.
type FeedClient struct {
	baseURL string
	client  *http.Client
}

// NewFeedClient creates a feed client for the given indexer base URL.
func NewFeedClient(baseURL string) *FeedClient {
	return &FeedClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch pulls all events with blocknumber greater than minBlocknumber.
// Duplicate and out-of-order records across polls are expected; downstream
// upserts make replay safe.
func (c *FeedClient) Fetch(ctx context.Context, minBlocknumber int64) ([]Event, error) {
	q := url.Values{}
	q.Set("min_block_number", strconv.FormatInt(minBlocknumber, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed fetch: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Notifications []rawRecord `json:"notifications"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(body.Data.Notifications))
	for _, rec := range body.Data.Notifications {
		ev, ok, err := classify(rec)
		if err != nil {
			return nil, fmt.Errorf("classify %s event at block %d: %w", rec.Type, rec.Blocknumber, err)
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func classify(rec rawRecord) (Event, bool, error) {
	ev := Event{
		Blocknumber: rec.Blocknumber,
		Timestamp:   rec.Timestamp,
		Initiator:   rec.Initiator,
	}
	switch rec.Type {
	case string(EventFollow):
		var m struct {
			FolloweeUserID int64 `json:"followee_user_id"`
			FollowerUserID int64 `json:"follower_user_id"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		ev.Type = EventFollow
		ev.Payload = FollowPayload{FolloweeUserID: m.FolloweeUserID, FollowerUserID: m.FollowerUserID}

	case string(EventRepost), string(EventFavorite):
		var m struct {
			EntityID      int64  `json:"entity_id"`
			EntityOwnerID int64  `json:"entity_owner_id"`
			EntityType    string `json:"entity_type"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		kind, err := parseEntityKind(m.EntityType)
		if err != nil {
			return ev, false, err
		}
		ev.Type = EventType(rec.Type)
		ev.Payload = EntityPayload{EntityID: m.EntityID, EntityOwnerID: m.EntityOwnerID, EntityKind: kind}

	case string(EventCreate):
		var m struct {
			EntityID      int64   `json:"entity_id"`
			EntityOwnerID int64   `json:"entity_owner_id"`
			EntityType    string  `json:"entity_type"`
			TrackIDs      []int64 `json:"collection_track_ids"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		kind, err := parseEntityKind(m.EntityType)
		if err != nil {
			return ev, false, err
		}
		ev.Type = EventCreate
		ev.Payload = CreatePayload{EntityID: m.EntityID, EntityOwnerID: m.EntityOwnerID, EntityKind: kind, TrackIDs: m.TrackIDs}

	case string(EventRemixCreate):
		var m struct {
			TrackID           int64 `json:"entity_id"`
			TrackOwnerID      int64 `json:"entity_owner_id"`
			ParentTrackID     int64 `json:"remix_parent_track_id"`
			ParentTrackUserID int64 `json:"remix_parent_track_user_id"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		ev.Type = EventRemixCreate
		ev.Payload = RemixCreatePayload{
			TrackID:           m.TrackID,
			TrackOwnerID:      m.TrackOwnerID,
			ParentTrackID:     m.ParentTrackID,
			ParentTrackUserID: m.ParentTrackUserID,
		}

	case string(EventRemixCosign):
		var m struct {
			TrackID      int64 `json:"entity_id"`
			TrackOwnerID int64 `json:"entity_owner_id"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		ev.Type = EventRemixCosign
		ev.Payload = CosignPayload{TrackID: m.TrackID, TrackOwnerID: m.TrackOwnerID}

	case string(EventMilestone):
		var m struct {
			Kind       string `json:"milestone_kind"`
			EntityID   int64  `json:"entity_id"`
			EntityType string `json:"entity_type"`
			OwnerID    int64  `json:"owner_id"`
			Count      int64  `json:"count"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		kind, err := parseMilestoneKind(m.Kind)
		if err != nil {
			return ev, false, err
		}
		entityKind := EntityTrack
		if m.EntityType != "" {
			if entityKind, err = parseEntityKind(m.EntityType); err != nil {
				return ev, false, err
			}
		}
		ev.Type = EventMilestone
		ev.Payload = MilestonePayload{Kind: kind, EntityID: m.EntityID, EntityKind: entityKind, OwnerID: m.OwnerID, Count: m.Count}

	case string(EventTrendingTrack):
		var m struct {
			TrackID      int64  `json:"entity_id"`
			TrackOwnerID int64  `json:"entity_owner_id"`
			Rank         int64  `json:"rank"`
			TimeRange    string `json:"time_range"`
			Genre        string `json:"genre"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		ev.Type = EventTrendingTrack
		ev.Payload = TrendingPayload{
			TrackID:      m.TrackID,
			TrackOwnerID: m.TrackOwnerID,
			Rank:         m.Rank,
			TimeRange:    m.TimeRange,
			Genre:        m.Genre,
		}

	case string(EventChallengeReward):
		var m struct {
			ChallengeID string `json:"challenge_id"`
			Amount      int64  `json:"amount"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		ev.Type = EventChallengeReward
		ev.Payload = ChallengePayload{ChallengeID: m.ChallengeID, Amount: m.Amount}

	case string(EventSupporterRank):
		var m struct {
			SupportedUserID int64 `json:"entity_id"`
			Rank            int64 `json:"rank"`
			OldAmount       int64 `json:"old_amount"`
			NewAmount       int64 `json:"new_amount"`
		}
		if err := json.Unmarshal(rec.Metadata, &m); err != nil {
			return ev, false, err
		}
		ev.Type = EventSupporterRank
		ev.Payload = SupporterRankPayload{
			SupportedUserID: m.SupportedUserID,
			Rank:            m.Rank,
			OldAmount:       m.OldAmount,
			NewAmount:       m.NewAmount,
		}

	default:
		return ev, false, nil
	}
	return ev, true, nil
}

func parseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case EntityTrack, EntityAlbum, EntityPlaylist:
		return EntityKind(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

func parseMilestoneKind(s string) (MilestoneKind, error) {
	switch MilestoneKind(s) {
	case MilestoneFollow, MilestoneRepost, MilestoneFavorite, MilestoneListen:
		return MilestoneKind(s), nil
	}
	return "", fmt.Errorf("unknown milestone kind %q", s)
}
