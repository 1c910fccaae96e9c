package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.NotificationAction{},
		&models.Subscription{},
		&models.UserNotificationSettings{},
		&models.NotificationDeviceToken{},
		&models.NotificationBrowserSubscription{},
		&models.NotificationEmail{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeMeta struct {
	users       map[int64]UserMeta
	tracks      map[int64]TrackMeta
	collections map[int64]CollectionMeta
	supporters  map[int64][]Supporter
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		users:       make(map[int64]UserMeta),
		tracks:      make(map[int64]TrackMeta),
		collections: make(map[int64]CollectionMeta),
		supporters:  make(map[int64][]Supporter),
	}
}

func (f *fakeMeta) addUser(id int64, name string) {
	f.users[id] = UserMeta{ID: id, Handle: name, Name: name}
}

func (f *fakeMeta) addTrack(id, ownerID int64, title string) {
	f.tracks[id] = TrackMeta{ID: id, Title: title, OwnerID: ownerID}
}

func (f *fakeMeta) addCollection(id, ownerID int64, name string, isAlbum bool) {
	f.collections[id] = CollectionMeta{ID: id, Name: name, OwnerID: ownerID, IsAlbum: isAlbum}
}

func (f *fakeMeta) GetUsers(_ context.Context, ids []int64) (map[int64]UserMeta, error) {
	out := make(map[int64]UserMeta)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeMeta) GetTracks(_ context.Context, ids []int64) (map[int64]TrackMeta, error) {
	out := make(map[int64]TrackMeta)
	for _, id := range ids {
		if tr, ok := f.tracks[id]; ok {
			out[id] = tr
		}
	}
	return out, nil
}

func (f *fakeMeta) GetCollections(_ context.Context, ids []int64) (map[int64]CollectionMeta, error) {
	out := make(map[int64]CollectionMeta)
	for _, id := range ids {
		if c, ok := f.collections[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeMeta) GetTopSupporters(_ context.Context, userID int64, limit int) ([]Supporter, error) {
	s := f.supporters[userID]
	if len(s) > limit {
		s = s[:limit]
	}
	return s, nil
}

type staticFeed struct {
	events []Event
}

func (s *staticFeed) Fetch(_ context.Context, minBlocknumber int64) ([]Event, error) {
	var out []Event
	for _, ev := range s.events {
		if ev.Blocknumber > minBlocknumber {
			out = append(out, ev)
		}
	}
	return out, nil
}

type sentPush struct {
	userID int64
	token  string
	msg    PushMessage
}

type fakeMobilePusher struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (f *fakeMobilePusher) Send(_ context.Context, token models.NotificationDeviceToken, msg PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentPush{userID: token.UserID, token: token.DeviceToken, msg: msg})
	return nil
}

type fakeBrowserPusher struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (f *fakeBrowserPusher) Send(_ context.Context, sub models.NotificationBrowserSubscription, msg PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentPush{userID: sub.UserID, token: sub.Endpoint, msg: msg})
	return nil
}

type testPipeline struct {
	db       *gorm.DB
	repo     repositories.NotificationRepository
	subs     repositories.SubscriptionRepository
	settings repositories.SettingsRepository
	devices  repositories.DeviceRepository
	meta     *fakeMeta
	mobile   *fakeMobilePusher
	browser  *fakeBrowserPusher
	queue    *PublishQueue
	debounce *DebounceBuffer
	indexer  *Indexer
	feed     *staticFeed
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	db := newTestDB(t)
	tp := &testPipeline{
		db:       db,
		repo:     repositories.NewPostgresNotificationRepository(db),
		subs:     repositories.NewPostgresSubscriptionRepository(db),
		settings: repositories.NewPostgresSettingsRepository(db),
		devices:  repositories.NewPostgresDeviceRepository(db),
		meta:     newFakeMeta(),
		mobile:   &fakeMobilePusher{},
		browser:  &fakeBrowserPusher{},
		feed:     &staticFeed{},
	}
	tp.queue = NewPublishQueue(tp.mobile, tp.browser, tp.devices)
	tp.debounce = NewDebounceBuffer(PendingCreateDedupeWindow)
	resolver := NewSettingsResolver(tp.settings)
	tp.indexer = NewIndexer(tp.feed, tp.repo, tp.subs, resolver, tp.meta, tp.queue, tp.debounce)
	return tp
}

// run processes a batch and applies its side effects, as RunOnce would.
func (tp *testPipeline) run(t *testing.T, events []Event) *BatchOutput {
	t.Helper()
	out, err := tp.indexer.Process(context.Background(), events)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	tp.indexer.applyOutput(out)
	return out
}

func (tp *testPipeline) countBuckets(t *testing.T, nType string) int64 {
	t.Helper()
	var n int64
	if err := tp.db.Model(&models.Notification{}).Where("type = ?", nType).Count(&n).Error; err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	return n
}

func (tp *testPipeline) countAllRows(t *testing.T) (int64, int64) {
	t.Helper()
	var buckets, actions int64
	if err := tp.db.Model(&models.Notification{}).Count(&buckets).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	if err := tp.db.Model(&models.NotificationAction{}).Count(&actions).Error; err != nil {
		t.Fatalf("count actions: %v", err)
	}
	return buckets, actions
}

func at(base time.Time, d time.Duration) time.Time { return base.Add(d) }

func followEvent(block int64, ts time.Time, follower, followee int64) Event {
	return Event{
		Type: EventFollow, Blocknumber: block, Timestamp: ts, Initiator: follower,
		Payload: FollowPayload{FolloweeUserID: followee, FollowerUserID: follower},
	}
}

func favoriteEvent(block int64, ts time.Time, user, trackID, ownerID int64) Event {
	return Event{
		Type: EventFavorite, Blocknumber: block, Timestamp: ts, Initiator: user,
		Payload: EntityPayload{EntityID: trackID, EntityOwnerID: ownerID, EntityKind: EntityTrack},
	}
}

func repostEvent(block int64, ts time.Time, user, trackID, ownerID int64) Event {
	return Event{
		Type: EventRepost, Blocknumber: block, Timestamp: ts, Initiator: user,
		Payload: EntityPayload{EntityID: trackID, EntityOwnerID: ownerID, EntityKind: EntityTrack},
	}
}

func createTrackEvent(block int64, ts time.Time, trackID, ownerID int64) Event {
	return Event{
		Type: EventCreate, Blocknumber: block, Timestamp: ts, Initiator: ownerID,
		Payload: CreatePayload{EntityID: trackID, EntityOwnerID: ownerID, EntityKind: EntityTrack},
	}
}

func createAlbumEvent(block int64, ts time.Time, albumID, ownerID int64, trackIDs []int64) Event {
	return Event{
		Type: EventCreate, Blocknumber: block, Timestamp: ts, Initiator: ownerID,
		Payload: CreatePayload{EntityID: albumID, EntityOwnerID: ownerID, EntityKind: EntityAlbum, TrackIDs: trackIDs},
	}
}

func milestoneEvent(block int64, ts time.Time, kind MilestoneKind, entityID, ownerID, count int64) Event {
	return Event{
		Type: EventMilestone, Blocknumber: block, Timestamp: ts, Initiator: ownerID,
		Payload: MilestonePayload{Kind: kind, EntityID: entityID, EntityKind: EntityTrack, OwnerID: ownerID, Count: count},
	}
}

func trendingEvent(block int64, ts time.Time, trackID, ownerID, rank int64) Event {
	return Event{
		Type: EventTrendingTrack, Blocknumber: block, Timestamp: ts, Initiator: ownerID,
		Payload: TrendingPayload{TrackID: trackID, TrackOwnerID: ownerID, Rank: rank, TimeRange: "week"},
	}
}
