package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
	"gorm.io/gorm"
)

type fakeDigestSender struct {
	sent []DigestData
	err  error
}

func (f *fakeDigestSender) SendDigest(_ context.Context, data DigestData) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

type memAnnouncements struct {
	items []models.Announcement
}

func (m *memAnnouncements) Create(_ context.Context, a *models.Announcement) error {
	m.items = append(m.items, *a)
	return nil
}

func (m *memAnnouncements) GetSince(_ context.Context, since time.Time, limit int) ([]models.Announcement, error) {
	var out []models.Announcement
	for _, a := range m.items {
		if a.DatePublished.After(since) {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAnnouncements) GetAll(ctx context.Context) ([]models.Announcement, error) {
	return m.GetSince(ctx, time.Time{}, 0)
}

type digestFixture struct {
	db        *gorm.DB
	users     repositories.UserRepository
	settings  repositories.SettingsRepository
	emails    repositories.EmailRepository
	notifRepo repositories.NotificationRepository
	anns      *memAnnouncements
	meta      *fakeMeta
	sender    *fakeDigestSender
	scheduler *DigestScheduler
	now       time.Time
}

func newDigestFixture(t *testing.T) *digestFixture {
	t.Helper()
	db := newTestDB(t)
	f := &digestFixture{
		db:        db,
		users:     repositories.NewPostgresUserRepository(db),
		settings:  repositories.NewPostgresSettingsRepository(db),
		emails:    repositories.NewPostgresEmailRepository(db),
		notifRepo: repositories.NewPostgresNotificationRepository(db),
		anns:      &memAnnouncements{},
		meta:      newFakeMeta(),
		sender:    &fakeDigestSender{},
		now:       testBase,
	}
	f.scheduler = NewDigestScheduler(f.users, f.settings, f.emails, f.notifRepo, f.anns, f.meta, f.sender)
	f.scheduler.now = func() time.Time { return f.now }
	return f
}

func (f *digestFixture) addUser(t *testing.T, id int64, email string, createdAt time.Time) {
	t.Helper()
	u := models.User{BlockchainUserID: id, Handle: fmt.Sprintf("user%d", id), Name: fmt.Sprintf("User %d", id), Email: email, Timezone: "UTC", CreatedAt: createdAt}
	if err := f.users.Upsert(&u); err != nil {
		t.Fatal(err)
	}
}

func (f *digestFixture) addFollowBucket(t *testing.T, userID, followerID int64, ts time.Time) {
	t.Helper()
	f.meta.addUser(followerID, fmt.Sprintf("follower %d", followerID))
	n := models.Notification{
		UserID: userID, Type: "Follow", Timestamp: ts,
		Actions: []models.NotificationAction{{ActionEntityType: "User", ActionEntityID: followerID}},
	}
	if err := f.db.Create(&n).Error; err != nil {
		t.Fatal(err)
	}
}

func TestDigestLiveSendsAndRecords(t *testing.T) {
	f := newDigestFixture(t)
	f.addUser(t, 20, "owner@example.com", at(testBase, -48*time.Hour))
	f.addFollowBucket(t, 20, 1, at(testBase, -time.Hour))

	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected 1 digest, got %d", len(f.sender.sent))
	}
	if got := f.sender.sent[0].Email; got != "owner@example.com" {
		t.Fatalf("digest sent to %q", got)
	}

	rec, err := f.emails.LastSend(20)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("send record missing after successful send")
	}

	// Nothing new since the send record: the next cycle skips silently.
	f.now = f.now.Add(time.Hour)
	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected no second digest, got %d", len(f.sender.sent))
	}
}

func TestDigestFailureLeavesNoRecord(t *testing.T) {
	f := newDigestFixture(t)
	f.addUser(t, 20, "owner@example.com", at(testBase, -48*time.Hour))
	f.addFollowBucket(t, 20, 1, at(testBase, -time.Hour))
	f.sender.err = errors.New("smtp down")

	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec, err := f.emails.LastSend(20)
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("send record written despite failure")
	}

	// The mail server recovers; the same notifications go out next cycle.
	f.sender.err = nil
	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected retry to deliver, got %d sends", len(f.sender.sent))
	}
}

func TestDigestUnconfiguredSenderLeavesNoRecord(t *testing.T) {
	f := newDigestFixture(t)
	f.addUser(t, 20, "owner@example.com", at(testBase, -48*time.Hour))
	f.addFollowBucket(t, 20, 1, at(testBase, -time.Hour))
	f.sender.err = ErrEmailNotConfigured

	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec, err := f.emails.LastSend(20)
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("send record written without a mail transport")
	}

	// Credentials arrive; the pending digest goes out on the next cycle.
	f.sender.err = nil
	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected delivery once configured, got %d sends", len(f.sender.sent))
	}
	rec, err = f.emails.LastSend(20)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("send record missing after delivery")
	}
}

func TestDigestOffFrequencySkipped(t *testing.T) {
	f := newDigestFixture(t)
	f.addUser(t, 20, "owner@example.com", at(testBase, -48*time.Hour))
	f.addFollowBucket(t, 20, 1, at(testBase, -time.Hour))

	s := models.DefaultNotificationSettings(20)
	s.EmailFrequency = models.EmailFrequencyOff
	if err := f.settings.Upsert(&s); err != nil {
		t.Fatal(err)
	}

	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("off frequency must not send, got %d", len(f.sender.sent))
	}
}

func TestDigestDailyHonorsLocalWindow(t *testing.T) {
	f := newDigestFixture(t)
	f.addUser(t, 20, "owner@example.com", at(testBase, -7*24*time.Hour))
	f.addFollowBucket(t, 20, 1, at(testBase, -time.Hour))

	s := models.DefaultNotificationSettings(20)
	s.EmailFrequency = models.EmailFrequencyDaily
	if err := f.settings.Upsert(&s); err != nil {
		t.Fatal(err)
	}

	// Midday is outside the two-hour morning window.
	f.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("daily digest sent outside window, got %d", len(f.sender.sent))
	}

	f.now = time.Date(2024, 5, 2, 0, 30, 0, 0, time.UTC)
	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("daily digest missing inside window, got %d", len(f.sender.sent))
	}
}

func TestDigestCapsItems(t *testing.T) {
	f := newDigestFixture(t)
	f.addUser(t, 20, "owner@example.com", at(testBase, -48*time.Hour))
	for i := int64(1); i <= 8; i++ {
		f.addFollowBucket(t, 20, i, at(testBase, -time.Duration(i)*time.Minute))
	}

	if err := f.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected 1 digest, got %d", len(f.sender.sent))
	}
	if got := len(f.sender.sent[0].Items); got != DigestNotificationLimit {
		t.Fatalf("expected %d items, got %d", DigestNotificationLimit, got)
	}
}
