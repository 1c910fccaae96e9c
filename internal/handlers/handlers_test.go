package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
	"github.com/wavelane/backend/validators"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

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
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Notification{},
		&models.NotificationAction{},
		&models.Subscription{},
		&models.UserNotificationSettings{},
		&models.NotificationDeviceToken{},
		&models.NotificationBrowserSubscription{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
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

func newContext(t *testing.T, method, target, body string, userID int64) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = validators.NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user", &models.JwtCustomClaims{UserID: userID})
	}
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func entityID(v int64) *int64 { return &v }

func TestGetNotificationsEnvelope(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewPostgresNotificationRepository(db)
	anns := &memAnnouncements{}
	h := NewNotificationHandler(repo, anns)

	rows := []models.Notification{
		{UserID: 20, Type: "Follow", Timestamp: base.Add(-time.Minute)},
		{UserID: 20, Type: "FavoriteTrack", EntityID: entityID(10), Timestamp: base.Add(-2 * time.Minute)},
		{UserID: 20, Type: "TrendingTrack", EntityID: entityID(10), Timestamp: base.Add(-time.Second)},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatal(err)
		}
	}
	anns.items = append(anns.items, models.Announcement{
		EntityID: 1, Title: "Welcome", DatePublished: base.Add(-30 * time.Second),
	})

	c, rec := newContext(t, http.MethodGet, "/notifications", "", 20)
	if err := h.GetNotifications(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["message"] != "success" {
		t.Fatalf("missing success envelope: %v", body)
	}

	list := body["notifications"].([]interface{})
	// Trending is filtered out by default; announcement is merged in.
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	first := list[0].(map[string]interface{})
	if first["type"] != "Announcement" {
		t.Fatalf("expected announcement first, got %v", first["type"])
	}
	if body["totalUnread"].(float64) != 3 {
		t.Fatalf("totalUnread = %v", body["totalUnread"])
	}
}

func TestGetNotificationsWithTrendingFilter(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewPostgresNotificationRepository(db)
	h := NewNotificationHandler(repo, &memAnnouncements{})

	n := models.Notification{UserID: 20, Type: "TrendingTrack", EntityID: entityID(10), Timestamp: base.Add(-time.Second)}
	if err := db.Create(&n).Error; err != nil {
		t.Fatal(err)
	}

	c, rec := newContext(t, http.MethodGet, "/notifications?withTrendingTrack=true", "", 20)
	if err := h.GetNotifications(c); err != nil {
		t.Fatal(err)
	}
	body := decodeBody(t, rec)
	if len(body["notifications"].([]interface{})) != 1 {
		t.Fatalf("trending entry missing with filter enabled: %v", body)
	}
}

func TestGetNotificationsInvalidLimit(t *testing.T) {
	db := newTestDB(t)
	h := NewNotificationHandler(repositories.NewPostgresNotificationRepository(db), &memAnnouncements{})

	c, rec := newContext(t, http.MethodGet, "/notifications?limit=abc", "", 20)
	if err := h.GetNotifications(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if decodeBody(t, rec)["message"] == "success" {
		t.Fatal("bad request must not return the success envelope")
	}
}

func TestUpdateNotificationMarkRead(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewPostgresNotificationRepository(db)
	h := NewNotificationHandler(repo, &memAnnouncements{})

	n := models.Notification{UserID: 20, Type: "Follow", Timestamp: base}
	if err := db.Create(&n).Error; err != nil {
		t.Fatal(err)
	}

	c, rec := newContext(t, http.MethodPost, "/notifications",
		`{"notificationId": 1, "isRead": true}`, 20)
	if err := h.UpdateNotification(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var updated models.Notification
	if err := db.First(&updated, n.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !updated.IsRead || !updated.IsViewed {
		t.Fatalf("notification not marked read: %+v", updated)
	}

	// Another user cannot touch it.
	c2, rec2 := newContext(t, http.MethodPost, "/notifications",
		`{"notificationId": 1, "isRead": true}`, 99)
	if err := h.UpdateNotification(c2); err != nil {
		t.Fatal(err)
	}
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("foreign update must fail, status %d", rec2.Code)
	}
}

func TestUpdateAllNotifications(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewPostgresNotificationRepository(db)
	h := NewNotificationHandler(repo, &memAnnouncements{})

	for i := 0; i < 3; i++ {
		n := models.Notification{UserID: 20, Type: "Follow", Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := db.Create(&n).Error; err != nil {
			t.Fatal(err)
		}
	}

	c, rec := newContext(t, http.MethodPost, "/notifications/all", `{"isViewed": true}`, 20)
	if err := h.UpdateAllNotifications(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	unviewed, err := repo.CountUnviewed(20)
	if err != nil {
		t.Fatal(err)
	}
	if unviewed != 0 {
		t.Fatalf("expected all viewed, %d left", unviewed)
	}
}

func TestUpdateSettingsPartial(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewPostgresSettingsRepository(db)
	h := NewSettingsHandler(repo)

	c, rec := newContext(t, http.MethodPost, "/notifications/settings",
		`{"mobileReposts": false, "emailFrequency": "weekly"}`, 20)
	if err := h.UpdateSettings(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	s, err := repo.GetByUserID(20)
	if err != nil {
		t.Fatal(err)
	}
	if s.MobileReposts {
		t.Fatal("mobileReposts not disabled")
	}
	if s.EmailFrequency != models.EmailFrequencyWeekly {
		t.Fatalf("emailFrequency = %s", s.EmailFrequency)
	}
	// Untouched fields keep their defaults.
	if !s.MobileFollowers || !s.BrowserReposts {
		t.Fatalf("partial update clobbered other fields: %+v", s)
	}
}

func TestUpdateSettingsRejectsBadFrequency(t *testing.T) {
	db := newTestDB(t)
	h := NewSettingsHandler(repositories.NewPostgresSettingsRepository(db))

	c, rec := newContext(t, http.MethodPost, "/notifications/settings",
		`{"emailFrequency": "hourly"}`, 20)
	if err := h.UpdateSettings(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestSubscriptionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewPostgresSubscriptionRepository(db)
	h := NewSubscriptionHandler(repo)

	c, rec := newContext(t, http.MethodPost, "/notifications/subscription",
		`{"userId": 42, "isSubscribed": true}`, 20)
	if err := h.UpdateSubscription(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	c2, rec2 := newContext(t, http.MethodGet, "/notifications/subscription?userId=42", "", 20)
	if err := h.GetSubscription(c2); err != nil {
		t.Fatal(err)
	}
	body := decodeBody(t, rec2)
	if body["isSubscribed"] != true {
		t.Fatalf("expected subscribed, got %v", body)
	}

	c3, rec3 := newContext(t, http.MethodPost, "/notifications/subscription",
		`{"userId": 42, "isSubscribed": false}`, 20)
	if err := h.UpdateSubscription(c3); err != nil {
		t.Fatal(err)
	}
	if rec3.Code != http.StatusOK {
		t.Fatalf("status %d", rec3.Code)
	}
	subscribed, err := repo.IsSubscribed(20, 42)
	if err != nil {
		t.Fatal(err)
	}
	if subscribed {
		t.Fatal("unsubscribe did not stick")
	}
}

func TestRegisterDeviceValidation(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewPostgresDeviceRepository(db)
	h := NewDeviceHandler(repo)

	c, rec := newContext(t, http.MethodPost, "/push_notifications/device_token",
		`{"deviceType": "blackberry", "deviceToken": "tok"}`, 20)
	if err := h.RegisterDeviceToken(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}

	c2, rec2 := newContext(t, http.MethodPost, "/push_notifications/device_token",
		`{"deviceType": "ios", "deviceToken": "tok-1"}`, 20)
	if err := h.RegisterDeviceToken(c2); err != nil {
		t.Fatal(err)
	}
	if rec2.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec2.Code, rec2.Body.String())
	}

	devices, err := repo.GetDevices(20)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].DeviceToken != "tok-1" {
		t.Fatalf("device not registered: %+v", devices)
	}
}
