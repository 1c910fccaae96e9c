package repositories

import (
	"errors"
	"time"

	"github.com/wavelane/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BucketKey identifies one aggregation bucket. EntityID is nil for types
// that aggregate per-user only (e.g. follows, follow milestones).
type BucketKey struct {
	UserID   int64
	Type     string
	EntityID *int64
}

// UpsertResult reports what an upsert did. ActionCreated is false when the
// contributing action already existed, in which case the bucket timestamp is
// left untouched and no push should be emitted.
type UpsertResult struct {
	BucketID      uint
	BucketCreated bool
	ActionCreated bool
}

// NotificationRepository defines the interface for notification bucket and
// action persistence.
type NotificationRepository interface {
	Transaction(fn func(NotificationRepository) error) error

	UpsertBucket(key BucketKey, actionEntityType string, actionEntityID, blocknumber int64, ts time.Time) (UpsertResult, error)
	CreateBucket(n *models.Notification) error

	ListForUser(userID int64, limit int, before time.Time, excludeTypes []string) ([]models.Notification, error)
	CountUnviewed(userID int64) (int64, error)
	MarkViewed(userID int64, notificationID uint) error
	MarkAllViewed(userID int64) error
	MarkRead(userID int64, notificationID uint) error
	MarkAllRead(userID int64) error
	Hide(userID int64, notificationID uint) error

	DeleteStaleMilestones(userID int64, milestoneType string, entityID *int64, keepID uint) error
	MilestoneExists(userID int64, milestoneType string, entityID *int64, threshold int64) (bool, error)
	ExistsAt(userID int64, nType string, entityID *int64, blocknumber int64) (bool, error)
	ChallengeRewardExists(userID int64, challengeID string, blocknumber int64) (bool, error)
	LatestTrending(trackID int64) (*models.Notification, error)
	DeleteCreateActions(createType string, ownerID int64, trackIDs []int64) error

	HighestBlocknumber() (int64, error)
	ListUnviewedSince(userID int64, since time.Time, limit int) ([]models.Notification, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

// NewPostgresNotificationRepository creates a gorm-backed NotificationRepository.
func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Transaction(fn func(NotificationRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&postgresNotificationRepository{db: tx})
	})
}

// UpsertBucket finds the recipient's unviewed bucket for the key, creating one
// when none exists, then attaches the contributing action if it is not already
// present. The bucket timestamp moves forward only when a new action lands, so
// replayed events leave the feed ordering untouched.
func (r *postgresNotificationRepository) UpsertBucket(key BucketKey, actionEntityType string, actionEntityID, blocknumber int64, ts time.Time) (UpsertResult, error) {
	var res UpsertResult

	q := r.db.Where("user_id = ? AND type = ? AND is_viewed = ?", key.UserID, key.Type, false)
	if key.EntityID != nil {
		q = q.Where("entity_id = ?", *key.EntityID)
	} else {
		q = q.Where("entity_id IS NULL")
	}

	var bucket models.Notification
	err := q.Order("timestamp DESC").First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bucket = models.Notification{
			UserID:      key.UserID,
			Type:        key.Type,
			EntityID:    key.EntityID,
			Blocknumber: blocknumber,
			Timestamp:   ts,
		}
		if err := r.db.Create(&bucket).Error; err != nil {
			return res, err
		}
		res.BucketCreated = true
	} else if err != nil {
		return res, err
	}
	res.BucketID = bucket.ID

	action := models.NotificationAction{
		NotificationID:   bucket.ID,
		ActionEntityType: actionEntityType,
		ActionEntityID:   actionEntityID,
		Blocknumber:      blocknumber,
	}
	ins := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notification_id"}, {Name: "action_entity_type"}, {Name: "action_entity_id"}},
		DoNothing: true,
	}).Create(&action)
	if ins.Error != nil {
		return res, ins.Error
	}
	res.ActionCreated = ins.RowsAffected > 0

	if res.ActionCreated && !res.BucketCreated {
		upd := map[string]interface{}{"timestamp": ts, "blocknumber": blocknumber}
		if err := r.db.Model(&models.Notification{}).Where("id = ?", bucket.ID).Updates(upd).Error; err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *postgresNotificationRepository) CreateBucket(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *postgresNotificationRepository) ListForUser(userID int64, limit int, before time.Time, excludeTypes []string) ([]models.Notification, error) {
	var notifications []models.Notification
	q := r.db.Preload("Actions").
		Where("user_id = ? AND is_hidden = ? AND timestamp < ?", userID, false, before)
	if len(excludeTypes) > 0 {
		q = q.Where("type NOT IN ?", excludeTypes)
	}
	err := q.Order("timestamp DESC").Order("entity_id ASC").Limit(limit).Find(&notifications).Error
	return notifications, err
}

func (r *postgresNotificationRepository) CountUnviewed(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_viewed = ? AND is_hidden = ?", userID, false, false).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkViewed(userID int64, notificationID uint) error {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_viewed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllViewed(userID int64) error {
	return r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_viewed = ?", userID, false).
		Update("is_viewed", true).Error
}

func (r *postgresNotificationRepository) MarkRead(userID int64, notificationID uint) error {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{"is_read": true, "is_viewed": true})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllRead(userID int64) error {
	return r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "is_viewed": true}).Error
}

func (r *postgresNotificationRepository) Hide(userID int64, notificationID uint) error {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_hidden", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteStaleMilestones removes the recipient's other unread buckets of the
// same milestone type and entity, so only the latest threshold stays visible.
func (r *postgresNotificationRepository) DeleteStaleMilestones(userID int64, milestoneType string, entityID *int64, keepID uint) error {
	q := r.db.Where("user_id = ? AND type = ? AND is_read = ? AND id <> ?", userID, milestoneType, false, keepID)
	if entityID != nil {
		q = q.Where("entity_id = ?", *entityID)
	} else {
		q = q.Where("entity_id IS NULL")
	}
	var stale []models.Notification
	err := q.Find(&stale).Error
	if err != nil {
		return err
	}
	for _, n := range stale {
		if err := r.db.Where("notification_id = ?", n.ID).Delete(&models.NotificationAction{}).Error; err != nil {
			return err
		}
		if err := r.db.Delete(&models.Notification{}, n.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// MilestoneExists reports whether the recipient already has a bucket for the
// exact threshold, which marks a replayed milestone event.
func (r *postgresNotificationRepository) MilestoneExists(userID int64, milestoneType string, entityID *int64, threshold int64) (bool, error) {
	q := r.db.Model(&models.Notification{}).
		Joins("JOIN notification_actions ON notification_actions.notification_id = notifications.id").
		Where("notifications.user_id = ? AND notifications.type = ?", userID, milestoneType).
		Where("notification_actions.action_entity_id = ?", threshold)
	if entityID != nil {
		q = q.Where("notifications.entity_id = ?", *entityID)
	} else {
		q = q.Where("notifications.entity_id IS NULL")
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsAt reports whether a bucket of the type was already written for the
// event's block, guarding one-shot types against batch replay.
func (r *postgresNotificationRepository) ExistsAt(userID int64, nType string, entityID *int64, blocknumber int64) (bool, error) {
	q := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ? AND blocknumber = ?", userID, nType, blocknumber)
	if entityID != nil {
		q = q.Where("entity_id = ?", *entityID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ChallengeRewardExists reports whether the exact challenge was already
// rewarded at the event's block. Distinct challenges completed at the same
// block each keep their own reward.
func (r *postgresNotificationRepository) ChallengeRewardExists(userID int64, challengeID string, blocknumber int64) (bool, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ? AND challenge_id = ? AND blocknumber = ?",
			userID, "ChallengeReward", challengeID, blocknumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestTrending returns the most recent trending bucket for a track, or nil
// when the track has never trended.
func (r *postgresNotificationRepository) LatestTrending(trackID int64) (*models.Notification, error) {
	var n models.Notification
	err := r.db.Preload("Actions").
		Where("type = ? AND entity_id = ?", "TrendingTrack", trackID).
		Order("timestamp DESC").First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteCreateActions strips the given tracks out of subscribers' pending
// upload buckets when an album or playlist create supersedes them. Buckets
// left with no actions are removed as well.
func (r *postgresNotificationRepository) DeleteCreateActions(createType string, ownerID int64, trackIDs []int64) error {
	if len(trackIDs) == 0 {
		return nil
	}
	var buckets []models.Notification
	err := r.db.Where("type = ? AND entity_id = ? AND is_viewed = ?", createType, ownerID, false).
		Find(&buckets).Error
	if err != nil {
		return err
	}
	for _, b := range buckets {
		res := r.db.Where("notification_id = ? AND action_entity_type = ? AND action_entity_id IN ?",
			b.ID, "Track", trackIDs).Delete(&models.NotificationAction{})
		if res.Error != nil {
			return res.Error
		}
		var remaining int64
		if err := r.db.Model(&models.NotificationAction{}).Where("notification_id = ?", b.ID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			if err := r.db.Delete(&models.Notification{}, b.ID).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// HighestBlocknumber reports the indexing checkpoint: the largest blocknumber
// seen across all stored notifications, 0 when the table is empty.
func (r *postgresNotificationRepository) HighestBlocknumber() (int64, error) {
	var max *int64
	err := r.db.Model(&models.Notification{}).Select("MAX(blocknumber)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *postgresNotificationRepository) ListUnviewedSince(userID int64, since time.Time, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.Preload("Actions").
		Where("user_id = ? AND is_viewed = ? AND is_hidden = ? AND timestamp >= ?", userID, false, false, since).
		Order("timestamp DESC").Limit(limit).
		Find(&notifications).Error
	return notifications, err
}
