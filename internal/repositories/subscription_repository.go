package repositories

import (
	"fmt"

	"github.com/wavelane/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionRepository defines the interface for upload subscriptions
// (subscriber wants a notification whenever user uploads).
type SubscriptionRepository interface {
	Subscribe(subscriberID, userID int64) error
	Unsubscribe(subscriberID, userID int64) error
	IsSubscribed(subscriberID, userID int64) (bool, error)
	GetSubscriberIDs(userID int64) ([]int64, error)
}

type postgresSubscriptionRepository struct {
	db *gorm.DB
}

// NewPostgresSubscriptionRepository creates a gorm-backed SubscriptionRepository.
func NewPostgresSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &postgresSubscriptionRepository{db: db}
}

func (r *postgresSubscriptionRepository) Subscribe(subscriberID, userID int64) error {
	if subscriberID == userID {
		return fmt.Errorf("cannot subscribe to yourself")
	}
	sub := models.Subscription{SubscriberID: subscriberID, UserID: userID}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscriber_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&sub).Error
}

func (r *postgresSubscriptionRepository) Unsubscribe(subscriberID, userID int64) error {
	return r.db.Where("subscriber_id = ? AND user_id = ?", subscriberID, userID).
		Delete(&models.Subscription{}).Error
}

func (r *postgresSubscriptionRepository) IsSubscribed(subscriberID, userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).
		Where("subscriber_id = ? AND user_id = ?", subscriberID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *postgresSubscriptionRepository) GetSubscriberIDs(userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Pluck("subscriber_id", &ids).Error
	return ids, err
}
