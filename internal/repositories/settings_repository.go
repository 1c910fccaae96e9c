package repositories

import (
	"errors"

	"github.com/wavelane/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository defines the interface for notification settings storage.
type SettingsRepository interface {
	GetByUserID(userID int64) (*models.UserNotificationSettings, error)
	GetByUserIDs(userIDs []int64) (map[int64]models.UserNotificationSettings, error)
	Upsert(settings *models.UserNotificationSettings) error
}

type postgresSettingsRepository struct {
	db *gorm.DB
}

// NewPostgresSettingsRepository creates a gorm-backed SettingsRepository.
func NewPostgresSettingsRepository(db *gorm.DB) SettingsRepository {
	return &postgresSettingsRepository{db: db}
}

// GetByUserID returns the user's stored settings, or the all-enabled defaults
// when no row exists.
func (r *postgresSettingsRepository) GetByUserID(userID int64) (*models.UserNotificationSettings, error) {
	var s models.UserNotificationSettings
	err := r.db.Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := models.DefaultNotificationSettings(userID)
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUserIDs batch-loads settings for a set of recipients. Users with no
// stored row get the defaults, so every requested id is present in the result.
func (r *postgresSettingsRepository) GetByUserIDs(userIDs []int64) (map[int64]models.UserNotificationSettings, error) {
	result := make(map[int64]models.UserNotificationSettings, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	var rows []models.UserNotificationSettings
	if err := r.db.Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, s := range rows {
		result[s.UserID] = s
	}
	for _, id := range userIDs {
		if _, ok := result[id]; !ok {
			result[id] = models.DefaultNotificationSettings(id)
		}
	}
	return result, nil
}

func (r *postgresSettingsRepository) Upsert(settings *models.UserNotificationSettings) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(settings).Error
}
