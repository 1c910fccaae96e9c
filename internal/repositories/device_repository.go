package repositories

import (
	"github.com/wavelane/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository defines the interface for mobile device tokens and browser
// push subscriptions.
type DeviceRepository interface {
	RegisterDevice(token *models.NotificationDeviceToken) error
	DeregisterDevice(userID int64, deviceToken string) error
	GetDevices(userID int64) ([]models.NotificationDeviceToken, error)
	DisableDevice(deviceToken string) error

	RegisterBrowser(sub *models.NotificationBrowserSubscription) error
	DeregisterBrowser(userID int64, endpoint string) error
	GetBrowserSubscriptions(userID int64) ([]models.NotificationBrowserSubscription, error)
	DisableBrowser(endpoint string) error
}

type postgresDeviceRepository struct {
	db *gorm.DB
}

// NewPostgresDeviceRepository creates a gorm-backed DeviceRepository.
func NewPostgresDeviceRepository(db *gorm.DB) DeviceRepository {
	return &postgresDeviceRepository{db: db}
}

func (r *postgresDeviceRepository) RegisterDevice(token *models.NotificationDeviceToken) error {
	token.Enabled = true
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_token"}},
		UpdateAll: true,
	}).Create(token).Error
}

func (r *postgresDeviceRepository) DeregisterDevice(userID int64, deviceToken string) error {
	return r.db.Where("user_id = ? AND device_token = ?", userID, deviceToken).
		Delete(&models.NotificationDeviceToken{}).Error
}

func (r *postgresDeviceRepository) GetDevices(userID int64) ([]models.NotificationDeviceToken, error) {
	var tokens []models.NotificationDeviceToken
	err := r.db.Where("user_id = ? AND enabled = ?", userID, true).Find(&tokens).Error
	return tokens, err
}

// DisableDevice turns a token off after the push provider reports it gone.
func (r *postgresDeviceRepository) DisableDevice(deviceToken string) error {
	return r.db.Model(&models.NotificationDeviceToken{}).
		Where("device_token = ?", deviceToken).
		Update("enabled", false).Error
}

func (r *postgresDeviceRepository) RegisterBrowser(sub *models.NotificationBrowserSubscription) error {
	sub.Enabled = true
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		UpdateAll: true,
	}).Create(sub).Error
}

func (r *postgresDeviceRepository) DeregisterBrowser(userID int64, endpoint string) error {
	return r.db.Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&models.NotificationBrowserSubscription{}).Error
}

func (r *postgresDeviceRepository) GetBrowserSubscriptions(userID int64) ([]models.NotificationBrowserSubscription, error) {
	var subs []models.NotificationBrowserSubscription
	err := r.db.Where("user_id = ? AND enabled = ?", userID, true).Find(&subs).Error
	return subs, err
}

func (r *postgresDeviceRepository) DisableBrowser(endpoint string) error {
	return r.db.Model(&models.NotificationBrowserSubscription{}).
		Where("endpoint = ?", endpoint).
		Update("enabled", false).Error
}
