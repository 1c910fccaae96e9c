package repositories

import (
	"errors"
	"time"

	"github.com/wavelane/backend/internal/models"
	"gorm.io/gorm"
)

// EmailRepository defines the interface for digest send records.
type EmailRepository interface {
	RecordSend(userID int64, frequency string, at time.Time) error
	LastSend(userID int64) (*models.NotificationEmail, error)
}

type postgresEmailRepository struct {
	db *gorm.DB
}

// NewPostgresEmailRepository creates a gorm-backed EmailRepository.
func NewPostgresEmailRepository(db *gorm.DB) EmailRepository {
	return &postgresEmailRepository{db: db}
}

// RecordSend stores a send record. Written only after the message is accepted
// by the mail server, so a crash before delivery retries on the next cycle.
func (r *postgresEmailRepository) RecordSend(userID int64, frequency string, at time.Time) error {
	rec := models.NotificationEmail{
		UserID:         userID,
		EmailFrequency: frequency,
		Timestamp:      at,
	}
	return r.db.Create(&rec).Error
}

func (r *postgresEmailRepository) LastSend(userID int64) (*models.NotificationEmail, error) {
	var rec models.NotificationEmail
	err := r.db.Where("user_id = ?", userID).Order("timestamp DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
