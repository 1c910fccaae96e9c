package repositories

import (
	"errors"

	"github.com/wavelane/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for user account lookups.
type UserRepository interface {
	GetByBlockchainID(blockchainUserID int64) (*models.User, error)
	GetByBlockchainIDs(blockchainUserIDs []int64) (map[int64]models.User, error)
	GetByEmail(email string) (*models.User, error)
	Upsert(user *models.User) error
	GetAllWithEmail() ([]models.User, error)
}

type postgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a gorm-backed UserRepository.
func NewPostgresUserRepository(db *gorm.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) GetByBlockchainID(blockchainUserID int64) (*models.User, error) {
	var u models.User
	err := r.db.Where("blockchain_user_id = ?", blockchainUserID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *postgresUserRepository) GetByBlockchainIDs(blockchainUserIDs []int64) (map[int64]models.User, error) {
	result := make(map[int64]models.User, len(blockchainUserIDs))
	if len(blockchainUserIDs) == 0 {
		return result, nil
	}
	var users []models.User
	if err := r.db.Where("blockchain_user_id IN ?", blockchainUserIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.BlockchainUserID] = u
	}
	return result, nil
}

func (r *postgresUserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *postgresUserRepository) Upsert(user *models.User) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blockchain_user_id"}},
		UpdateAll: true,
	}).Create(user).Error
}

func (r *postgresUserRepository) GetAllWithEmail() ([]models.User, error) {
	var users []models.User
	err := r.db.Where("email <> ''").Find(&users).Error
	return users, err
}
