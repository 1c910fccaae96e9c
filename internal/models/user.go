package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the account record the digest scheduler reads: where to send the
// email and which timezone anchors the daily/weekly send window.
type User struct {
	ID               uint      `json:"-" gorm:"primaryKey"`
	BlockchainUserID int64     `json:"userId" gorm:"uniqueIndex"`
	Handle           string    `json:"handle" gorm:"size:60"`
	Name             string    `json:"name"`
	Email            string    `json:"email" gorm:"uniqueIndex"`
	Timezone         string    `json:"timezone" gorm:"size:60"`
	CreatedAt        time.Time `json:"createdAt"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
