package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents the users table. Username stays NULL until claimed;
// the unique index still holds because postgres ignores NULLs in it.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Email        string         `gorm:"type:text;not null;uniqueIndex:idx_users_email"`
	Username     sql.NullString `gorm:"type:text;uniqueIndex:idx_users_username"`
	PasswordHash string         `gorm:"type:text;not null"`
	CreatedAt    time.Time      `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time      `gorm:"default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string {
	return "users"
}

// HasUsername reports whether the user has claimed a username yet.
func (u User) HasUsername() bool {
	return u.Username.Valid && u.Username.String != ""
}
