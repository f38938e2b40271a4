package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a forum account. Nickname is the display name that @mentions
// resolve against; it is not unique, and lookups accept whichever row the
// database returns first when duplicates exist.
type User struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	StudentID string `gorm:"uniqueIndex;not null" json:"student_id"`
	Nickname  string `gorm:"index;not null" json:"nickname"`

	PasswordHash string `gorm:"type:text;not null" json:"-"`

	Role string `gorm:"default:user" json:"role"` // user, moderator, admin

	// Leveling system counters
	Experience int `gorm:"default:0" json:"experience"`
	Level      int `gorm:"default:1" json:"level"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// IsModerator reports whether the user can act on other users' content.
func (u *User) IsModerator() bool {
	return u.Role == "moderator" || u.Role == "admin"
}
