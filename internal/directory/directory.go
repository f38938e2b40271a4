// Package directory resolves display names to user identities and selects
// broadcast recipients. It is the only component that reads the users table
// on behalf of the notification fan-out.
package directory

import (
	"errors"

	"github.com/treehole/backend/internal/models"
	"gorm.io/gorm"
)

// Identity is the subset of a user the notification core needs.
type Identity struct {
	ID       string
	Nickname string
}

// Lookup resolves display names and enumerates recipients. Satisfied by
// *GormDirectory in production and by fakes in tests.
type Lookup interface {
	// FindByName returns the identity for a display name, or (nil, nil)
	// when no user matches. A miss is a no-op for callers, not an error.
	FindByName(name string) (*Identity, error)

	// ListUpTo returns at most n identities, excluding the given user id.
	// Selection order is account creation order; this is an explicit,
	// documented approximation of "active users", not a guarantee.
	ListUpTo(n int, excluding string) ([]Identity, error)
}

// GormDirectory implements Lookup over the users table.
type GormDirectory struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// FindByName tries an exact nickname match first, then retries once with a
// trailing punctuation run stripped. Matching is case-sensitive and there
// is no further fuzziness. Duplicate nicknames resolve to whichever row the
// database returns first.
func (d *GormDirectory) FindByName(name string) (*Identity, error) {
	if name == "" {
		return nil, nil
	}

	ident, err := d.findExact(name)
	if err != nil || ident != nil {
		return ident, err
	}

	trimmed := TrimTrailingPunct(name)
	if trimmed == name || trimmed == "" {
		return nil, nil
	}
	return d.findExact(trimmed)
}

func (d *GormDirectory) findExact(name string) (*Identity, error) {
	var user models.User
	err := d.db.Where("nickname = ?", name).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Identity{ID: user.ID, Nickname: user.Nickname}, nil
}

// ListUpTo selects the first n users by creation order, skipping the
// excluded id.
func (d *GormDirectory) ListUpTo(n int, excluding string) ([]Identity, error) {
	if n <= 0 {
		return nil, nil
	}

	query := d.db.Model(&models.User{}).
		Select("id", "nickname").
		Order("created_at ASC").
		Limit(n)
	if excluding != "" {
		query = query.Where("id <> ?", excluding)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}

	identities := make([]Identity, len(users))
	for i, u := range users {
		identities[i] = Identity{ID: u.ID, Nickname: u.Nickname}
	}
	return identities, nil
}
