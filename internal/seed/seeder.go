// Package seed populates a development database with realistic accounts so
// the mention resolver and broadcast fan-out have something to resolve
// against.
package seed

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance.
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// seedPassword is the shared password for all generated accounts.
const seedPassword = "password123"

// SeedDev fills the development database with fake accounts. A handful of
// fixed nicknames come first so @mention testing does not depend on random
// output.
func (s *Seeder) SeedDev() error {
	logger.Log.Info("Creating users...")
	if err := s.seedUsers(100); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	logger.Log.Info("Seeding complete")
	return nil
}

// SeedTest creates the minimal fixture set integration tests expect.
func (s *Seeder) SeedTest() error {
	return s.seedUsers(10)
}

// Clean removes all seeded accounts. Destructive; dev only.
func (s *Seeder) Clean() error {
	result := s.db.Where("student_id LIKE ?", "seed-%").Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	logger.Log.Info("Removed seeded users", zap.Int64("count", result.RowsAffected))
	return nil
}

func (s *Seeder) seedUsers(count int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	// Stable nicknames for manual mention testing.
	fixed := []string{"Alice", "Bob", "Carol", "小明", "bob_2"}

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		nickname := gofakeit.Username()
		if i < len(fixed) {
			nickname = fixed[i]
		}
		users = append(users, models.User{
			StudentID:    fmt.Sprintf("seed-%08d", i+1),
			Nickname:     nickname,
			PasswordHash: string(hash),
			Role:         "user",
		})
	}

	if err := s.db.CreateInBatches(users, 50).Error; err != nil {
		return err
	}

	logger.Log.Info("Seeded users",
		zap.Int("count", len(users)),
		zap.String("password", seedPassword))
	return nil
}
