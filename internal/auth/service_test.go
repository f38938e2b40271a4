package auth

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	os.Exit(m.Run())
}

func newTestService(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return NewService(db, []byte("test-secret"), time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Register("2021001", "Alice", "password123")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Alice", resp.User.Nickname)
	assert.NotEmpty(t, resp.User.ID)

	login, err := svc.Login("2021001", "password123")
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func TestRegisterDuplicateStudentID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("2021001", "Alice", "password123")
	require.NoError(t, err)

	_, err = svc.Register("2021001", "Other", "password456")
	assert.ErrorIs(t, err, ErrStudentIDExists)
}

func TestRegisterAllowsDuplicateNicknames(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("2021001", "Alice", "password123")
	require.NoError(t, err)
	_, err = svc.Register("2021002", "Alice", "password123")
	assert.NoError(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("2021001", "Alice", "password123")
	require.NoError(t, err)

	_, err = svc.Login("2021001", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyToken(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Register("2021001", "Alice", "password123")
	require.NoError(t, err)

	user, err := svc.VerifyToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.Equal(t, "Alice", user.Nickname)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.VerifyToken("not-a-token")
	assert.Error(t, err)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	svc := newTestService(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	other := NewService(db, []byte("different-secret"), time.Hour)

	resp, err := other.Register("2021001", "Alice", "password123")
	require.NoError(t, err)

	_, err = svc.VerifyToken(resp.Token)
	assert.Error(t, err)
}

func TestVerifyTokenExpired(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	svc := NewService(db, []byte("test-secret"), -time.Hour)

	resp, err := svc.Register("2021001", "Alice", "password123")
	require.NoError(t, err)

	_, err = svc.VerifyToken(resp.Token)
	assert.Error(t, err)
}
