package directory

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

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, nickname string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		ID:           id,
		StudentID:    "sid-" + id,
		Nickname:     nickname,
		PasswordHash: "x",
		CreatedAt:    createdAt,
	}).Error)
}

func TestFindByNameExact(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", "Alice", time.Now())

	dir := New(db)
	ident, err := dir.FindByName("Alice")
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u1", ident.ID)
	assert.Equal(t, "Alice", ident.Nickname)
}

func TestFindByNameTrimmedFallback(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", "Alice", time.Now())
	seedUser(t, db, "u2", "小明", time.Now())

	dir := New(db)

	ident, err := dir.FindByName("Alice,")
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u1", ident.ID)

	ident, err = dir.FindByName(`Alice!?"`)
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u1", ident.ID)

	ident, err = dir.FindByName("小明。")
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u2", ident.ID)
}

func TestFindByNameExactWinsOverTrim(t *testing.T) {
	// When a nickname genuinely ends with punctuation the exact match is
	// taken and no trim happens.
	db := setupTestDB(t)
	seedUser(t, db, "u1", "Alice", time.Now())
	seedUser(t, db, "u2", "Alice!", time.Now())

	dir := New(db)
	ident, err := dir.FindByName("Alice!")
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u2", ident.ID)
}

func TestFindByNameMiss(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", "Alice", time.Now())

	dir := New(db)

	ident, err := dir.FindByName("Nobody")
	require.NoError(t, err)
	assert.Nil(t, ident)

	// All-punctuation names trim to empty and stay a miss.
	ident, err = dir.FindByName("...")
	require.NoError(t, err)
	assert.Nil(t, ident)

	ident, err = dir.FindByName("")
	require.NoError(t, err)
	assert.Nil(t, ident)
}

func TestFindByNameInteriorPunctuationKept(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", "a.b", time.Now())

	dir := New(db)
	ident, err := dir.FindByName("a.b")
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u1", ident.ID)
}

func TestListUpTo(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedUser(t, db, "u1", "first", base)
	seedUser(t, db, "u2", "second", base.Add(time.Hour))
	seedUser(t, db, "u3", "third", base.Add(2*time.Hour))

	dir := New(db)

	identities, err := dir.ListUpTo(10, "")
	require.NoError(t, err)
	require.Len(t, identities, 3)
	assert.Equal(t, "u1", identities[0].ID)
	assert.Equal(t, "u3", identities[2].ID)

	identities, err = dir.ListUpTo(2, "")
	require.NoError(t, err)
	require.Len(t, identities, 2)
	assert.Equal(t, "u1", identities[0].ID)
	assert.Equal(t, "u2", identities[1].ID)
}

func TestListUpToExcluding(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedUser(t, db, "u1", "first", base)
	seedUser(t, db, "u2", "second", base.Add(time.Hour))

	dir := New(db)
	identities, err := dir.ListUpTo(10, "u1")
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "u2", identities[0].ID)
}

func TestListUpToZero(t *testing.T) {
	db := setupTestDB(t)
	dir := New(db)

	identities, err := dir.ListUpTo(0, "")
	require.NoError(t, err)
	assert.Empty(t, identities)
}
