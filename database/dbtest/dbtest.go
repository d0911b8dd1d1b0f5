// Package dbtest opens a migrated in-memory sqlite database for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cafemanager/config"
	"cafemanager/database"
	"cafemanager/model"
)

// New returns a fresh database private to t.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.Config{
		DBDriver:   "sqlite",
		DBSource:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		DBLogLevel: "silent",
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// Manager inserts a manager together with the cafe they own.
func Manager(t testing.TB, db *gorm.DB, email string) (*model.User, *model.Cafe) {
	t.Helper()

	user := &model.User{Name: email, Email: email, Password: "x", Role: model.RoleManager}
	require.NoError(t, db.Create(user).Error)

	cafe := &model.Cafe{Name: "Cafe of " + email, ManagerID: user.ID}
	require.NoError(t, db.Create(cafe).Error)
	return user, cafe
}

// Staff inserts a staff user linked to cafeID.
func Staff(t testing.TB, db *gorm.DB, email, cafeID string) *model.User {
	t.Helper()

	user := &model.User{Name: email, Email: email, Password: "x", Role: model.RoleStaff, CafeID: &cafeID}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&model.AllowedStaff{Email: email, CafeID: cafeID, UserID: &user.ID}).Error)
	return user
}
