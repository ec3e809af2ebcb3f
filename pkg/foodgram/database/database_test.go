package database

import (
	"testing"

	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConnectSQLite(t *testing.T) {
	db, err := Connect("sqlite", ":memory:", "error")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	user := models.User{Email: "a@example.com", Username: "a", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)

	dup := models.User{Email: "a@example.com", Username: "b", PasswordHash: "x"}
	err = db.Create(&dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect("oracle", "x", "error")
	assert.Error(t, err)
}
