package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "test.db")}, true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_MigrateAndReset(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate())
	for _, m := range domain.Models() {
		assert.True(t, db.Gorm.Migrator().HasTable(m))
	}

	user := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: "x"}
	require.NoError(t, db.Gorm.Create(user).Error)
	require.NoError(t, db.Gorm.Create(&domain.Post{UserID: user.ID, Content: "hi"}).Error)

	require.NoError(t, db.DestructiveReset())
	var n int64
	require.NoError(t, db.Gorm.Model(&domain.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate())
	err := db.Gorm.Create(&domain.Post{UserID: 42, Content: "orphan"}).Error
	assert.Error(t, err)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{Driver: "mysql"}, true)
	assert.Error(t, err)
	_, err = Open(Config{Driver: DriverSQLite}, true)
	assert.Error(t, err)
}

func TestConfig_ConnectionInfo(t *testing.T) {
	pg := Config{Driver: DriverPostgres, Host: "localhost", Port: 5432, User: "postgres", Name: "socialnet"}
	assert.Equal(t, "host=localhost port=5432 user=postgres dbname=socialnet sslmode=disable", pg.ConnectionInfo())

	pg.Password = "pw"
	assert.Equal(t, "host=localhost port=5432 user=postgres password=pw dbname=socialnet sslmode=disable", pg.ConnectionInfo())

	pg.DSN = "postgres://u@h/db"
	assert.Equal(t, "postgres://u@h/db", pg.ConnectionInfo())

	lite := Config{Driver: DriverSQLite, SQLitePath: "data.db"}
	assert.Equal(t, "data.db?_foreign_keys=on&_busy_timeout=5000", lite.ConnectionInfo())
}
