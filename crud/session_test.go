package crud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
	"socialnet/logger"
)

// exerciseSessions runs the behavior every session store shares.
func exerciseSessions(t *testing.T, store domain.SessionService, userID int) {
	ctx := context.Background()

	token, err := store.Create(ctx, userID)
	require.NoError(t, err)
	n, err := nBytes(token)
	require.NoError(t, err)
	assert.Equal(t, SessionTokenBytes, n)

	got, err := store.UserID(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	other, err := store.Create(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	require.NoError(t, store.Delete(ctx, token))
	_, err = store.UserID(ctx, token)
	requireCode(t, errs.EUNAUTHORIZED, err)

	// Logging out one session leaves the others alone.
	got, err = store.UserID(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = store.UserID(ctx, "")
	requireCode(t, errs.EUNAUTHORIZED, err)
	_, err = store.UserID(ctx, "not base64!")
	requireCode(t, errs.EUNAUTHORIZED, err)
	require.NoError(t, store.Delete(ctx, "unknown"))
}

func TestSessionService(t *testing.T) {
	s, _ := setupTestServices(t)
	alice := createUser(t, s, "alice")
	exerciseSessions(t, s.Session, alice.ID)
}

func TestSessionService_StoresOnlyHash(t *testing.T) {
	s, _ := setupTestServices(t)
	alice := createUser(t, s, "alice")

	token, err := s.Session.Create(context.Background(), alice.ID)
	require.NoError(t, err)

	var stored domain.Session
	require.NoError(t, s.DB().First(&stored).Error)
	assert.NotEqual(t, token, stored.TokenHash)
	assert.Equal(t, alice.ID, stored.UserID)
}

func TestSessionService_Expired(t *testing.T) {
	db := setupTestDB(t)
	store := NewSessionService(db, "key", time.Hour)
	user := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)

	token, err := store.Create(context.Background(), user.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Session{}).Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	_, err = store.UserID(context.Background(), token)
	requireCode(t, errs.EUNAUTHORIZED, err)

	var count int64
	require.NoError(t, db.Model(&domain.Session{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSessionService_ExpiredDeleteFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	db := setupTestDB(t)
	store := NewSessionService(db, "key", time.Hour)
	user := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	token, err := store.Create(context.Background(), user.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Session{}).Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:fail", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk full"))
	}))

	_, err = store.UserID(context.Background(), token)
	requireCode(t, errs.EUNAUTHORIZED, err)

	entries := logs.FilterMessage("delete expired session").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(user.ID), entries[0].ContextMap()["user_id"])
	assert.Contains(t, entries[0].ContextMap()["error"], "disk full")
}

func TestRedisSessionService(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisSessionService(client, "key", time.Hour)
	exerciseSessions(t, store, 42)
}

func TestRedisSessionService_Expired(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewRedisSessionService(client, "key", time.Hour)
	ctx := context.Background()

	token, err := store.Create(ctx, 7)
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, err = store.UserID(ctx, token)
	requireCode(t, errs.EUNAUTHORIZED, err)
}
