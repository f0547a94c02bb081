package crud

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"socialnet/domain"
	"socialnet/errs"
)

const testPepper = "test-pepper"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// setupTestServices returns every crud service on a fresh database, plus the uploads
// directory legacy images are read from.
func setupTestServices(t *testing.T) (*Services, string) {
	t.Helper()
	uploads := t.TempDir()
	s, err := NewServices(setupTestDB(t),
		WithImage(uploads, DefaultJPEGQuality, domain.PostBounds, domain.AvatarBounds),
		WithUser(testPepper),
		WithSession("test-hmac-key", time.Hour),
		WithPost(),
		WithLike(),
		WithShare(),
		WithFollow(),
		WithComment(),
		WithFeed(),
		WithSearch(),
		WithReconciler(),
	)
	require.NoError(t, err)
	return s, uploads
}

func createUser(t *testing.T, s *Services, username string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username: username,
		Email:    username + "@x.com",
		Password: "secret1",
		FullName: username,
	}
	require.NoError(t, s.User.Create(context.Background(), user))
	return user
}

func createPost(t *testing.T, s *Services, userID int, content string) *domain.Post {
	t.Helper()
	post, err := s.Post.Create(context.Background(), domain.NewPost{UserID: userID, Content: content})
	require.NoError(t, err)
	return post
}

func requireCode(t *testing.T, code string, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, errs.ErrorCode(err), "error: %v", err)
}

// pngBytes encodes a w×h image with a transparent left half.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := w / 2; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
