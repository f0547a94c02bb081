package crud

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/domain"
	"socialnet/errs"
)

// decodeInline decodes an inline JPEG value back into an image.
func decodeInline(t *testing.T, value string) image.Image {
	t.Helper()
	const prefix = "data:image/jpeg;base64,"
	require.True(t, strings.HasPrefix(value, prefix), "unexpected value %.40s", value)
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestImageService_NormalizeScalesDown(t *testing.T) {
	is := NewImageService(t.TempDir(), 0, domain.Bounds{}, domain.Bounds{})

	value, err := is.Normalize(context.Background(), bytes.NewReader(pngBytes(t, 1600, 800)), domain.PostBounds)
	require.NoError(t, err)
	b := decodeInline(t, value).Bounds()
	assert.Equal(t, 800, b.Dx())
	assert.Equal(t, 400, b.Dy())

	value, err = is.Normalize(context.Background(), bytes.NewReader(pngBytes(t, 300, 600)), domain.AvatarBounds)
	require.NoError(t, err)
	b = decodeInline(t, value).Bounds()
	assert.Equal(t, 100, b.Dx())
	assert.Equal(t, 200, b.Dy())
}

func TestImageService_NormalizeNeverUpscales(t *testing.T) {
	is := NewImageService(t.TempDir(), 90, domain.PostBounds, domain.AvatarBounds)

	value, err := is.Normalize(context.Background(), bytes.NewReader(pngBytes(t, 40, 30)), domain.PostBounds)
	require.NoError(t, err)
	b := decodeInline(t, value).Bounds()
	assert.Equal(t, 40, b.Dx())
	assert.Equal(t, 30, b.Dy())
}

func TestImageService_NormalizeGIF(t *testing.T) {
	is := NewImageService(t.TempDir(), 0, domain.PostBounds, domain.AvatarBounds)
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, 20, 10), []color.Color{color.Black, color.White}), nil))

	value, err := is.Normalize(context.Background(), &buf, domain.PostBounds)
	require.NoError(t, err)
	assert.Equal(t, 20, decodeInline(t, value).Bounds().Dx())
}

func TestImageService_NormalizeRejects(t *testing.T) {
	is := NewImageService(t.TempDir(), 0, domain.PostBounds, domain.AvatarBounds)
	ctx := context.Background()

	_, err := is.Normalize(ctx, strings.NewReader("just some text"), domain.PostBounds)
	requireCode(t, errs.EINVALID, err)

	_, err = is.Normalize(ctx, bytes.NewReader(nil), domain.PostBounds)
	requireCode(t, errs.EINVALID, err)

	big := append(pngBytes(t, 2, 2), make([]byte, domain.MaxUploadSize)...)
	_, err = is.Normalize(ctx, bytes.NewReader(big), domain.PostBounds)
	requireCode(t, errs.EINVALID, err)
}

func TestImageService_NormalizeKeepsUndecodableBytes(t *testing.T) {
	is := NewImageService(t.TempDir(), 0, domain.PostBounds, domain.AvatarBounds)

	// A PNG signature followed by garbage sniffs as an image but does not decode.
	raw := append([]byte("\x89PNG\r\n\x1a\n"), []byte("definitely not chunks")...)
	value, err := is.Normalize(context.Background(), bytes.NewReader(raw), domain.PostBounds)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(raw), value)
}

func TestImageService_Inline(t *testing.T) {
	dir := t.TempDir()
	is := NewImageService(dir, 0, domain.PostBounds, domain.AvatarBounds)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), pngBytes(t, 400, 400), 0o644))

	value, migrated, err := is.Inline(ctx, "/uploads/cat.png", domain.AvatarBounds)
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Equal(t, 200, decodeInline(t, value).Bounds().Dx())

	// Inline values and empty values pass through untouched.
	again, migrated, err := is.Inline(ctx, value, domain.AvatarBounds)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Equal(t, value, again)
	empty, migrated, err := is.Inline(ctx, "", domain.AvatarBounds)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Empty(t, empty)

	_, _, err = is.Inline(ctx, "/uploads/../etc/passwd", domain.AvatarBounds)
	requireCode(t, errs.EINVALID, err)
	_, _, err = is.Inline(ctx, "/uploads/missing.png", domain.AvatarBounds)
	require.Error(t, err)
}

func TestImageService_RemoveLegacy(t *testing.T) {
	dir := t.TempDir()
	is := NewImageService(dir, 0, domain.PostBounds, domain.AvatarBounds)
	path := filepath.Join(dir, "old.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, is.RemoveLegacy("/uploads/old.jpg"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, is.RemoveLegacy("/uploads/old.jpg"), "already gone")
	require.NoError(t, is.RemoveLegacy("data:image/jpeg;base64,AAAA"))
}

func TestUserService_ByIDMigratesLegacyAvatar(t *testing.T) {
	s, uploads := setupTestServices(t)
	alice := createUser(t, s, "alice")
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "me.png"), pngBytes(t, 500, 500), 0o644))
	require.NoError(t, s.DB().Model(&domain.User{}).Where("id = ?", alice.ID).Update("avatar", "/uploads/me.png").Error)

	user, err := s.User.ByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, decodeInline(t, user.Avatar).Bounds().Dx())

	var stored domain.User
	require.NoError(t, s.DB().First(&stored, alice.ID).Error)
	assert.Equal(t, user.Avatar, stored.Avatar)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{1600, 800, 800, 400},
		{800, 1600, 400, 800},
		{800, 800, 800, 800},
		{100, 50, 100, 50},
		{8000, 1, 800, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, domain.PostBounds)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestParseDataURI(t *testing.T) {
	data, err := ParseDataURI("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = ParseDataURI("/uploads/x.png")
	requireCode(t, errs.EINVALID, err)
	_, err = ParseDataURI("data:image/png,plain")
	requireCode(t, errs.EINVALID, err)
}
