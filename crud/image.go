package crud

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
	"socialnet/logger"
)

// DefaultJPEGQuality is used when the configured quality is out of range.
const DefaultJPEGQuality = 80

// ImageService manages Images.
// It implements the domain.ImageService interface.
type ImageService struct {
	imageValidator
}

// imageValidator runs validations on incoming image data.
// On success, it passes the data on to imageCrud.
// Otherwise, it returns the error of the validation that has failed.
type imageValidator struct {
	imageCrud
}

// imageCrud re-encodes images, and reads and removes legacy image files in the uploads directory.
type imageCrud struct {
	uploadsDir string
	quality    int
	post       domain.Bounds
	avatar     domain.Bounds
}

// NewImageService returns an instance of ImageService. Zero bounds fall back to
// domain.PostBounds and domain.AvatarBounds.
func NewImageService(uploadsDir string, quality int, post, avatar domain.Bounds) *ImageService {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if post.Width <= 0 || post.Height <= 0 {
		post = domain.PostBounds
	}
	if avatar.Width <= 0 || avatar.Height <= 0 {
		avatar = domain.AvatarBounds
	}
	return &ImageService{
		imageValidator{
			imageCrud{
				uploadsDir: uploadsDir,
				quality:    quality,
				post:       post,
				avatar:     avatar,
			},
		},
	}
}

// PostBounds returns the box post images are scaled into.
func (ic *imageCrud) PostBounds() domain.Bounds { return ic.post }

// AvatarBounds returns the box avatars are scaled into.
func (ic *imageCrud) AvatarBounds() domain.Bounds { return ic.avatar }

// Ensure the ImageService struct properly implements the domain.ImageService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.ImageService = &ImageService{}

// upload holds the raw bytes of an image on its way through validation.
type upload struct {
	data        []byte
	contentType string
}

// Normalize reads an uploaded image, validates it, and returns it as an inline data URI
// scaled down to fit into b.
func (iv *imageValidator) Normalize(ctx context.Context, r io.Reader, b domain.Bounds) (string, error) {
	_, span := tracer.Start(ctx, "image.Normalize")
	defer span.End()

	// Read one byte more than allowed, so that belowMaxSize can tell an oversized upload apart.
	data, err := io.ReadAll(io.LimitReader(r, domain.MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	up := &upload{data: data}
	err = runImageValFns(up,
		iv.notEmpty,
		iv.belowMaxSize,
		iv.contentTypeValid)
	if err != nil {
		return "", err
	}
	return iv.imageCrud.encode(up, b), nil
}

// runImageValFns runs any number of functions of type imageValFn on the passed in upload.
func runImageValFns(up *upload, fns ...imageValFn) error {
	for _, fn := range fns {
		if err := fn(up); err != nil {
			return err
		}
	}
	return nil
}

// A imageValFn is any function that takes in a pointer to an upload and returns an error.
type imageValFn func(up *upload) error

// notEmpty makes sure that the upload carries data at all.
func (iv *imageValidator) notEmpty(up *upload) error {
	if len(up.data) == 0 {
		return errs.Errorf(errs.EINVALID, "The image is empty.")
	}
	return nil
}

// belowMaxSize makes sure that the image to be uploaded does not exceed MaxUploadSize.
func (iv *imageValidator) belowMaxSize(up *upload) error {
	if int64(len(up.data)) > domain.MaxUploadSize {
		return errs.Errorf(errs.EINVALID, "Image exceeds upload size limit of %dMB.", domain.MaxUploadSize>>20)
	}
	return nil
}

// contentTypeValid makes sure that the uploaded file is an image at all.
// Whether it can actually be decoded is decided later; undecodable images are kept verbatim.
func (iv *imageValidator) contentTypeValid(up *upload) error {
	contentType := http.DetectContentType(up.data)
	if !strings.HasPrefix(contentType, "image/") {
		return errs.Errorf(errs.EINVALID, "Only images are allowed.")
	}
	up.contentType = contentType
	return nil
}

// encode scales the image down into b and re-encodes it as JPEG. If the image cannot be
// decoded or encoded, the original bytes are kept as they are.
func (ic *imageCrud) encode(up *upload, b domain.Bounds) string {
	img, _, err := image.Decode(bytes.NewReader(up.data))
	if err != nil {
		logger.Warn("image decode failed, keeping original bytes",
			zap.String("content_type", up.contentType), zap.Error(err))
		return dataURI(up.contentType, up.data)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scale(img, b), &jpeg.Options{Quality: ic.quality}); err != nil {
		logger.Warn("image encode failed, keeping original bytes", zap.Error(err))
		return dataURI(up.contentType, up.data)
	}
	return dataURI("image/jpeg", buf.Bytes())
}

// Inline converts a legacy file reference into an inline image. Values that are not
// legacy references are returned unchanged with migrated set to false, which makes
// repeated calls harmless. The backing file is left in place; see RemoveLegacy.
func (ic *imageCrud) Inline(ctx context.Context, ref string, b domain.Bounds) (string, bool, error) {
	if !strings.HasPrefix(ref, domain.LegacyImagePrefix) {
		return ref, false, nil
	}
	_, span := tracer.Start(ctx, "image.Inline")
	defer span.End()
	path, err := ic.legacyPath(ref)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("read legacy image %q: %w", ref, err)
	}
	up := &upload{data: data, contentType: http.DetectContentType(data)}
	return ic.encode(up, b), true, nil
}

// RemoveLegacy deletes the file behind a legacy reference. Missing files are not an error.
func (ic *imageCrud) RemoveLegacy(ref string) error {
	if !strings.HasPrefix(ref, domain.LegacyImagePrefix) {
		return nil
	}
	path, err := ic.legacyPath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// legacyPath resolves a legacy reference like "/uploads/1690000000-cat.png" to a path
// inside the uploads directory. References cannot escape the directory.
func (ic *imageCrud) legacyPath(ref string) (string, error) {
	name := strings.TrimPrefix(ref, domain.LegacyImagePrefix)
	if name == "" || name != filepath.Base(name) || name == ".." {
		return "", errs.Errorf(errs.EINVALID, "Invalid image reference.")
	}
	return filepath.Join(ic.uploadsDir, name), nil
}

// fitWithin returns the size of a w×h image scaled down to fit into b, keeping its aspect ratio.
func fitWithin(w, h int, b domain.Bounds) (int, int) {
	if b.Width <= 0 || b.Height <= 0 || (w <= b.Width && h <= b.Height) {
		return w, h
	}
	ratio := math.Min(float64(b.Width)/float64(w), float64(b.Height)/float64(h))
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// scale draws src onto a white canvas of the fitted size, which also flattens transparency for JPEG.
func scale(src image.Image, b domain.Bounds) image.Image {
	sb := src.Bounds()
	w, h := fitWithin(sb.Dx(), sb.Dy(), b)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}

func dataURI(contentType string, data []byte) string {
	return domain.InlineImagePrefix + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI as sent by JSON clients.
func ParseDataURI(s string) ([]byte, error) {
	if !strings.HasPrefix(s, domain.InlineImagePrefix) {
		return nil, errs.Errorf(errs.EINVALID, "The image must be a data URI.")
	}
	i := strings.Index(s, ";base64,")
	if i < 0 {
		return nil, errs.Errorf(errs.EINVALID, "The image must be base64 encoded.")
	}
	data, err := base64.StdEncoding.DecodeString(s[i+len(";base64,"):])
	if err != nil {
		return nil, errs.Errorf(errs.EINVALID, "The image is not valid base64.")
	}
	return data, nil
}

// inlineLegacy migrates a legacy image column of a single row: it converts the referenced
// file, stores the inline value, and only then removes the file. The update is conditional
// on the old value, so concurrent readers migrating the same row cannot clobber each other.
// Whatever happens, the caller gets the best value it can display.
func inlineLegacy(ctx context.Context, db *gorm.DB, is *ImageService, model interface{}, column string, id int, ref string, b domain.Bounds) string {
	if is == nil || !strings.HasPrefix(ref, domain.LegacyImagePrefix) {
		return ref
	}
	value, migrated, err := is.Inline(ctx, ref, b)
	if err != nil {
		// Another request may have migrated the row and removed the file in the meantime.
		var current []string
		if e := db.WithContext(ctx).Model(model).Where("id = ?", id).Pluck(column, &current).Error; e == nil &&
			len(current) == 1 && strings.HasPrefix(current[0], domain.InlineImagePrefix) {
			return current[0]
		}
		logger.Warn("legacy image migration failed",
			zap.String("column", column), zap.Int("id", id), zap.String("ref", ref), zap.Error(err))
		return ""
	}
	if !migrated {
		return value
	}
	res := db.WithContext(ctx).Model(model).
		Where("id = ? AND "+column+" = ?", id, ref).
		Update(column, value)
	if res.Error != nil {
		logger.Warn("persisting migrated image failed",
			zap.String("column", column), zap.Int("id", id), zap.Error(res.Error))
		return value
	}
	if err := is.RemoveLegacy(ref); err != nil {
		logger.Warn("removing legacy image file failed", zap.String("ref", ref), zap.Error(err))
	}
	return value
}

// inlinePostImage migrates the image of a post in place.
func inlinePostImage(ctx context.Context, db *gorm.DB, is *ImageService, post *domain.Post) {
	if is == nil {
		return
	}
	post.Image = inlineLegacy(ctx, db, is, &domain.Post{}, "image", post.ID, post.Image, is.PostBounds())
}

// inlineAvatar migrates the avatar of a user in place.
func inlineAvatar(ctx context.Context, db *gorm.DB, is *ImageService, user *domain.User) {
	if is == nil {
		return
	}
	user.Avatar = inlineLegacy(ctx, db, is, &domain.User{}, "avatar", user.ID, user.Avatar, is.AvatarBounds())
}
