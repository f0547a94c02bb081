package crud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
	"socialnet/logger"
)

// MaxPostLength is the maximum number of characters of a post's content.
const MaxPostLength = 280

// PostService manages Posts.
// It implements the domain.PostService interface.
type PostService struct {
	postValidator
}

// postValidator runs validations on incoming Post data.
// On success, it passes the data on to postGorm.
// Otherwise, it returns the error of the validation that has failed.
type postValidator struct {
	postGorm
}

// postGorm runs CRUD operations on the database using incoming Post data.
// It assumes that data has been validated. On success, it returns nil.
// Otherwise, it returns the error of the operation that has failed.
type postGorm struct {
	db     *gorm.DB
	images *ImageService
}

// NewPostService returns an instance of PostService.
func NewPostService(db *gorm.DB, images *ImageService) *PostService {
	return &PostService{
		postValidator{
			postGorm{
				db:     db,
				images: images,
			},
		},
	}
}

// Ensure the PostService struct properly implements the domain.PostService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.PostService = &PostService{}

// Create runs validations needed for publishing a post. The image, if any, must already
// be normalized to its inline form.
func (pv *postValidator) Create(ctx context.Context, np domain.NewPost) (*domain.Post, error) {
	post := &domain.Post{
		UserID:  np.UserID,
		Content: np.Content,
		Image:   np.ImageData,
	}
	err := runPostValFns(post,
		pv.userIdValid,
		pv.contentNormalize,
		pv.contentOrImageRequired,
		pv.contentMaxLength,
		pv.imageInline,
		pv.topicExtract)
	if err != nil {
		return nil, err
	}
	if err := pv.postGorm.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete runs validations needed for deleting a post.
func (pv *postValidator) Delete(ctx context.Context, userID, id int) error {
	if userID <= 0 {
		return errs.Errorf(errs.EUNAUTHORIZED, "You must be logged in.")
	}
	if id <= 0 {
		return errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
	}
	return pv.postGorm.Delete(ctx, userID, id)
}

// runPostValFns runs any number of functions of type postValFn on the passed in Post object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runPostValFns(post *domain.Post, fns ...postValFn) error {
	for _, fn := range fns {
		if err := fn(post); err != nil {
			return err
		}
	}
	return nil
}

// A postValFn is any function that takes in a pointer to a domain.Post object and returns an error.
type postValFn func(post *domain.Post) error

// userIdValid ensures that the post has an author.
func (pv *postValidator) userIdValid(post *domain.Post) error {
	if post.UserID <= 0 {
		return errs.Errorf(errs.EUNAUTHORIZED, "You must be logged in.")
	}
	return nil
}

// contentNormalize trims the content's surrounding whitespace and composes it to NFC,
// so the length limit counts what the reader sees.
func (pv *postValidator) contentNormalize(post *domain.Post) error {
	post.Content = norm.NFC.String(strings.TrimSpace(post.Content))
	return nil
}

// contentOrImageRequired makes sure that a post carries text, an image, or both.
func (pv *postValidator) contentOrImageRequired(post *domain.Post) error {
	if post.Content == "" && post.Image == "" {
		return errs.Errorf(errs.EINVALID, "Post content must not be empty.")
	}
	return nil
}

// contentMaxLength makes sure that the content does not exceed MaxPostLength characters.
func (pv *postValidator) contentMaxLength(post *domain.Post) error {
	if utf8.RuneCountInString(post.Content) > MaxPostLength {
		return errs.Errorf(errs.EINVALID, "Post content max length is %d characters.", MaxPostLength)
	}
	return nil
}

// imageInline makes sure that new posts never reference files on disk.
func (pv *postValidator) imageInline(post *domain.Post) error {
	if post.Image != "" && !strings.HasPrefix(post.Image, domain.InlineImagePrefix) {
		return errs.Errorf(errs.EINVALID, "The image must be an inline image.")
	}
	return nil
}

// topicExtract stores the post's hashtag.
func (pv *postValidator) topicExtract(post *domain.Post) error {
	post.Topic = ExtractTopic(post.Content)
	return nil
}

// ByID retrieves a post along with its author and the viewer's relation to it.
// A legacy image is migrated on the way out.
func (pg *postGorm) ByID(ctx context.Context, viewerID, id int) (*domain.PostDetail, error) {
	var post domain.Post
	err := pg.db.WithContext(ctx).First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
		}
		return nil, err
	}
	details, err := detailPosts(ctx, pg.db, pg.images, viewerID, []domain.Post{post})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Create stores the data from the Post object in a new database record.
func (pg *postGorm) Create(ctx context.Context, post *domain.Post) error {
	if err := pg.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// Delete removes a post of userID along with its likes, comments and shares, all in one
// transaction. Posts of other users look just like missing ones. A legacy image file
// is removed only after the transaction has committed.
func (pg *postGorm) Delete(ctx context.Context, userID, id int) error {
	ctx, span := tracer.Start(ctx, "post.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int("post.id", id))

	var post domain.Post
	err := pg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&post).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.Errorf(errs.ENOTFOUND, "The post does not exist or you are not allowed to delete it.")
			}
			return err
		}
		for _, rel := range []interface{}{&domain.Like{}, &domain.Comment{}, &domain.Share{}} {
			if err := tx.Where("post_id = ?", id).Delete(rel).Error; err != nil {
				return fmt.Errorf("delete %T of post %d: %w", rel, id, err)
			}
		}
		if err := tx.Delete(&domain.Post{}, id).Error; err != nil {
			return fmt.Errorf("delete post %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if pg.images != nil {
		if err := pg.images.RemoveLegacy(post.Image); err != nil {
			logger.Warn("removing legacy post image failed", zap.Int("post_id", id), zap.Error(err))
		}
	}
	return nil
}
