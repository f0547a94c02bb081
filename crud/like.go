package crud

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
)

// LikeService manages Likes.
// It implements the domain.LikeService interface.
type LikeService struct {
	likeValidator
}

// likeValidator runs validations on incoming Like data.
// On success, it passes the data on to likeGorm.
// Otherwise, it returns the error of the validation that has failed.
type likeValidator struct {
	likeGorm
}

// likeGorm runs CRUD operations on the database using incoming Like data.
// It assumes that data has been validated. On success, it returns nil.
// Otherwise, it returns the error of the operation that has failed.
type likeGorm struct {
	db *gorm.DB
}

// NewLikeService returns an instance of LikeService.
func NewLikeService(db *gorm.DB) *LikeService {
	return &LikeService{
		likeValidator{
			likeGorm{
				db: db,
			},
		},
	}
}

// Ensure the LikeService struct properly implements the domain.LikeService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.LikeService = &LikeService{}

// Create runs validations needed for creating new Like database records.
func (lv *likeValidator) Create(ctx context.Context, like *domain.Like) error {
	err := runLikeValFns(like,
		lv.userIdValid,
		lv.postIdValid)
	if err != nil {
		return err
	}
	return lv.likeGorm.Create(ctx, like)
}

// Delete runs validations needed for deleting existing Like database records.
func (lv *likeValidator) Delete(ctx context.Context, like *domain.Like) error {
	err := runLikeValFns(like,
		lv.userIdValid,
		lv.postIdValid)
	if err != nil {
		return err
	}
	return lv.likeGorm.Delete(ctx, like)
}

// runLikeValFns runs any number of functions of type likeValFn on the passed in Like object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runLikeValFns(like *domain.Like, fns ...likeValFn) error {
	for _, fn := range fns {
		if err := fn(like); err != nil {
			return err
		}
	}
	return nil
}

// A likeValFn is any function that takes in a pointer to a domain.Like object and returns an error.
type likeValFn func(like *domain.Like) error

// userIdValid ensures that the userId is not empty.
func (lv *likeValidator) userIdValid(like *domain.Like) error {
	if like.UserID <= 0 {
		return errs.Errorf(errs.EUNAUTHORIZED, "You must be logged in.")
	}
	return nil
}

// postIdValid ensures that the postId is not empty.
func (lv *likeValidator) postIdValid(like *domain.Like) error {
	if like.PostID <= 0 {
		return errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
	}
	return nil
}

// Create stores the like and increments the post's likes_count in the same transaction.
// The unique (user_id, post_id) index decides between concurrent duplicate likes.
func (lg *likeGorm) Create(ctx context.Context, like *domain.Like) error {
	ctx, span := tracer.Start(ctx, "like.Create")
	defer span.End()
	span.SetAttributes(attribute.Int("post.id", like.PostID))

	return lg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := postExists(tx, like.PostID); err != nil {
			return err
		}
		if err := tx.Create(like).Error; err != nil {
			if isDuplicate(err) {
				return errs.Errorf(errs.ECONFLICT, "You already like this post.")
			}
			return fmt.Errorf("create like: %w", err)
		}
		return adjustCounter(tx, like.PostID, "likes_count", 1)
	})
}

// Delete removes the like and decrements the post's likes_count in the same transaction.
func (lg *likeGorm) Delete(ctx context.Context, like *domain.Like) error {
	ctx, span := tracer.Start(ctx, "like.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int("post.id", like.PostID))

	return lg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", like.UserID, like.PostID).Delete(&domain.Like{})
		if res.Error != nil {
			return fmt.Errorf("delete like: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.Errorf(errs.ENOTFOUND, "You cannot unlike a post you have not liked.")
		}
		return adjustCounter(tx, like.PostID, "likes_count", -1)
	})
}

// adjustCounter adds delta to a denormalized counter column of a post.
func adjustCounter(tx *gorm.DB, postID int, column string, delta int) error {
	err := tx.Model(&domain.Post{}).
		Where("id = ?", postID).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("update %s of post %d: %w", column, postID, err)
	}
	return nil
}
