package crud

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
)

// ShareService manages Shares.
// It implements the domain.ShareService interface.
type ShareService struct {
	shareValidator
}

// shareValidator runs validations on incoming Share data.
// On success, it passes the data on to shareGorm.
type shareValidator struct {
	shareGorm
}

// shareGorm runs CRUD operations on the database using incoming Share data.
type shareGorm struct {
	db *gorm.DB
}

// NewShareService returns an instance of ShareService.
func NewShareService(db *gorm.DB) *ShareService {
	return &ShareService{
		shareValidator{
			shareGorm{
				db: db,
			},
		},
	}
}

var _ domain.ShareService = &ShareService{}

// Create runs validations needed for resharing a post.
func (sv *shareValidator) Create(ctx context.Context, share *domain.Share) error {
	if err := runShareValFns(share, sv.userIdValid, sv.postIdValid); err != nil {
		return err
	}
	return sv.shareGorm.Create(ctx, share)
}

// Delete runs validations needed for undoing a reshare.
func (sv *shareValidator) Delete(ctx context.Context, share *domain.Share) error {
	if err := runShareValFns(share, sv.userIdValid, sv.postIdValid); err != nil {
		return err
	}
	return sv.shareGorm.Delete(ctx, share)
}

func runShareValFns(share *domain.Share, fns ...shareValFn) error {
	for _, fn := range fns {
		if err := fn(share); err != nil {
			return err
		}
	}
	return nil
}

type shareValFn func(share *domain.Share) error

func (sv *shareValidator) userIdValid(share *domain.Share) error {
	if share.UserID <= 0 {
		return errs.Errorf(errs.EUNAUTHORIZED, "You must be logged in.")
	}
	return nil
}

func (sv *shareValidator) postIdValid(share *domain.Share) error {
	if share.PostID <= 0 {
		return errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
	}
	return nil
}

// Create stores the share. The unique (user_id, post_id) index decides between concurrent duplicates.
func (sg *shareGorm) Create(ctx context.Context, share *domain.Share) error {
	ctx, span := tracer.Start(ctx, "share.Create")
	defer span.End()
	span.SetAttributes(attribute.Int("post.id", share.PostID))

	return sg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := postExists(tx, share.PostID); err != nil {
			return err
		}
		if err := tx.Create(share).Error; err != nil {
			if isDuplicate(err) {
				return errs.Errorf(errs.ECONFLICT, "You already shared this post.")
			}
			return fmt.Errorf("create share: %w", err)
		}
		return nil
	})
}

// Delete removes the viewer's share of a post.
func (sg *shareGorm) Delete(ctx context.Context, share *domain.Share) error {
	ctx, span := tracer.Start(ctx, "share.Delete")
	defer span.End()

	res := sg.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", share.UserID, share.PostID).
		Delete(&domain.Share{})
	if res.Error != nil {
		return fmt.Errorf("delete share: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Errorf(errs.ENOTFOUND, "Share not found.")
	}
	return nil
}

// Count returns how often a post has been reshared.
func (sg *shareGorm) Count(ctx context.Context, postID int) (int64, error) {
	return countBy(sg.db.WithContext(ctx), &domain.Share{}, "post_id = ?", postID)
}
