package crud

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
)

// FollowService manages Follows.
// It implements the domain.FollowService interface.
type FollowService struct {
	followValidator
}

// followValidator runs validations on incoming Follow data.
// On success, it passes the data on to followGorm.
// Otherwise, it returns the error of the validation that has failed.
type followValidator struct {
	followGorm
}

// followGorm runs CRUD operations on the database using incoming Follow data.
// It assumes that data has been validated. On success, it returns nil.
// Otherwise, it returns the error of the operation that has failed.
type followGorm struct {
	db     *gorm.DB
	images *ImageService
}

// NewFollowService returns an instance of FollowService.
func NewFollowService(db *gorm.DB, images *ImageService) *FollowService {
	return &FollowService{
		followValidator{
			followGorm{
				db:     db,
				images: images,
			},
		},
	}
}

// Ensure the FollowService struct properly implements the domain.FollowService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.FollowService = &FollowService{}

// Create runs validations needed for creating new Follow database records.
func (fv *followValidator) Create(ctx context.Context, follow *domain.Follow) error {
	err := runFollowValFns(follow,
		fv.followerIdValid,
		fv.followingIdValid,
		fv.notSelfFollow)
	if err != nil {
		return err
	}
	return fv.followGorm.Create(ctx, follow)
}

// Delete runs validations needed for deleting existing Follow database records.
func (fv *followValidator) Delete(ctx context.Context, follow *domain.Follow) error {
	err := runFollowValFns(follow,
		fv.followerIdValid,
		fv.followingIdValid)
	if err != nil {
		return err
	}
	return fv.followGorm.Delete(ctx, follow)
}

// runFollowValFns runs any number of functions of type followValFn on the passed in Follow object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runFollowValFns(follow *domain.Follow, fns ...followValFn) error {
	for _, fn := range fns {
		if err := fn(follow); err != nil {
			return err
		}
	}
	return nil
}

// A followValFn is any function that takes in a pointer to a domain.Follow object and returns an error.
type followValFn func(follow *domain.Follow) error

// followerIdValid makes sure that the follower is known.
func (fv *followValidator) followerIdValid(follow *domain.Follow) error {
	if follow.FollowerID <= 0 {
		return errs.Errorf(errs.EUNAUTHORIZED, "You must be logged in.")
	}
	return nil
}

// followingIdValid makes sure that the followed user id is set.
func (fv *followValidator) followingIdValid(follow *domain.Follow) error {
	if follow.FollowingID <= 0 {
		return errs.Errorf(errs.ENOTFOUND, "The user does not exist.")
	}
	return nil
}

// notSelfFollow makes sure that a user does not try to follow themselves.
func (fv *followValidator) notSelfFollow(follow *domain.Follow) error {
	if follow.FollowerID == follow.FollowingID {
		return errs.Errorf(errs.EINVALID, "You cannot follow yourself.")
	}
	return nil
}

// Create stores the follow edge. The unique (follower_id, following_id) index decides
// between concurrent duplicates.
func (fg *followGorm) Create(ctx context.Context, follow *domain.Follow) error {
	ctx, span := tracer.Start(ctx, "follow.Create")
	defer span.End()

	return fg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := userExists(tx, follow.FollowingID); err != nil {
			return err
		}
		if err := tx.Create(follow).Error; err != nil {
			switch {
			case isDuplicate(err):
				return errs.Errorf(errs.ECONFLICT, "You already follow this user.")
			case isCheckViolation(err), follow.FollowerID == follow.FollowingID:
				return errs.Errorf(errs.EINVALID, "You cannot follow yourself.")
			}
			return fmt.Errorf("create follow: %w", err)
		}
		return nil
	})
}

// Delete removes the follow edge.
func (fg *followGorm) Delete(ctx context.Context, follow *domain.Follow) error {
	ctx, span := tracer.Start(ctx, "follow.Delete")
	defer span.End()

	res := fg.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", follow.FollowerID, follow.FollowingID).
		Delete(&domain.Follow{})
	if res.Error != nil {
		return fmt.Errorf("delete follow: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Errorf(errs.ENOTFOUND, "You do not follow this user.")
	}
	return nil
}

// Followers returns the users following userID, most recent follower first.
func (fg *followGorm) Followers(ctx context.Context, viewerID, userID int, p domain.Page) ([]domain.Profile, error) {
	return fg.edges(ctx, viewerID, userID, "follows.follower_id", "follows.following_id", p)
}

// Following returns the users userID follows, most recently followed first.
func (fg *followGorm) Following(ctx context.Context, viewerID, userID int, p domain.Page) ([]domain.Profile, error) {
	return fg.edges(ctx, viewerID, userID, "follows.following_id", "follows.follower_id", p)
}

// edges lists the users on the other end of userID's follow edges.
func (fg *followGorm) edges(ctx context.Context, viewerID, userID int, joinCol, whereCol string, p domain.Page) ([]domain.Profile, error) {
	db := fg.db.WithContext(ctx)
	if err := userExists(db, userID); err != nil {
		return nil, err
	}
	p = p.Normalize()
	var users []domain.User
	err := db.Model(&domain.User{}).
		Joins("JOIN follows ON "+joinCol+" = users.id").
		Where(whereCol+" = ?", userID).
		Order("follows.created_at DESC, follows.id DESC").
		Limit(p.Limit).
		Offset(p.Offset()).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list follow edges: %w", err)
	}
	return buildProfiles(ctx, fg.db, fg.images, viewerID, users)
}
