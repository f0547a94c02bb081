package crud

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
)

// MaxCommentLength is the maximum number of characters of a comment.
const MaxCommentLength = 1000

// CommentService manages Comments.
// It implements the domain.CommentService interface.
type CommentService struct {
	commentValidator
}

type commentValidator struct {
	commentGorm
}

type commentGorm struct {
	db     *gorm.DB
	images *ImageService
}

// NewCommentService returns an instance of CommentService.
func NewCommentService(db *gorm.DB, images *ImageService) *CommentService {
	return &CommentService{
		commentValidator{
			commentGorm{
				db:     db,
				images: images,
			},
		},
	}
}

var _ domain.CommentService = &CommentService{}

// Create runs validations needed for appending a comment to a post.
func (cv *commentValidator) Create(ctx context.Context, comment *domain.Comment) error {
	err := runCommentValFns(comment,
		cv.userIdValid,
		cv.contentNormalize,
		cv.contentRequired,
		cv.contentMaxLength)
	if err != nil {
		return err
	}
	return cv.commentGorm.Create(ctx, comment)
}

func runCommentValFns(comment *domain.Comment, fns ...commentValFn) error {
	for _, fn := range fns {
		if err := fn(comment); err != nil {
			return err
		}
	}
	return nil
}

type commentValFn func(comment *domain.Comment) error

func (cv *commentValidator) userIdValid(comment *domain.Comment) error {
	if comment.UserID <= 0 {
		return errs.Errorf(errs.EUNAUTHORIZED, "You must be logged in.")
	}
	return nil
}

func (cv *commentValidator) contentNormalize(comment *domain.Comment) error {
	comment.Content = norm.NFC.String(strings.TrimSpace(comment.Content))
	return nil
}

func (cv *commentValidator) contentRequired(comment *domain.Comment) error {
	if comment.Content == "" {
		return errs.Errorf(errs.EINVALID, "Comment content must not be empty.")
	}
	return nil
}

func (cv *commentValidator) contentMaxLength(comment *domain.Comment) error {
	if utf8.RuneCountInString(comment.Content) > MaxCommentLength {
		return errs.Errorf(errs.EINVALID, "Comment content max length is %d characters.", MaxCommentLength)
	}
	return nil
}

// Create stores the comment and increments the post's comments_count in the same transaction.
func (cg *commentGorm) Create(ctx context.Context, comment *domain.Comment) error {
	return cg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := postExists(tx, comment.PostID); err != nil {
			return err
		}
		if err := tx.Create(comment).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return adjustCounter(tx, comment.PostID, "comments_count", 1)
	})
}

// ByPostID returns the comments of a post, oldest first, along with their authors.
func (cg *commentGorm) ByPostID(ctx context.Context, postID int) ([]domain.CommentView, error) {
	db := cg.db.WithContext(ctx)
	if err := postExists(db, postID); err != nil {
		return nil, err
	}
	var comments []domain.Comment
	err := db.Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	views := make([]domain.CommentView, 0, len(comments))
	if len(comments) == 0 {
		return views, nil
	}
	userIDs := make([]int, 0, len(comments))
	for _, c := range comments {
		userIDs = append(userIDs, c.UserID)
	}
	var users []domain.User
	if err := db.Where("id IN ?", uniqueIDs(userIDs)).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load commenters: %w", err)
	}
	byID := make(map[int]domain.Identity, len(users))
	for _, u := range users {
		inlineAvatar(ctx, cg.db, cg.images, &u)
		byID[u.ID] = u.Identity()
	}
	for _, c := range comments {
		views = append(views, domain.CommentView{Comment: c, Author: byID[c.UserID]})
	}
	return views, nil
}
