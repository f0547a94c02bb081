package domain

import (
	"context"
	"time"
)

// Share represents "user X reposted post P". It only references the original post and never
// copies its content. A user reshares a given post at most once.
type Share struct {
	ID     int   `json:"id"`
	UserID int   `json:"user_id" gorm:"not null;uniqueIndex:idx_share_pair"`
	User   *User `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	PostID int   `json:"post_id" gorm:"not null;uniqueIndex:idx_share_pair;index"`
	Post   *Post `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// ShareService is a set of methods to manipulate and work with the Share model.
type ShareService interface {
	Create(ctx context.Context, share *Share) error
	Delete(ctx context.Context, share *Share) error
	Count(ctx context.Context, postID int) (int64, error)
}
