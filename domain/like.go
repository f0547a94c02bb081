package domain

import (
	"context"
	"time"
)

// Like represents a many-to-many relationship between a User and a Post.
// A Like is created when a user decides to like a post. It's destroyed when
// a user decides to unlike a previously liked post, or when the post gets deleted.
// A user likes a given post at most once.
type Like struct {
	ID     int   `json:"id"`
	UserID int   `json:"user_id" gorm:"not null;uniqueIndex:idx_like_pair"`
	User   *User `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	PostID int   `json:"post_id" gorm:"not null;uniqueIndex:idx_like_pair;index"`
	Post   *Post `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
}

// LikeService is a set of methods to manipulate and work with the Like model.
type LikeService interface {
	Create(ctx context.Context, like *Like) error
	Delete(ctx context.Context, like *Like) error
}
