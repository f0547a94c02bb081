package domain

import (
	"context"
	"time"
)

// Comment is an append-only reply to a post. Comments only disappear along with their post.
type Comment struct {
	ID      int    `json:"id"`
	UserID  int    `json:"user_id" gorm:"not null;index"`
	User    *User  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	PostID  int    `json:"post_id" gorm:"not null;index"`
	Post    *Post  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Content string `json:"content" gorm:"type:text;not null"`

	CreatedAt time.Time `json:"created_at"`
}

// CommentView is a comment along with the commenter's identity.
type CommentView struct {
	Comment
	Author Identity `json:"author"`
}

// CommentService is a set of methods to manipulate and work with the Comment model.
type CommentService interface {
	Create(ctx context.Context, comment *Comment) error
	ByPostID(ctx context.Context, postID int) ([]CommentView, error)
}
