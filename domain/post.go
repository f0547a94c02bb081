package domain

import (
	"context"
	"time"
)

const (
	// PostTypeOriginal marks a feed item that is the post itself.
	PostTypeOriginal = "original"
	// PostTypeShared marks a feed item that is a reshare of a post.
	PostTypeShared = "shared"
)

// Post is a published piece of content. Content and Image never change after creation.
// LikesCount and CommentsCount are denormalized and must always equal the number of
// Like and Comment records of the post.
type Post struct {
	ID      int    `json:"id"`
	UserID  int    `json:"user_id" gorm:"not null;index"`
	User    *User  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Content string `json:"content" gorm:"type:text;not null"`
	// Image is an inline data URI, a legacy "/uploads/..." reference or empty.
	Image string `json:"image" gorm:"type:text"`
	// Topic is the hashtag extracted from Content at publish time.
	Topic         string `json:"topic,omitempty" gorm:"size:100;index"`
	LikesCount    int64  `json:"likes_count" gorm:"not null;default:0"`
	CommentsCount int64  `json:"comments_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"-"`
}

// PostDetail is a single post along with its author and the viewer's relation to it.
type PostDetail struct {
	Post
	Author      Identity `json:"author"`
	SharesCount int64    `json:"shares_count"`
	IsLiked     bool     `json:"isLiked"`
	IsShared    bool     `json:"isShared"`
}

// NewPost is the input of a publish. ImageData is an already normalized inline image.
type NewPost struct {
	UserID    int
	Content   string
	ImageData string
}

// PostService is a set of methods to manipulate and work with the Post model.
type PostService interface {
	Create(ctx context.Context, np NewPost) (*Post, error)
	ByID(ctx context.Context, viewerID, id int) (*PostDetail, error)
	Delete(ctx context.Context, userID, id int) error
}
