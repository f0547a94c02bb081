package domain

import (
	"context"
	"time"
)

// Follow represents a self-referential many-to-many relationship between two users.
// A Follow is created when one user decides to follow another user.
// The FollowerID is the ID of the user that follows, and the FollowingID is the ID of the
// user that is being followed. A user cannot follow themselves, and follows a given user at most once.
type Follow struct {
	ID          int   `json:"id"`
	FollowerID  int   `json:"follower_id" gorm:"not null;uniqueIndex:idx_follow_pair;check:follower_id <> following_id"`
	Follower    *User `json:"-" gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	FollowingID int   `json:"following_id" gorm:"not null;uniqueIndex:idx_follow_pair;index"`
	Following   *User `json:"-" gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
}

// FollowService is a set of methods to manipulate and work with the Follow model.
type FollowService interface {
	Create(ctx context.Context, follow *Follow) error
	Delete(ctx context.Context, follow *Follow) error
	Followers(ctx context.Context, viewerID, userID int, p Page) ([]Profile, error)
	Following(ctx context.Context, viewerID, userID int, p Page) ([]Profile, error)
}
