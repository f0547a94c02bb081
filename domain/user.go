package domain

import (
	"context"
	"time"
)

// User represents a registered account. Users are created at registration and mutated by
// profile edits. They are never hard-deleted.
// Password only lives in memory during registration; it is cleared once PasswordHash is set.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username" gorm:"size:30;uniqueIndex;not null"`
	Email        string `json:"email,omitempty" gorm:"size:255;uniqueIndex;not null"`
	Password     string `json:"-" gorm:"-"`
	PasswordHash string `json:"-" gorm:"not null"`
	FullName     string `json:"full_name"`
	Bio          string `json:"bio"`
	// Avatar is an inline data URI, a legacy "/uploads/..." reference or empty.
	Avatar string `json:"avatar" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// Identity is the part of a User that is shown next to a post, comment or reshare.
type Identity struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar"`
}

// Identity returns the display identity of the user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, FullName: u.FullName, Avatar: u.Avatar}
}

// Profile is a User along with its social graph counters, as seen by a viewer.
type Profile struct {
	User
	PostsCount     int64 `json:"posts_count"`
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	IsFollowing    bool  `json:"isFollowing"`
}

// UserStats holds the counters of GET /api/user/:id/stats.
type UserStats struct {
	PostsCount     int64 `json:"posts_count"`
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
}

// UserUpdate carries a profile edit. A nil field is left untouched.
// AvatarData is an already normalized inline image.
type UserUpdate struct {
	FullName     *string
	Bio          *string
	AvatarData   *string
	RemoveAvatar bool
}

// UserService is a set of methods to manipulate and work with the User model.
type UserService interface {
	Create(ctx context.Context, user *User) error
	Authenticate(ctx context.Context, login, password string) (*User, error)
	ByID(ctx context.Context, id int) (*User, error)
	Update(ctx context.Context, id int, upd UserUpdate) (*User, error)
	Profile(ctx context.Context, viewerID, id int) (*Profile, error)
	Stats(ctx context.Context, id int) (*UserStats, error)
	List(ctx context.Context, viewerID int) ([]Profile, error)
}
