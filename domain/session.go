package domain

import (
	"context"
	"time"
)

// Session binds a random token, handed to the client as a cookie, to a user id.
// Only the HMAC hash of the token is stored.
type Session struct {
	ID        int       `json:"-"`
	UserID    int       `json:"-" gorm:"not null;index"`
	User      *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	TokenHash string    `json:"-" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `json:"-" gorm:"index"`
	CreatedAt time.Time `json:"-"`
}

// SessionService issues, resolves and invalidates server-side sessions.
type SessionService interface {
	Create(ctx context.Context, userID int) (token string, err error)
	UserID(ctx context.Context, token string) (int, error)
	Delete(ctx context.Context, token string) error
}
