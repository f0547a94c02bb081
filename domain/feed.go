package domain

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultPageSize is used when a request does not specify a limit.
	DefaultPageSize = 10
	// MaxPageSize caps the limit a client may request.
	MaxPageSize = 50
	// MaxPageNumber keeps every offset within 32 bits.
	MaxPageNumber = math.MaxInt32 / MaxPageSize
)

// Page is a 1-based offset pagination window.
type Page struct {
	Number int
	Limit  int
}

// Normalize fills in defaults and clamps the window to sane values.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip for the page.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Limit
}

// FeedFilter selects a feed. A zero ViewerID is an anonymous viewer, a zero AuthorID is the
// global feed. With an AuthorID the feed holds that author's originals and that author's reshares.
type FeedFilter struct {
	ViewerID int
	AuthorID int
	Page     Page
}

// FeedItem is either an original post or a reshare of a post.
// For reshares Display is the resharer, so the header shows who reposted it, while
// Author still names the original poster for the "reposted from" line.
type FeedItem struct {
	Post
	Type     string    `json:"post_type"`
	IsShared bool      `json:"isShared"`
	SortDate time.Time `json:"sort_date"`
	ShareID  int       `json:"share_id,omitempty"`
	Author   Identity  `json:"author"`
	SharedBy *Identity `json:"shared_by,omitempty"`
	Display  Identity  `json:"display"`

	SharesCount  int64 `json:"shares_count"`
	IsLiked      bool  `json:"isLiked"`
	ViewerShared bool  `json:"viewerShared"`
}

// FeedService assembles timelines.
type FeedService interface {
	Feed(ctx context.Context, f FeedFilter) ([]FeedItem, error)
	SharedBy(ctx context.Context, userID int, p Page) ([]FeedItem, error)
}
