package domain

import (
	"context"
	"time"
)

// Search filters.
const (
	SearchAll    = "all"
	SearchUsers  = "users"
	SearchPosts  = "posts"
	SearchTopics = "topics"
)

// Topic is a hashtag and the number of posts carrying it.
type Topic struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// SearchResult groups the matches of a search query. Lists that were not
// requested by the filter stay empty.
type SearchResult struct {
	Users  []Profile    `json:"users"`
	Posts  []PostDetail `json:"posts"`
	Topics []Topic      `json:"topics"`
}

// SearchService looks up users, posts and topics.
type SearchService interface {
	Search(ctx context.Context, viewerID int, query, filter string) (*SearchResult, error)
	Trending(ctx context.Context, since time.Time) ([]Topic, error)
}

// CounterDrift reports a post whose denormalized counters disagree with its relations.
type CounterDrift struct {
	PostID         int   `json:"post_id"`
	StoredLikes    int64 `json:"stored_likes"`
	ActualLikes    int64 `json:"actual_likes"`
	StoredComments int64 `json:"stored_comments"`
	ActualComments int64 `json:"actual_comments"`
}
