package crud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
)

// Result limits per kind.
const (
	searchUsersLimit  = 10
	searchPostsLimit  = 10
	searchTopicsLimit = 5
	trendingLimit     = 10
)

// TrendingWindow is how far back trending topics look.
const TrendingWindow = 7 * 24 * time.Hour

// likeEscape makes backslash the escape character of LIKE patterns built by likePattern.
const likeEscape = ` ESCAPE '\'`

// SearchService looks up users, posts and topics.
// It implements the domain.SearchService interface.
type SearchService struct {
	searchGorm
}

type searchGorm struct {
	db     *gorm.DB
	images *ImageService
}

// NewSearchService returns an instance of SearchService.
func NewSearchService(db *gorm.DB, images *ImageService) *SearchService {
	return &SearchService{
		searchGorm{
			db:     db,
			images: images,
		},
	}
}

var _ domain.SearchService = &SearchService{}

// Search matches q as a case-insensitive substring against users (username, name, bio),
// posts (content) and topics. The filter limits which of the three are looked up.
func (sg *searchGorm) Search(ctx context.Context, viewerID int, q, filter string) (*domain.SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errs.Errorf(errs.EINVALID, "A search query is required.")
	}
	if filter == "" {
		filter = domain.SearchAll
	}
	switch filter {
	case domain.SearchAll, domain.SearchUsers, domain.SearchPosts, domain.SearchTopics:
	default:
		return nil, errs.Errorf(errs.EINVALID, "Unknown search filter %q.", filter)
	}

	ctx, span := tracer.Start(ctx, "search.Search")
	defer span.End()

	res := &domain.SearchResult{
		Users:  []domain.Profile{},
		Posts:  []domain.PostDetail{},
		Topics: []domain.Topic{},
	}
	var err error
	if filter == domain.SearchAll || filter == domain.SearchUsers {
		if res.Users, err = sg.users(ctx, viewerID, q); err != nil {
			return nil, err
		}
	}
	if filter == domain.SearchAll || filter == domain.SearchPosts {
		if res.Posts, err = sg.posts(ctx, viewerID, q); err != nil {
			return nil, err
		}
	}
	if filter == domain.SearchAll || filter == domain.SearchTopics {
		if term := topicTerm(q); term != "" {
			if res.Topics, err = sg.topics(ctx, sg.db.WithContext(ctx).Where("LOWER(topic) LIKE ?"+likeEscape, likePattern(term)), searchTopicsLimit); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// Trending counts the topics of posts published since the given time.
func (sg *searchGorm) Trending(ctx context.Context, since time.Time) ([]domain.Topic, error) {
	return sg.topics(ctx, sg.db.WithContext(ctx).Where("created_at >= ?", since.UTC()), trendingLimit)
}

func (sg *searchGorm) users(ctx context.Context, viewerID int, q string) ([]domain.Profile, error) {
	pattern := likePattern(q)
	var users []domain.User
	err := sg.db.WithContext(ctx).
		Where("id <> ?", viewerID).
		Where("(LOWER(username) LIKE ?"+likeEscape+" OR LOWER(full_name) LIKE ?"+likeEscape+" OR LOWER(bio) LIKE ?"+likeEscape+")",
			pattern, pattern, pattern).
		Order("username ASC").
		Limit(searchUsersLimit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return buildProfiles(ctx, sg.db, sg.images, viewerID, users)
}

func (sg *searchGorm) posts(ctx context.Context, viewerID int, q string) ([]domain.PostDetail, error) {
	var posts []domain.Post
	err := sg.db.WithContext(ctx).
		Where("LOWER(content) LIKE ?"+likeEscape, likePattern(q)).
		Order("created_at DESC, id DESC").
		Limit(searchPostsLimit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return detailPosts(ctx, sg.db, sg.images, viewerID, posts)
}

// topicRow is one row of the topic aggregation.
type topicRow struct {
	Topic string
	N     int64
}

// topics groups the posts selected by scope by topic, most frequent first, ties by name.
func (sg *searchGorm) topics(ctx context.Context, scope *gorm.DB, limit int) ([]domain.Topic, error) {
	var rows []topicRow
	err := scope.Model(&domain.Post{}).
		Select("topic, COUNT(*) AS n").
		Where("topic <> ''").
		Group("topic").
		Order("n DESC, topic ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count topics: %w", err)
	}
	topics := make([]domain.Topic, 0, len(rows))
	for _, r := range rows {
		topics = append(topics, domain.Topic{Name: r.Topic, Count: r.N})
	}
	return topics, nil
}
