package crud

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"socialnet/domain"
)

// FeedService assembles timelines of original posts and reshares.
// It implements the domain.FeedService interface.
//
// Pagination is offset based, so concurrent inserts can shift rows across page
// boundaries between two requests; a row may then be skipped or seen twice.
type FeedService struct {
	feedGorm
}

type feedGorm struct {
	db     *gorm.DB
	images *ImageService
}

// NewFeedService returns an instance of FeedService.
func NewFeedService(db *gorm.DB, images *ImageService) *FeedService {
	return &FeedService{
		feedGorm{
			db:     db,
			images: images,
		},
	}
}

var _ domain.FeedService = &FeedService{}

// feedRow is one candidate of the feed union. ShareID is 0 for original posts.
type feedRow struct {
	PostID  int
	ShareID int
}

// feedQuery selects which branches of the union a timeline consists of.
type feedQuery struct {
	originals bool
	authorID  int // restricts the originals branch; 0 means every author
	sharerID  int // enables the reshare branch; 0 means no reshares
	page      domain.Page
}

// sql builds the union over the requested branches. Only ids are selected, ordered by
// the sort key with id tie-breakers, so paging is deterministic.
func (q feedQuery) sql() (string, []interface{}) {
	var branches []string
	var args []interface{}
	if q.originals {
		b := "SELECT p.id AS post_id, 0 AS share_id, p.created_at AS sort_date FROM posts p"
		if q.authorID != 0 {
			b += " WHERE p.user_id = ?"
			args = append(args, q.authorID)
		}
		branches = append(branches, b)
	}
	if q.sharerID != 0 {
		branches = append(branches,
			"SELECT p.id AS post_id, s.id AS share_id, s.created_at AS sort_date "+
				"FROM shares s JOIN posts p ON p.id = s.post_id WHERE s.user_id = ?")
		args = append(args, q.sharerID)
	}
	p := q.page.Normalize()
	args = append(args, p.Limit, p.Offset())
	return "SELECT post_id, share_id FROM (" + strings.Join(branches, " UNION ALL ") + ") feed " +
		"ORDER BY sort_date DESC, post_id DESC, share_id DESC LIMIT ? OFFSET ?", args
}

// Feed returns a page of a timeline. Without an author filter it holds every original post
// plus the viewer's reshares; with an author filter it holds that author's originals and
// that author's reshares.
func (fg *feedGorm) Feed(ctx context.Context, f domain.FeedFilter) ([]domain.FeedItem, error) {
	ctx, span := tracer.Start(ctx, "feed.Feed")
	defer span.End()
	span.SetAttributes(
		attribute.Int("feed.viewer_id", f.ViewerID),
		attribute.Int("feed.author_id", f.AuthorID),
		attribute.Int("feed.page", f.Page.Number))

	q := feedQuery{originals: true, authorID: f.AuthorID, sharerID: f.ViewerID, page: f.Page}
	if f.AuthorID != 0 {
		q.sharerID = f.AuthorID
	}
	return fg.assemble(ctx, f.ViewerID, q)
}

// SharedBy returns the posts userID has reshared, most recent reshare first.
func (fg *feedGorm) SharedBy(ctx context.Context, userID int, p domain.Page) ([]domain.FeedItem, error) {
	ctx, span := tracer.Start(ctx, "feed.SharedBy")
	defer span.End()
	return fg.assemble(ctx, userID, feedQuery{sharerID: userID, page: p})
}

// assemble runs the union and turns its rows into feed items, keeping their order.
func (fg *feedGorm) assemble(ctx context.Context, viewerID int, q feedQuery) ([]domain.FeedItem, error) {
	items := []domain.FeedItem{}
	if !q.originals && q.sharerID == 0 {
		return items, nil
	}
	db := fg.db.WithContext(ctx)

	query, args := q.sql()
	var rows []feedRow
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	if len(rows) == 0 {
		return items, nil
	}

	var postIDs, shareIDs []int
	for _, r := range rows {
		postIDs = append(postIDs, r.PostID)
		if r.ShareID != 0 {
			shareIDs = append(shareIDs, r.ShareID)
		}
	}
	var posts []domain.Post
	if err := db.Where("id IN ?", uniqueIDs(postIDs)).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("load feed posts: %w", err)
	}
	shares := map[int]domain.Share{}
	var sharerIDs []int
	if len(shareIDs) > 0 {
		var list []domain.Share
		if err := db.Where("id IN ?", shareIDs).Find(&list).Error; err != nil {
			return nil, fmt.Errorf("load feed shares: %w", err)
		}
		for _, s := range list {
			shares[s.ID] = s
			sharerIDs = append(sharerIDs, s.UserID)
		}
	}

	pc, err := loadPostContext(ctx, fg.db, fg.images, viewerID, posts, sharerIDs...)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]domain.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	for _, r := range rows {
		post, ok := byID[r.PostID]
		if !ok {
			// Deleted between the union and the load.
			continue
		}
		author := pc.identity(post.UserID)
		item := domain.FeedItem{
			Post:         post,
			Type:         domain.PostTypeOriginal,
			SortDate:     post.CreatedAt,
			Author:       author,
			Display:      author,
			SharesCount:  pc.shares[post.ID],
			IsLiked:      pc.liked[post.ID],
			ViewerShared: pc.shared[post.ID],
		}
		if r.ShareID != 0 {
			share, ok := shares[r.ShareID]
			if !ok {
				continue
			}
			sharer := pc.identity(share.UserID)
			item.Type = domain.PostTypeShared
			item.IsShared = true
			item.SortDate = share.CreatedAt
			item.ShareID = share.ID
			item.SharedBy = &sharer
			item.Display = sharer
		}
		items = append(items, item)
	}
	return items, nil
}
