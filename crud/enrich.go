package crud

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"socialnet/domain"
)

// postContext holds everything needed to decorate a set of posts for one viewer.
type postContext struct {
	users  map[int]domain.User
	shares map[int]int64
	liked  map[int]bool
	shared map[int]bool
}

// identity returns the display identity of a loaded user.
func (pc *postContext) identity(id int) domain.Identity {
	u, ok := pc.users[id]
	if !ok {
		return domain.Identity{ID: id}
	}
	return u.Identity()
}

// loadPostContext migrates legacy post images in place and loads the authors (plus any
// extra users, such as resharers), share counts and the viewer's likes and shares of posts.
func loadPostContext(ctx context.Context, db *gorm.DB, is *ImageService, viewerID int, posts []domain.Post, extraUserIDs ...int) (*postContext, error) {
	pc := &postContext{
		users:  map[int]domain.User{},
		shares: map[int]int64{},
		liked:  map[int]bool{},
		shared: map[int]bool{},
	}
	if len(posts) == 0 {
		return pc, nil
	}
	db = db.WithContext(ctx)

	postIDs := make([]int, 0, len(posts))
	userIDs := append([]int{}, extraUserIDs...)
	for i := range posts {
		inlinePostImage(ctx, db, is, &posts[i])
		postIDs = append(postIDs, posts[i].ID)
		userIDs = append(userIDs, posts[i].UserID)
	}

	var users []domain.User
	if err := db.Where("id IN ?", uniqueIDs(userIDs)).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	for _, u := range users {
		inlineAvatar(ctx, db, is, &u)
		pc.users[u.ID] = u
	}

	var err error
	if pc.shares, err = countsByID(db, &domain.Share{}, "post_id", postIDs); err != nil {
		return nil, fmt.Errorf("count shares: %w", err)
	}
	if viewerID == 0 {
		return pc, nil
	}
	if pc.liked, err = viewerPostSet(db, &domain.Like{}, viewerID, postIDs); err != nil {
		return nil, fmt.Errorf("load likes: %w", err)
	}
	if pc.shared, err = viewerPostSet(db, &domain.Share{}, viewerID, postIDs); err != nil {
		return nil, fmt.Errorf("load shares: %w", err)
	}
	return pc, nil
}

// viewerPostSet returns which of postIDs the viewer has a relation of model with.
func viewerPostSet(db *gorm.DB, model interface{}, viewerID int, postIDs []int) (map[int]bool, error) {
	var ids []int
	err := db.Model(model).
		Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// detailPosts decorates posts with their author and the viewer's relation to them.
func detailPosts(ctx context.Context, db *gorm.DB, is *ImageService, viewerID int, posts []domain.Post) ([]domain.PostDetail, error) {
	pc, err := loadPostContext(ctx, db, is, viewerID, posts)
	if err != nil {
		return nil, err
	}
	details := make([]domain.PostDetail, 0, len(posts))
	for _, p := range posts {
		details = append(details, domain.PostDetail{
			Post:        p,
			Author:      pc.identity(p.UserID),
			SharesCount: pc.shares[p.ID],
			IsLiked:     pc.liked[p.ID],
			IsShared:    pc.shared[p.ID],
		})
	}
	return details, nil
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
