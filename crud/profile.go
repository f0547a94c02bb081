package crud

import (
	"context"

	"gorm.io/gorm"

	"socialnet/domain"
)

// idCount is one row of a grouped COUNT(*) query.
type idCount struct {
	ID int
	N  int64
}

// countsByID runs a grouped count over model and returns it keyed by the grouping column.
func countsByID(db *gorm.DB, model interface{}, column string, ids []int) (map[int]int64, error) {
	var rows []idCount
	err := db.Model(model).
		Select(column+" AS id, COUNT(*) AS n").
		Where(column+" IN ?", ids).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.ID] = r.N
	}
	return counts, nil
}

// followedBy returns the subset of ids the viewer follows.
func followedBy(db *gorm.DB, viewerID int, ids []int) (map[int]bool, error) {
	followed := make(map[int]bool)
	if viewerID == 0 || len(ids) == 0 {
		return followed, nil
	}
	var followingIDs []int
	err := db.Model(&domain.Follow{}).
		Where("follower_id = ? AND following_id IN ?", viewerID, ids).
		Pluck("following_id", &followingIDs).Error
	if err != nil {
		return nil, err
	}
	for _, id := range followingIDs {
		followed[id] = true
	}
	return followed, nil
}

// buildProfiles decorates users with their counters and the viewer's follow state,
// keeping the order of users. Email addresses are only shown to their owner.
func buildProfiles(ctx context.Context, db *gorm.DB, is *ImageService, viewerID int, users []domain.User) ([]domain.Profile, error) {
	profiles := make([]domain.Profile, 0, len(users))
	if len(users) == 0 {
		return profiles, nil
	}
	db = db.WithContext(ctx)
	ids := make([]int, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	posts, err := countsByID(db, &domain.Post{}, "user_id", ids)
	if err != nil {
		return nil, err
	}
	followers, err := countsByID(db, &domain.Follow{}, "following_id", ids)
	if err != nil {
		return nil, err
	}
	following, err := countsByID(db, &domain.Follow{}, "follower_id", ids)
	if err != nil {
		return nil, err
	}
	followed, err := followedBy(db, viewerID, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		inlineAvatar(ctx, db, is, &u)
		if u.ID != viewerID {
			u.Email = ""
		}
		profiles = append(profiles, domain.Profile{
			User:           u,
			PostsCount:     posts[u.ID],
			FollowersCount: followers[u.ID],
			FollowingCount: following[u.ID],
			IsFollowing:    followed[u.ID],
		})
	}
	return profiles, nil
}
