package crud

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/domain"
	"socialnet/errs"
)

func likesCount(t *testing.T, s *Services, postID int) int64 {
	t.Helper()
	var post domain.Post
	require.NoError(t, s.DB().First(&post, postID).Error)
	actual, err := countBy(s.DB(), &domain.Like{}, "post_id = ?", postID)
	require.NoError(t, err)
	require.Equal(t, actual, post.LikesCount, "likes_count drifted from the likes table")
	return post.LikesCount
}

func TestLikeService_Toggle(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	post := createPost(t, s, alice.ID, "hello")

	require.NoError(t, s.Like.Create(ctx, &domain.Like{UserID: bob.ID, PostID: post.ID}))
	assert.Equal(t, int64(1), likesCount(t, s, post.ID))

	requireCode(t, errs.ECONFLICT, s.Like.Create(ctx, &domain.Like{UserID: bob.ID, PostID: post.ID}))
	assert.Equal(t, int64(1), likesCount(t, s, post.ID))

	require.NoError(t, s.Like.Create(ctx, &domain.Like{UserID: alice.ID, PostID: post.ID}))
	assert.Equal(t, int64(2), likesCount(t, s, post.ID))

	require.NoError(t, s.Like.Delete(ctx, &domain.Like{UserID: bob.ID, PostID: post.ID}))
	assert.Equal(t, int64(1), likesCount(t, s, post.ID))

	requireCode(t, errs.ENOTFOUND, s.Like.Delete(ctx, &domain.Like{UserID: bob.ID, PostID: post.ID}))
	assert.Equal(t, int64(1), likesCount(t, s, post.ID))
}

func TestLikeService_UnknownPost(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	requireCode(t, errs.ENOTFOUND, s.Like.Create(ctx, &domain.Like{UserID: alice.ID, PostID: 9999}))
	requireCode(t, errs.ENOTFOUND, s.Like.Delete(ctx, &domain.Like{UserID: alice.ID, PostID: 9999}))
}

func TestLikeService_ConcurrentToggles(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	post := createPost(t, s, alice.ID, "popular")
	var users []*domain.User
	for _, name := range []string{"u_one", "u_two", "u_three", "u_four"} {
		users = append(users, createUser(t, s, name))
	}

	var wg sync.WaitGroup
	for _, u := range users {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(userID int) {
				defer wg.Done()
				// Duplicates and lock contention are expected outcomes here.
				_ = s.Like.Create(ctx, &domain.Like{UserID: userID, PostID: post.ID})
			}(u.ID)
		}
	}
	wg.Wait()

	// Whatever interleaving happened, the counter matches the relation.
	likesCount(t, s, post.ID)
}

func TestShareService_Toggle(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	post := createPost(t, s, alice.ID, "hello")

	before, err := s.Share.Count(ctx, post.ID)
	require.NoError(t, err)

	require.NoError(t, s.Share.Create(ctx, &domain.Share{UserID: bob.ID, PostID: post.ID}))
	requireCode(t, errs.ECONFLICT, s.Share.Create(ctx, &domain.Share{UserID: bob.ID, PostID: post.ID}))

	items, err := s.Feed.Feed(ctx, domain.FeedFilter{ViewerID: bob.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.PostTypeShared, items[0].Type)

	require.NoError(t, s.Share.Delete(ctx, &domain.Share{UserID: bob.ID, PostID: post.ID}))
	after, err := s.Share.Count(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	items, err = s.Feed.Feed(ctx, domain.FeedFilter{ViewerID: bob.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.PostTypeOriginal, items[0].Type)

	requireCode(t, errs.ENOTFOUND, s.Share.Delete(ctx, &domain.Share{UserID: bob.ID, PostID: post.ID}))
	requireCode(t, errs.ENOTFOUND, s.Share.Create(ctx, &domain.Share{UserID: bob.ID, PostID: 9999}))
}

func TestFollowService_Toggle(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	require.NoError(t, s.Follow.Create(ctx, &domain.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))
	requireCode(t, errs.ECONFLICT, s.Follow.Create(ctx, &domain.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))

	require.NoError(t, s.Follow.Delete(ctx, &domain.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))
	requireCode(t, errs.ENOTFOUND, s.Follow.Delete(ctx, &domain.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))

	requireCode(t, errs.ENOTFOUND, s.Follow.Create(ctx, &domain.Follow{FollowerID: alice.ID, FollowingID: 9999}))
}

func TestFollowService_SelfFollow(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	requireCode(t, errs.EINVALID, s.Follow.Create(ctx, &domain.Follow{FollowerID: alice.ID, FollowingID: alice.ID}))

	// The store rejects it too, should the validation ever be bypassed.
	err := s.Follow.followGorm.Create(ctx, &domain.Follow{FollowerID: alice.ID, FollowingID: alice.ID})
	requireCode(t, errs.EINVALID, err)

	n, err := countBy(s.DB(), &domain.Follow{}, "follower_id = ?", alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFollowService_Lists(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")
	require.NoError(t, s.Follow.Create(ctx, &domain.Follow{FollowerID: bob.ID, FollowingID: alice.ID}))
	require.NoError(t, s.Follow.Create(ctx, &domain.Follow{FollowerID: carol.ID, FollowingID: alice.ID}))
	require.NoError(t, s.Follow.Create(ctx, &domain.Follow{FollowerID: alice.ID, FollowingID: carol.ID}))

	followers, err := s.Follow.Followers(ctx, alice.ID, alice.ID, domain.Page{})
	require.NoError(t, err)
	require.Len(t, followers, 2)
	assert.Equal(t, carol.ID, followers[0].ID, "most recent follower first")
	assert.True(t, followers[0].IsFollowing)
	assert.Equal(t, bob.ID, followers[1].ID)
	assert.False(t, followers[1].IsFollowing)

	following, err := s.Follow.Following(ctx, 0, alice.ID, domain.Page{})
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, carol.ID, following[0].ID)

	page2, err := s.Follow.Followers(ctx, 0, alice.ID, domain.Page{Number: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, bob.ID, page2[0].ID)

	_, err = s.Follow.Followers(ctx, 0, 9999, domain.Page{})
	requireCode(t, errs.ENOTFOUND, err)
}

func TestCommentService(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	post := createPost(t, s, alice.ID, "hello")

	require.NoError(t, s.Comment.Create(ctx, &domain.Comment{UserID: bob.ID, PostID: post.ID, Content: "first"}))
	require.NoError(t, s.Comment.Create(ctx, &domain.Comment{UserID: alice.ID, PostID: post.ID, Content: "second"}))
	requireCode(t, errs.EINVALID, s.Comment.Create(ctx, &domain.Comment{UserID: bob.ID, PostID: post.ID, Content: "  "}))
	requireCode(t, errs.ENOTFOUND, s.Comment.Create(ctx, &domain.Comment{UserID: bob.ID, PostID: 9999, Content: "x"}))

	comments, err := s.Comment.ByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "bob", comments[0].Author.Username)
	assert.Equal(t, "second", comments[1].Content)

	var stored domain.Post
	require.NoError(t, s.DB().First(&stored, post.ID).Error)
	assert.Equal(t, int64(2), stored.CommentsCount)

	_, err = s.Comment.ByPostID(ctx, 9999)
	requireCode(t, errs.ENOTFOUND, err)
}
