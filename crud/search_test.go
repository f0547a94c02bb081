package crud

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/domain"
	"socialnet/errs"
)

func TestSearchService_Trending(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	createPost(t, s, alice.ID, "learning #foo today")
	createPost(t, s, alice.ID, "more #Foo!")
	createPost(t, s, alice.ID, "and #bar")
	createPost(t, s, alice.ID, "no tag at all")
	old := createPost(t, s, alice.ID, "ancient #bar")
	require.NoError(t, s.DB().Model(&domain.Post{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", time.Now().UTC().Add(-8*24*time.Hour)).Error)

	topics, err := s.Search.Trending(ctx, time.Now().Add(-TrendingWindow))
	require.NoError(t, err)
	assert.Equal(t, []domain.Topic{{Name: "foo", Count: 2}, {Name: "bar", Count: 1}}, topics)
}

func TestSearchService_Search(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bobby")
	bio := "likes Golang"
	_, err := s.User.Update(ctx, bob.ID, domain.UserUpdate{Bio: &bio})
	require.NoError(t, err)
	createPost(t, s, alice.ID, "I love #golang")
	createPost(t, s, bob.ID, "golang tips #GoLang")
	createPost(t, s, bob.ID, "rust #rust")

	res, err := s.Search.Search(ctx, alice.ID, "GOLANG", domain.SearchAll)
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "bobby", res.Users[0].Username)
	assert.Len(t, res.Posts, 2)
	assert.Equal(t, []domain.Topic{{Name: "golang", Count: 2}}, res.Topics)

	res, err = s.Search.Search(ctx, alice.ID, "#go", domain.SearchTopics)
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	assert.Empty(t, res.Posts)
	assert.Equal(t, []domain.Topic{{Name: "golang", Count: 2}}, res.Topics)

	res, err = s.Search.Search(ctx, alice.ID, "alice", domain.SearchUsers)
	require.NoError(t, err)
	assert.Empty(t, res.Users, "the viewer is not part of user results")

	res, err = s.Search.Search(ctx, alice.ID, "100%", domain.SearchPosts)
	require.NoError(t, err)
	assert.Empty(t, res.Posts, "LIKE wildcards match literally")
}

func TestSearchService_SearchValidation(t *testing.T) {
	s, _ := setupTestServices(t)
	ctx := context.Background()

	_, err := s.Search.Search(ctx, 0, "   ", domain.SearchAll)
	requireCode(t, errs.EINVALID, err)

	_, err = s.Search.Search(ctx, 0, "x", "everything")
	requireCode(t, errs.EINVALID, err)
}

func TestExtractTopic(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"hello #world", "world"},
		{"#Go is fun", "go"},
		{"trailing #punct!?", "punct"},
		{"#snake_case_", "snake_case_"},
		{"only the first #one #two", "one"},
		{"no tags", ""},
		{"lonely # sign", ""},
		{"##double", "double"},
		{"multi\n#line\tbreak", "line"},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTopic(tt.content))
		})
	}
}
